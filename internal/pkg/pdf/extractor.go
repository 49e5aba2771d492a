package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Extractor PDF 文本提取器
// 页数统计用 pdfcpu，正文提取调用外部 pdftotext（poppler-utils）
type Extractor struct {
	pdftotextPath string

	pageCount   func(pdfPath string) (int, error)
	extractPage func(ctx context.Context, pdfPath string, page int) (string, error)
}

// NewExtractor 创建 PDF 文本提取器
func NewExtractor(pdftotextPath string) *Extractor {
	if pdftotextPath == "" {
		pdftotextPath = os.Getenv("PDFTOTEXT_PATH")
	}
	if pdftotextPath == "" {
		pdftotextPath = "pdftotext"
	}

	e := &Extractor{pdftotextPath: pdftotextPath}
	e.pageCount = api.PageCountFile
	e.extractPage = e.runPdftotext
	return e
}

// PageCount 返回 PDF 的总页数
func (e *Extractor) PageCount(pdfPath string) (int, error) {
	count, err := e.pageCount(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("count pdf pages: %w", err)
	}
	return count, nil
}

// ExtractPage 提取单页文本（页码从 1 开始）
func (e *Extractor) ExtractPage(ctx context.Context, pdfPath string, page int) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("invalid page number %d", page)
	}
	return e.extractPage(ctx, pdfPath, page)
}

// ExtractRange 提取页码区间 [first, last] 的文本，各页之间用空行分隔
func (e *Extractor) ExtractRange(ctx context.Context, pdfPath string, first, last int) (string, error) {
	if first < 1 || last < first {
		return "", fmt.Errorf("invalid page range %d-%d", first, last)
	}

	var b strings.Builder
	for page := first; page <= last; page++ {
		text, err := e.extractPage(ctx, pdfPath, page)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", page, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(text))
	}
	return b.String(), nil
}

// FullTextWithMarkers 提取全书文本，每页前插入 [Page N] 标记
// 章节划分依赖这些标记来对齐页码
func (e *Extractor) FullTextWithMarkers(ctx context.Context, pdfPath string) (string, error) {
	total, err := e.PageCount(pdfPath)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for page := 1; page <= total; page++ {
		text, err := e.extractPage(ctx, pdfPath, page)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", page, err)
		}
		fmt.Fprintf(&b, "[Page %d]\n%s\n\n", page, strings.TrimSpace(text))
	}
	return strings.TrimSpace(b.String()), nil
}

// runPdftotext 调用 pdftotext 提取单页文本，输出到 stdout
// pdftotext -f N -l N -layout input.pdf -
func (e *Extractor) runPdftotext(ctx context.Context, pdfPath string, page int) (string, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, e.pdftotextPath,
		"-f", fmt.Sprintf("%d", page),
		"-l", fmt.Sprintf("%d", page),
		"-layout",
		pdfPath,
		"-",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
