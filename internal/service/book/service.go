// Package book 实现书籍的入库、文本提取、章节划分和按页分析
package book

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"mango/internal/library"
	bookmodel "mango/internal/model/book"
	"mango/internal/pkg/booktools"
	"mango/internal/pkg/id"
)

// TextExtractor PDF 文本提取能力（由 pkg/pdf.Extractor 实现）
type TextExtractor interface {
	PageCount(pdfPath string) (int, error)
	FullTextWithMarkers(ctx context.Context, pdfPath string) (string, error)
}

// Service 书籍服务
type Service struct {
	store     *library.Store
	extractor TextExtractor
	segmenter *booktools.BookSegmenter
	analyzer  *booktools.PageAnalyzer
	splitter  *booktools.ChapterSplitter
}

// NewService 创建书籍服务
func NewService(
	store *library.Store,
	extractor TextExtractor,
	segmenter *booktools.BookSegmenter,
	analyzer *booktools.PageAnalyzer,
) *Service {
	return &Service{
		store:     store,
		extractor: extractor,
		segmenter: segmenter,
		analyzer:  analyzer,
		splitter:  booktools.NewChapterSplitter(),
	}
}

// Ingest 将一本 PDF 收入书库
// 复制 PDF 到书库目录并记录元数据，不做文本提取
func (s *Service) Ingest(ctx context.Context, pdfPath, title, author string) (*bookmodel.Book, error) {
	pageCount, err := s.extractor.PageCount(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", pdfPath, err)
	}

	bookID := id.New()
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	}

	b := &bookmodel.Book{
		ID:        bookID,
		Title:     title,
		Author:    author,
		PageCount: pageCount,
		Status:    bookmodel.StatusUploaded,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.store.SaveBook(b); err != nil {
		return nil, err
	}

	destPath := filepath.Join(s.store.BookDir(bookID), "source.pdf")
	if err := copyFile(pdfPath, destPath); err != nil {
		return nil, fmt.Errorf("copy pdf into library: %w", err)
	}
	b.PDFPath = destPath
	if err := s.store.SaveBook(b); err != nil {
		return nil, err
	}

	log.Info().Str("book_id", bookID).Str("title", title).Int("pages", pageCount).Msg("book ingested")
	return b, nil
}

// GetBook 读取书籍元数据
func (s *Service) GetBook(ctx context.Context, bookID string) (*bookmodel.Book, error) {
	return s.store.GetBook(bookID)
}

// ListBooks 列出书库中的所有书籍
func (s *Service) ListBooks(ctx context.Context) ([]*bookmodel.Book, error) {
	return s.store.ListBooks()
}

// ExtractText 提取全书文本（带 [Page N] 标记）
// 已有提取缓存时直接返回，不重复调用 pdftotext
func (s *Service) ExtractText(ctx context.Context, bookID string) (string, error) {
	if text, err := s.store.GetText(bookID); err == nil {
		return text, nil
	}

	b, err := s.store.GetBook(bookID)
	if err != nil {
		return "", err
	}

	text, err := s.extractor.FullTextWithMarkers(ctx, b.PDFPath)
	if err != nil {
		return "", fmt.Errorf("extract text of book %s: %w", bookID, err)
	}
	if err := s.store.SaveText(bookID, text); err != nil {
		return "", err
	}

	b.WordCount = booktools.WordCount(text)
	b.Status = bookmodel.StatusExtracted
	b.UpdatedAt = time.Now()
	if err := s.store.SaveBook(b); err != nil {
		return "", err
	}

	log.Info().Str("book_id", bookID).Int("words", b.WordCount).Msg("book text extracted")
	return text, nil
}

// SegmentChapters 划分章节
// 优先用大模型按页码标记识别章节边界，失败时退回标题模式切分
func (s *Service) SegmentChapters(ctx context.Context, bookID string) ([]*bookmodel.Chapter, error) {
	text, err := s.ExtractText(ctx, bookID)
	if err != nil {
		return nil, err
	}

	b, err := s.store.GetBook(bookID)
	if err != nil {
		return nil, err
	}

	chapters, err := s.segmentWithLLM(ctx, bookID, text)
	if err != nil {
		log.Warn().Err(err).Str("book_id", bookID).Msg("LLM segmentation failed, falling back to title patterns")
		chapters, err = s.segmentByTitles(bookID, text)
		if err != nil {
			return nil, err
		}
	}

	if err := s.store.SaveChapters(bookID, chapters); err != nil {
		return nil, err
	}

	b.Status = bookmodel.StatusSegmented
	b.UpdatedAt = time.Now()
	if err := s.store.SaveBook(b); err != nil {
		return nil, err
	}

	log.Info().Str("book_id", bookID).Int("chapters", len(chapters)).Msg("book segmented")
	return chapters, nil
}

func (s *Service) segmentWithLLM(ctx context.Context, bookID, markedText string) ([]*bookmodel.Chapter, error) {
	spans, err := s.segmenter.Segment(ctx, markedText)
	if err != nil {
		return nil, err
	}

	chapters := make([]*bookmodel.Chapter, 0, len(spans))
	for i, span := range spans {
		ch := &bookmodel.Chapter{
			ID:          id.New(),
			BookID:      bookID,
			Index:       i + 1,
			Title:       span.Title,
			Summary:     span.Summary,
			StartPage:   span.StartPage,
			EndPage:     span.EndPage,
			VideoStatus: bookmodel.VideoStatusPending,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}

		chapterText := booktools.PageRange(markedText, span.StartPage, span.EndPage)
		if chapterText == "" {
			return nil, fmt.Errorf("chapter %q maps to empty page range %d-%d", span.Title, span.StartPage, span.EndPage)
		}
		if err := s.store.SaveChapterText(bookID, ch.ID, chapterText); err != nil {
			return nil, err
		}
		chapters = append(chapters, ch)
	}
	return chapters, nil
}

func (s *Service) segmentByTitles(bookID, markedText string) ([]*bookmodel.Chapter, error) {
	segments := s.splitter.Split(stripPageMarkers(markedText), 0)
	if len(segments) == 0 {
		return nil, fmt.Errorf("no chapters recognized in book %s", bookID)
	}

	chapters := make([]*bookmodel.Chapter, 0, len(segments))
	for i, seg := range segments {
		ch := &bookmodel.Chapter{
			ID:          id.New(),
			BookID:      bookID,
			Index:       i + 1,
			Title:       seg.Title,
			VideoStatus: bookmodel.VideoStatusPending,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		if err := s.store.SaveChapterText(bookID, ch.ID, seg.Text); err != nil {
			return nil, err
		}
		chapters = append(chapters, ch)
	}
	return chapters, nil
}

// GetChapters 读取章节列表
func (s *Service) GetChapters(ctx context.Context, bookID string) ([]*bookmodel.Chapter, error) {
	return s.store.GetChapters(bookID)
}

// GetChapterText 读取章节正文
func (s *Service) GetChapterText(ctx context.Context, bookID, chapterID string) (string, error) {
	return s.store.GetChapterText(bookID, chapterID)
}

// AnalyzePages 逐页分析页码区间 [first, last]，结果保存到书库
// 过短的页不请求模型，模型判定无正文内容的页不入库；单页分析失败只跳过该页
func (s *Service) AnalyzePages(ctx context.Context, bookID string, first, last int) ([]*bookmodel.PageKnowledge, error) {
	text, err := s.ExtractText(ctx, bookID)
	if err != nil {
		return nil, err
	}

	b, err := s.store.GetBook(bookID)
	if err != nil {
		return nil, err
	}
	if last <= 0 || last > b.PageCount {
		last = b.PageCount
	}
	if first < 1 {
		first = 1
	}
	if first > last {
		return nil, fmt.Errorf("invalid page range %d-%d", first, last)
	}

	pages := booktools.SplitPages(text)
	results := make([]*bookmodel.PageKnowledge, 0, last-first+1)
	for page := first; page <= last; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageText, ok := pages[page]
		if !ok || utf8.RuneCountInString(strings.TrimSpace(pageText)) < booktools.MinAnalyzablePageRunes {
			continue
		}

		knowledge, err := s.analyzer.Analyze(ctx, page, pageText)
		if err != nil {
			log.Warn().Err(err).Str("book_id", bookID).Int("page", page).Msg("page analysis skipped")
			continue
		}
		if !knowledge.HasRelevantContent {
			log.Debug().Str("book_id", bookID).Int("page", page).Msg("page has no story content, dropped")
			continue
		}
		results = append(results, &bookmodel.PageKnowledge{
			BookID:    bookID,
			Page:      knowledge.Page,
			Summary:   knowledge.Summary,
			Entities:  knowledge.Entities,
			Themes:    knowledge.Themes,
			CreatedAt: time.Now(),
		})
	}

	if err := s.store.SavePageKnowledge(bookID, results); err != nil {
		return nil, err
	}
	return results, nil
}

// GetPageKnowledge 读取按页分析结果
func (s *Service) GetPageKnowledge(ctx context.Context, bookID string) ([]*bookmodel.PageKnowledge, error) {
	return s.store.GetPageKnowledge(bookID)
}

// stripPageMarkers 去掉 [Page N] 标记行，留下纯正文
func stripPageMarkers(markedText string) string {
	lines := strings.Split(markedText, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[Page ") && strings.HasSuffix(trimmed, "]") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
