package booktools

import (
	"bufio"
	"regexp"
	"strings"
)

// ChapterSegment 表示按章节切分后的一段内容
type ChapterSegment struct {
	Title string // 章节标题（如无法识别标题则为内容前若干字）
	Text  string // 章节全文
}

// ChapterSplitter 章节切分器，用于在大模型不可用时按标题模式切分书籍内容
type ChapterSplitter struct {
	// 默认目标章节数（当 targetChapters <= 0 时使用）
	defaultTargetChapters int
	// 最小章节长度（字符数），小于此长度的章节会被过滤
	// 0 表示只要不为空就保留（默认）
	minChapterLength int
}

// NewChapterSplitter 创建章节切分器实例
func NewChapterSplitter() *ChapterSplitter {
	return &ChapterSplitter{
		defaultTargetChapters: 50,
		minChapterLength:      0,
	}
}

// SetMinChapterLength 设置最小章节长度（字符数）
// 小于此长度的章节会被过滤，0 表示只要不为空就保留
func (cs *ChapterSplitter) SetMinChapterLength(length int) {
	cs.minChapterLength = length
}

// Split 将书籍内容切分为若干章节
//
// 逻辑：
//  1. 先按常见章节标题模式切分（第X章 / Chapter N / 章节 N）
//  2. 若识别到章节标题，保持一章一章切分，章节数超过 targetChapters 时只保留前 targetChapters 章
//  3. 若无法识别章节标题，则按长度平均切分为 targetChapters 段
func (cs *ChapterSplitter) Split(bookContent string, targetChapters int) []ChapterSegment {
	bookContent = normalizeBookText(bookContent)
	if bookContent == "" {
		return nil
	}
	if targetChapters <= 0 {
		targetChapters = cs.defaultTargetChapters
	}

	if chunks := splitByChapterTitles(bookContent, cs.minChapterLength); len(chunks) >= 2 {
		if len(chunks) > targetChapters {
			chunks = chunks[:targetChapters]
		}
		return wrapSegments(chunks)
	}

	chunks := splitByLength(bookContent, targetChapters)
	return wrapSegments(chunks)
}

func normalizeBookText(s string) string {
	// 折叠连续空行为一个，保留段落边界
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !blank {
				out = append(out, "")
				blank = true
			}
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

var chapterTitlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^第[一二三四五六七八九十百千万0-9\d]+章[^\n]*`),
	regexp.MustCompile(`(?im)^chapter\s*\d+[^\n]*`),
	regexp.MustCompile(`(?im)^章节\s*\d+[^\n]*`),
}

func splitByChapterTitles(bookContent string, minLength int) []string {
	var matches []int
	for _, re := range chapterTitlePatterns {
		idxs := re.FindAllStringIndex(bookContent, -1)
		if len(idxs) >= 2 {
			for _, idx := range idxs {
				matches = append(matches, idx[0])
			}
			break
		}
	}
	if len(matches) < 2 {
		return nil
	}

	matches = uniqueSortedInts(matches)
	var chapters []string
	for i := 0; i < len(matches); i++ {
		start := matches[i]
		end := len(bookContent)
		if i+1 < len(matches) {
			end = matches[i+1]
		}
		ch := strings.TrimSpace(bookContent[start:end])
		if ch == "" {
			continue
		}
		if minLength > 0 && len([]rune(ch)) < minLength {
			continue
		}
		chapters = append(chapters, ch)
	}
	return chapters
}

func splitByLength(bookContent string, targetChapters int) []string {
	r := []rune(bookContent)
	total := len(r)
	if total == 0 {
		return nil
	}
	chunk := total / targetChapters
	if chunk <= 0 {
		return []string{bookContent}
	}

	chapters := make([]string, 0, targetChapters)
	for i := 0; i < targetChapters; i++ {
		start := i * chunk
		end := (i + 1) * chunk
		if i == targetChapters-1 || end > total {
			end = total
		}
		part := strings.TrimSpace(string(r[start:end]))
		if part != "" {
			chapters = append(chapters, part)
		}
	}
	return chapters
}

func uniqueSortedInts(a []int) []int {
	if len(a) == 0 {
		return a
	}
	m := make(map[int]struct{}, len(a))
	for _, v := range a {
		m[v] = struct{}{}
	}
	out := make([]int, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

func extractChapterTitle(text string) string {
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		for _, re := range chapterTitlePatterns {
			if re.MatchString(line) {
				return line
			}
		}
		if len([]rune(line)) > 30 {
			return string([]rune(line)[:30])
		}
		return line
	}
	return ""
}

func wrapSegments(chunks []string) []ChapterSegment {
	segments := make([]ChapterSegment, 0, len(chunks))
	for _, ch := range chunks {
		segments = append(segments, ChapterSegment{
			Title: extractChapterTitle(ch),
			Text:  ch,
		})
	}
	return segments
}
