package booktools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ChapterSpan 大模型识别出的章节范围
type ChapterSpan struct {
	Title     string `json:"title"`      // 章节标题
	Summary   string `json:"summary"`    // 章节内容摘要
	StartPage int    `json:"start_page"` // 起始页码（从 1 开始，含）
	EndPage   int    `json:"end_page"`   // 结束页码（含）
}

// BookSegmenter 基于大模型的章节划分器
// 输入带 [Page N] 标记的全书文本，输出章节边界
type BookSegmenter struct {
	llmProvider LLMProvider
}

// NewBookSegmenter 创建章节划分器实例
func NewBookSegmenter(llmProvider LLMProvider) *BookSegmenter {
	return &BookSegmenter{
		llmProvider: llmProvider,
	}
}

// Segment 识别带页码标记文本中的章节边界
func (bs *BookSegmenter) Segment(ctx context.Context, markedText string) ([]ChapterSpan, error) {
	if bs.llmProvider == nil {
		return nil, fmt.Errorf("llmProvider is required")
	}
	markedText = strings.TrimSpace(markedText)
	if markedText == "" {
		return nil, fmt.Errorf("markedText is empty")
	}

	prompt := buildSegmentPrompt(markedText)
	raw, err := bs.llmProvider.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate chapter segmentation: %w", err)
	}

	return parseChapterSpans(raw)
}

type chapterSpanJSONContent struct {
	Chapters []ChapterSpan `json:"chapters"`
}

func parseChapterSpans(raw string) ([]ChapterSpan, error) {
	cleaned := CleanJSONContent(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty segmentation response")
	}

	var content chapterSpanJSONContent
	if err := json.Unmarshal([]byte(cleaned), &content); err != nil {
		return nil, fmt.Errorf("parse segmentation JSON: %w", err)
	}
	if len(content.Chapters) == 0 {
		return nil, fmt.Errorf("segmentation contains no chapters")
	}

	prevEnd := 0
	for i, ch := range content.Chapters {
		if ch.StartPage < 1 || ch.EndPage < ch.StartPage {
			return nil, fmt.Errorf("chapter %d has invalid page range %d-%d", i+1, ch.StartPage, ch.EndPage)
		}
		if ch.StartPage <= prevEnd {
			return nil, fmt.Errorf("chapter %d overlaps previous chapter (start_page %d)", i+1, ch.StartPage)
		}
		prevEnd = ch.EndPage
	}

	return content.Chapters, nil
}

// buildSegmentPrompt 构造章节划分的提示词
func buildSegmentPrompt(markedText string) string {
	var b strings.Builder
	b.WriteString("你是一名专业的图书编辑。\n")
	b.WriteString("下面的文本来自一本书，其中 [Page N] 标记了每一页的开始位置。\n")
	b.WriteString("请识别这本书的章节结构，给出每个章节的标题、摘要和页码范围。\n\n")

	b.WriteString("【⚠️ 关键输出格式要求 - 必须严格遵守】\n")
	b.WriteString("你的输出必须是一个有效的 JSON 对象，可以直接被 json.Unmarshal() 解析。\n")
	b.WriteString("1. 不要使用 markdown 代码块标记，不要添加任何解释文字\n")
	b.WriteString("2. 所有键名和字符串值必须使用双引号包裹\n")
	b.WriteString("3. 绝对禁止在数组或对象的最后一个元素后添加逗号\n\n")

	b.WriteString("【输出格式】\n")
	b.WriteString("{\n")
	b.WriteString("  \"chapters\": [\n")
	b.WriteString("    {\"title\": \"章节标题\", \"summary\": \"章节摘要\", \"start_page\": 1, \"end_page\": 12},\n")
	b.WriteString("    ...\n")
	b.WriteString("  ]\n")
	b.WriteString("}\n\n")

	b.WriteString("【内容要求】\n")
	b.WriteString("1. 章节必须按页码顺序排列，页码范围不得重叠\n")
	b.WriteString("2. start_page 和 end_page 必须对应文本中的 [Page N] 标记\n")
	b.WriteString("3. summary 用 2-3 句话概括该章节的内容\n\n")

	b.WriteString("【书籍文本】\n")
	b.WriteString(markedText)
	b.WriteString("\n")

	return b.String()
}
