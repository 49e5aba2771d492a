package booktools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MinAnalyzablePageRunes 送入模型分析的最小页面字符数
// 短于该值的页（空白页、页眉残留等）直接跳过，不消耗模型调用
const MinAnalyzablePageRunes = 50

// PageKnowledge 单页文本的结构化分析结果
type PageKnowledge struct {
	Page               int      `json:"page"`                 // 页码（从 1 开始）
	Summary            string   `json:"summary"`              // 本页内容摘要
	Entities           []string `json:"entities"`             // 本页出现的人物/地点/物品
	Themes             []string `json:"themes"`               // 本页涉及的主题
	HasRelevantContent bool     `json:"has_relevant_content"` // 本页是否包含正文内容（目录/版权页为 false）
}

// PageAnalyzer 按页分析器，逐页抽取知识点
type PageAnalyzer struct {
	llmProvider LLMProvider
}

// NewPageAnalyzer 创建按页分析器实例
func NewPageAnalyzer(llmProvider LLMProvider) *PageAnalyzer {
	return &PageAnalyzer{
		llmProvider: llmProvider,
	}
}

// Analyze 分析单页文本，返回结构化知识
func (pa *PageAnalyzer) Analyze(ctx context.Context, page int, pageText string) (*PageKnowledge, error) {
	if pa.llmProvider == nil {
		return nil, fmt.Errorf("llmProvider is required")
	}
	if page < 1 {
		return nil, fmt.Errorf("invalid page number %d", page)
	}
	pageText = strings.TrimSpace(pageText)
	if pageText == "" {
		return nil, fmt.Errorf("pageText is empty")
	}

	prompt := buildPageAnalysisPrompt(page, pageText)
	raw, err := pa.llmProvider.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("analyze page %d: %w", page, err)
	}

	cleaned := CleanJSONContent(raw)
	var knowledge PageKnowledge
	if err := json.Unmarshal([]byte(cleaned), &knowledge); err != nil {
		return nil, fmt.Errorf("parse page %d analysis JSON: %w", page, err)
	}

	knowledge.Page = page
	return &knowledge, nil
}

func buildPageAnalysisPrompt(page int, pageText string) string {
	var b strings.Builder
	b.WriteString("你是一名专业的文本分析助手。\n")
	fmt.Fprintf(&b, "请分析下面这本书第 %d 页的内容，抽取摘要、实体和主题。\n", page)
	b.WriteString("关注情节、人物、背景和重要对话；目录、版权页、空白页等非正文内容将 has_relevant_content 置为 false。\n\n")

	b.WriteString("【⚠️ 关键输出格式要求 - 必须严格遵守】\n")
	b.WriteString("你的输出必须是一个有效的 JSON 对象，可以直接被 json.Unmarshal() 解析。\n")
	b.WriteString("不要使用 markdown 代码块标记，不要添加任何解释文字。\n\n")

	b.WriteString("【输出格式】\n")
	b.WriteString("{\n")
	b.WriteString("  \"summary\": \"本页内容摘要\",\n")
	b.WriteString("  \"entities\": [\"实体1\", \"实体2\"],\n")
	b.WriteString("  \"themes\": [\"主题1\"],\n")
	b.WriteString("  \"has_relevant_content\": true\n")
	b.WriteString("}\n\n")

	b.WriteString("【页面文本】\n")
	b.WriteString(pageText)
	b.WriteString("\n")

	return b.String()
}
