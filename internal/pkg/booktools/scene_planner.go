package booktools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Scene 分镜场景：一段剧情描述加上对应的视频生成提示词
type Scene struct {
	Description  string `json:"description"`   // 场景剧情描述（给人看）
	VisualPrompt string `json:"visual_prompt"` // 视频生成提示词（给生图/生视频模型）
}

// ScenePlanner 分镜规划器，把章节文本拆解为一组有序的场景
//
// 设计原则：
//   - 不负责落库 / 不依赖 HTTP，只负责组装 prompt 并调用上层注入的 LLM 客户端
//   - 具体的「如何调用大模型」由调用方通过 llmProvider 注入，方便单测和替换实现
type ScenePlanner struct {
	llmProvider LLMProvider
}

// NewScenePlanner 创建分镜规划器实例
func NewScenePlanner(llmProvider LLMProvider) *ScenePlanner {
	return &ScenePlanner{
		llmProvider: llmProvider,
	}
}

// Plan 将章节文本拆解为有序的分镜场景列表
//
// Args:
//   - ctx: 上下文
//   - chapterText: 章节原始文本
//
// Returns:
//   - scenes: 按剧情顺序排列的场景列表
//   - err: 错误信息
func (sp *ScenePlanner) Plan(ctx context.Context, chapterText string) ([]Scene, error) {
	if sp.llmProvider == nil {
		return nil, fmt.Errorf("llmProvider is required")
	}
	chapterText = strings.TrimSpace(chapterText)
	if chapterText == "" {
		return nil, fmt.Errorf("chapterText is empty")
	}

	prompt := buildStoryboardPrompt(chapterText)
	raw, err := sp.llmProvider.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate storyboard: %w", err)
	}

	return ParseSceneJSON(raw)
}

// sceneJSONContent 临时结构体，仅用于解析 LLM 返回的 JSON
type sceneJSONContent struct {
	Scenes []Scene `json:"scenes"`
}

// ParseSceneJSON 解析 LLM 返回的分镜 JSON
func ParseSceneJSON(raw string) ([]Scene, error) {
	cleaned := CleanJSONContent(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty storyboard response")
	}

	var content sceneJSONContent
	if err := json.Unmarshal([]byte(cleaned), &content); err != nil {
		return nil, fmt.Errorf("parse storyboard JSON: %w", err)
	}

	scenes := make([]Scene, 0, len(content.Scenes))
	for _, s := range content.Scenes {
		s.Description = strings.TrimSpace(s.Description)
		s.VisualPrompt = strings.TrimSpace(s.VisualPrompt)
		if s.Description == "" && s.VisualPrompt == "" {
			continue
		}
		// 缺失 visual_prompt 时退回用剧情描述当提示词
		if s.VisualPrompt == "" {
			s.VisualPrompt = s.Description
		}
		scenes = append(scenes, s)
	}

	if len(scenes) == 0 {
		return nil, fmt.Errorf("storyboard contains no scenes")
	}
	return scenes, nil
}

// buildStoryboardPrompt 构造分镜规划的提示词
// 要求生成 JSON 格式的结构化数据
func buildStoryboardPrompt(chapterText string) string {
	var b strings.Builder
	b.WriteString("你是一名专业的影视分镜设计师。\n")
	b.WriteString("请基于下面给出的章节内容，设计适合 AI 视频生成的分镜方案。\n\n")

	b.WriteString("【⚠️ 关键输出格式要求 - 必须严格遵守】\n")
	b.WriteString("你的输出必须是一个有效的 JSON 对象，可以直接被 json.Unmarshal() 解析。\n")
	b.WriteString("1. 输出必须以单个左花括号 { 开头，以单个右花括号 } 结尾\n")
	b.WriteString("2. 不要使用 markdown 代码块标记（绝对不要使用 ```json 或 ```）\n")
	b.WriteString("3. 不要添加任何解释、说明、注释或额外文字，只输出 JSON\n")
	b.WriteString("4. 所有键名和字符串值必须使用双引号包裹\n")
	b.WriteString("5. 绝对禁止在数组或对象的最后一个元素后添加逗号\n\n")

	b.WriteString("【输出格式】\n")
	b.WriteString("{\n")
	b.WriteString("  \"scenes\": [\n")
	b.WriteString("    {\"description\": \"场景剧情描述\", \"visual_prompt\": \"英文视频生成提示词\"},\n")
	b.WriteString("    ...\n")
	b.WriteString("  ]\n")
	b.WriteString("}\n\n")

	b.WriteString("【内容要求】\n")
	b.WriteString("1. 必须生成5-10个场景，按剧情发生顺序排列\n")
	b.WriteString("2. description 用中文描述该场景发生的剧情，1-2句话\n")
	b.WriteString("3. visual_prompt 用英文撰写，描述画面内容、镜头、光影、氛围，适合文生视频模型\n")
	b.WriteString("4. 每个场景画面独立完整，不要依赖上下文才能理解\n")
	b.WriteString("5. 不要剧透后续章节，只围绕当前章节的内容\n\n")

	b.WriteString("【章节内容】\n")
	b.WriteString(chapterText)
	b.WriteString("\n")

	return b.String()
}
