package booktools

import (
	"regexp"
	"strings"
)

// markdown 代码块包裹（```json ... ``` 或 ``` ... ```）
var markdownFencePattern = regexp.MustCompile(`(?s)^\s*` + "```" + `(?:json)?\s*\n(.*?)\n\s*` + "```" + `\s*$`)

// CleanJSONContent 清理 LLM 返回的 JSON 内容
// 移除 markdown 代码块标记以及 JSON 前后的说明文字
func CleanJSONContent(content string) string {
	content = strings.TrimSpace(content)

	if matches := markdownFencePattern.FindStringSubmatch(content); len(matches) > 1 {
		content = matches[1]
	}

	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// 模型偶尔会在 JSON 前后附加解释文字，截取首个 { 或 [ 到配对末尾
	if !strings.HasPrefix(content, "{") && !strings.HasPrefix(content, "[") {
		objStart := strings.Index(content, "{")
		arrStart := strings.Index(content, "[")
		start := objStart
		if start == -1 || (arrStart != -1 && arrStart < start) {
			start = arrStart
		}
		if start != -1 {
			content = content[start:]
		}
	}
	if end := strings.LastIndexAny(content, "}]"); end != -1 && end+1 < len(content) {
		content = content[:end+1]
	}

	return strings.TrimSpace(content)
}
