package comfyui

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrPromptNodeNotFound 工作流模板中找不到提示词注入节点
// 属于配置错误：模板与期望结构不符，任务不可能成功
var ErrPromptNodeNotFound = errors.New("prompt node not found in workflow")

// Workflow 工作流模板：节点ID → 节点定义
// 节点定义结构为 {"inputs": {...}, "_meta": {"title": string}, ...}
// 模板只读，提交任务前必须先 Clone
type Workflow map[string]map[string]interface{}

// LoadWorkflow 加载工作流 JSON 模板
func LoadWorkflow(path string) (Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow JSON: %w", err)
	}

	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("unmarshal workflow JSON: %w", err)
	}

	return wf, nil
}

// Clone 深拷贝工作流（JSON 往返）
// 每个渲染任务拿到独立副本，跨任务不共享可变状态
func (w Workflow) Clone() (Workflow, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow: %w", err)
	}

	var clone Workflow
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("unmarshal workflow copy: %w", err)
	}

	return clone, nil
}

// SetPromptText 将提示词写入 _meta.title 等于 nodeTitle 的节点的 inputs.text
// 找不到匹配节点时返回 ErrPromptNodeNotFound
func (w Workflow) SetPromptText(nodeTitle, text string) error {
	for _, node := range w {
		meta, _ := node["_meta"].(map[string]interface{})
		title, _ := meta["title"].(string)
		if title != nodeTitle {
			continue
		}

		inputs, ok := node["inputs"].(map[string]interface{})
		if !ok {
			inputs = map[string]interface{}{}
			node["inputs"] = inputs
		}
		inputs["text"] = text
		return nil
	}

	return fmt.Errorf("%w: title %q", ErrPromptNodeNotFound, nodeTitle)
}
