package comfyui

import (
	"time"

	"github.com/google/uuid"
)

// Config ComfyUI 客户端配置
// 显式传入 NewClient，不使用包级可变状态
type Config struct {
	Host            string        // 渲染服务地址（host:port，如 127.0.0.1:8188）
	ClientID        string        // 会话ID（为空时自动生成 UUID）
	PromptNodeTitle string        // 提示词注入节点的 _meta.title
	ConnectTimeout  time.Duration // WebSocket 连接超时
	RenderTimeout   time.Duration // 等待 executed 事件的上限，超时返回 ErrRenderTimeout
	DownloadTimeout time.Duration // 单次产物下载超时
	ClipDir         string        // 下载片段的暂存目录

	// OnProgress 渲染进度回调（可选）
	// 对应渲染服务的 progress 事件，value/max 为当前进度
	OnProgress func(value, max int)
}

// withDefaults 补齐缺省配置
func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "127.0.0.1:8188"
	}
	if c.ClientID == "" {
		c.ClientID = uuid.New().String()
	}
	if c.PromptNodeTitle == "" {
		c.PromptNodeTitle = "Prompt_Input_Node"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 15 * time.Second
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = 10 * time.Minute
	}
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = 2 * time.Minute
	}
	if c.ClipDir == "" {
		c.ClipDir = "temp_clips"
	}
	return c
}
