package config

import (
	"errors"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	AI      AIConfig      `mapstructure:"ai"`
	Log     LogConfig     `mapstructure:"log"`
	ComfyUI ComfyUIConfig `mapstructure:"comfyui"`
	Video   VideoConfig   `mapstructure:"video"`
	Library LibraryConfig `mapstructure:"library"`
	Storage StorageConfig `mapstructure:"storage"`
	PDF     PDFConfig     `mapstructure:"pdf"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AIConfig AI 服务配置
type AIConfig struct {
	Provider string          `mapstructure:"provider"`
	APIKey   string          `mapstructure:"api_key"`
	Model    string          `mapstructure:"model"`
	BaseURL  string          `mapstructure:"base_url"`
	Options  AIOptionsConfig `mapstructure:"options"`
}

// AIOptionsConfig AI 模型参数
type AIOptionsConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// ComfyUIConfig ComfyUI 渲染服务配置
// 显式传入各组件构造函数，不使用进程级单例
type ComfyUIConfig struct {
	Host            string        `mapstructure:"host"`              // host:port（如 127.0.0.1:8188）
	WorkflowJSON    string        `mapstructure:"workflow_json"`     // 工作流 JSON 模板路径
	PromptNodeTitle string        `mapstructure:"prompt_node_title"` // 提示词注入节点的 _meta.title
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`   // WebSocket 连接超时
	RenderTimeout   time.Duration `mapstructure:"render_timeout"`    // 单任务渲染等待上限
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`  // 产物下载超时
	ClipDir         string        `mapstructure:"clip_dir"`          // 片段临时目录
}

// VideoConfig 视频拼接配置
type VideoConfig struct {
	OutputDir         string `mapstructure:"output_dir"`         // 成片输出目录
	Width             int    `mapstructure:"width"`              // 目标宽度
	Height            int    `mapstructure:"height"`             // 目标高度
	FPS               int    `mapstructure:"fps"`                // 目标帧率
	RenderConcurrency int    `mapstructure:"render_concurrency"` // 渲染并发上限（默认 1，渲染服务一次只处理一个会话）
}

// LibraryConfig 书库配置（文件系统持久化）
type LibraryConfig struct {
	Dir string `mapstructure:"dir"` // 书库根目录
}

// PDFConfig PDF 文本提取配置
type PDFConfig struct {
	PdftotextPath string `mapstructure:"pdftotext_path"` // pdftotext 可执行文件路径（默认: pdftotext）
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type  string       `mapstructure:"type"` // local, oss
	Local *LocalConfig `mapstructure:"local,omitempty"`
	OSS   *OSSConfig   `mapstructure:"oss,omitempty"`
}

// LocalConfig 本地文件系统配置
type LocalConfig struct {
	BasePath      string `mapstructure:"base_path"`      // 基础路径
	BaseURL       string `mapstructure:"base_url"`       // 基础URL（用于生成访问URL）
	PresignExpiry int    `mapstructure:"presign_expiry"` // 预签名URL过期时间（秒）
}

// OSSConfig 阿里云OSS配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`          // OSS端点
	Bucket          string `mapstructure:"bucket"`            // Bucket名称
	AccessKeyID     string `mapstructure:"access_key_id"`     // AccessKey ID
	AccessKeySecret string `mapstructure:"access_key_secret"` // AccessKey Secret
	PresignExpiry   int    `mapstructure:"presign_expiry"`    // 预签名URL过期时间（秒）
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	if c.ComfyUI.Host == "" {
		return errors.New("comfyui host is required")
	}
	if c.ComfyUI.PromptNodeTitle == "" {
		return errors.New("comfyui prompt node title is required")
	}
	if c.Video.RenderConcurrency <= 0 {
		return errors.New("video render concurrency must be >= 1")
	}

	return nil
}
