package book

import "time"

// Status 书籍处理状态
type Status string

const (
	StatusUploaded  Status = "uploaded"  // 已上传，尚未提取文本
	StatusExtracted Status = "extracted" // 已提取文本
	StatusSegmented Status = "segmented" // 已完成章节划分
)

// VideoStatus 章节视频生成状态
type VideoStatus string

const (
	VideoStatusPending    VideoStatus = "pending"    // 未生成
	VideoStatusGenerating VideoStatus = "generating" // 生成中
	VideoStatusCompleted  VideoStatus = "completed"  // 生成完成
	VideoStatusFailed     VideoStatus = "failed"     // 生成失败
	VideoStatusEmpty      VideoStatus = "empty"      // 无可用片段，未产出视频
)

// Book 书籍实体（主表）
type Book struct {
	ID string `json:"id"` // 书籍ID（UUID）

	// 元数据
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`

	// 原始 PDF 文件路径
	PDFPath string `json:"pdf_path"`

	PageCount int `json:"page_count"` // 总页数
	WordCount int `json:"word_count"` // 全书词数（提取文本后统计）

	Status Status `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Chapter 章节实体
type Chapter struct {
	ID     string `json:"id"`      // 章节ID（UUID）
	BookID string `json:"book_id"` // 所属书籍ID

	Index   int    `json:"index"` // 章节序号（从 1 开始）
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`

	// 页码范围（从 1 开始，含两端）
	StartPage int `json:"start_page"`
	EndPage   int `json:"end_page"`

	// 章节视频
	VideoStatus VideoStatus `json:"video_status"`
	VideoPath   string      `json:"video_path,omitempty"` // 本地成片路径
	VideoURL    string      `json:"video_url,omitempty"`  // 上传存储后的访问URL
	Duration    float64     `json:"duration,omitempty"`   // 成片时长（秒）

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageKnowledge 单页分析结果
type PageKnowledge struct {
	BookID   string   `json:"book_id"`
	Page     int      `json:"page"` // 页码（从 1 开始）
	Summary  string   `json:"summary"`
	Entities []string `json:"entities,omitempty"`
	Themes   []string `json:"themes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
