package book

import (
	"time"

	bookmodel "mango/internal/model/book"
	httputil "mango/internal/pkg/http"
)

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// BookInfo 书籍信息 DTO
type BookInfo struct {
	ID        string `json:"id"`               // 书籍ID
	Title     string `json:"title,omitempty"`  // 书名
	Author    string `json:"author,omitempty"` // 作者
	PageCount int    `json:"page_count"`       // 总页数
	WordCount int    `json:"word_count"`       // 全书词数
	Status    string `json:"status"`           // 处理状态
	CreatedAt string `json:"created_at"`       // 创建时间
	UpdatedAt string `json:"updated_at"`       // 更新时间
}

func toBookInfo(b *bookmodel.Book) BookInfo {
	return BookInfo{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		PageCount: b.PageCount,
		WordCount: b.WordCount,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
		UpdatedAt: b.UpdatedAt.Format(time.RFC3339),
	}
}

func toBookInfoList(books []*bookmodel.Book) []BookInfo {
	list := make([]BookInfo, len(books))
	for i, b := range books {
		list[i] = toBookInfo(b)
	}
	return list
}

// ChapterInfo 章节信息 DTO
type ChapterInfo struct {
	ID          string  `json:"id"`                   // 章节ID
	BookID      string  `json:"book_id"`              // 书籍ID
	Index       int     `json:"index"`                // 章节序号
	Title       string  `json:"title"`                // 章节标题
	Summary     string  `json:"summary,omitempty"`    // 章节摘要
	StartPage   int     `json:"start_page,omitempty"` // 起始页码
	EndPage     int     `json:"end_page,omitempty"`   // 结束页码
	VideoStatus string  `json:"video_status"`         // 视频生成状态
	VideoPath   string  `json:"video_path,omitempty"` // 成片本地路径
	VideoURL    string  `json:"video_url,omitempty"`  // 成片访问URL
	Duration    float64 `json:"duration,omitempty"`   // 成片时长（秒）
	CreatedAt   string  `json:"created_at"`           // 创建时间
	UpdatedAt   string  `json:"updated_at"`           // 更新时间
}

func toChapterInfo(ch *bookmodel.Chapter) ChapterInfo {
	return ChapterInfo{
		ID:          ch.ID,
		BookID:      ch.BookID,
		Index:       ch.Index,
		Title:       ch.Title,
		Summary:     ch.Summary,
		StartPage:   ch.StartPage,
		EndPage:     ch.EndPage,
		VideoStatus: string(ch.VideoStatus),
		VideoPath:   ch.VideoPath,
		VideoURL:    ch.VideoURL,
		Duration:    ch.Duration,
		CreatedAt:   ch.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   ch.UpdatedAt.Format(time.RFC3339),
	}
}

func toChapterInfoList(chapters []*bookmodel.Chapter) []ChapterInfo {
	list := make([]ChapterInfo, len(chapters))
	for i, ch := range chapters {
		list[i] = toChapterInfo(ch)
	}
	return list
}

// PageKnowledgeInfo 按页分析结果 DTO
type PageKnowledgeInfo struct {
	Page     int      `json:"page"`               // 页码
	Summary  string   `json:"summary"`            // 摘要
	Entities []string `json:"entities,omitempty"` // 实体
	Themes   []string `json:"themes,omitempty"`   // 主题
}

func toPageKnowledgeList(pages []*bookmodel.PageKnowledge) []PageKnowledgeInfo {
	list := make([]PageKnowledgeInfo, len(pages))
	for i, p := range pages {
		list[i] = PageKnowledgeInfo{
			Page:     p.Page,
			Summary:  p.Summary,
			Entities: p.Entities,
			Themes:   p.Themes,
		}
	}
	return list
}
