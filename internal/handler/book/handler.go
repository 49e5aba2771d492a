// Package book 书籍相关的 HTTP 接口
package book

import (
	"context"

	bookmodel "mango/internal/model/book"
)

// BookService 书籍服务接口
type BookService interface {
	Ingest(ctx context.Context, pdfPath, title, author string) (*bookmodel.Book, error)
	GetBook(ctx context.Context, bookID string) (*bookmodel.Book, error)
	ListBooks(ctx context.Context) ([]*bookmodel.Book, error)
	ExtractText(ctx context.Context, bookID string) (string, error)
	SegmentChapters(ctx context.Context, bookID string) ([]*bookmodel.Chapter, error)
	GetChapters(ctx context.Context, bookID string) ([]*bookmodel.Chapter, error)
	GetChapterText(ctx context.Context, bookID, chapterID string) (string, error)
	AnalyzePages(ctx context.Context, bookID string, first, last int) ([]*bookmodel.PageKnowledge, error)
	GetPageKnowledge(ctx context.Context, bookID string) ([]*bookmodel.PageKnowledge, error)
}

// VideoService 章节视频服务接口
type VideoService interface {
	GenerateChapterVideo(ctx context.Context, bookID, chapterID string) (*bookmodel.Chapter, error)
	GenerateBookVideos(ctx context.Context, bookID string) ([]*bookmodel.Chapter, error)
}

// Handler 书籍接口处理器
type Handler struct {
	bookService  BookService
	videoService VideoService
}

// NewHandler 创建书籍接口处理器
func NewHandler(bookService BookService, videoService VideoService) *Handler {
	return &Handler{
		bookService:  bookService,
		videoService: videoService,
	}
}
