package book

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mango/internal/library"
)

// SegmentChapters 划分章节
// @Summary      章节划分
// @Description  提取全书文本（带缓存）并划分章节
// @Tags         章节管理
// @Produce      json
// @Param        book_id  path      string  true  "书籍ID"
// @Success      200      {object}  map[string]interface{}  "成功响应"
// @Failure      500      {object}  ErrorResponse           "服务器内部错误"
// @Router       /api/v1/books/{book_id}/chapters [post]
func (h *Handler) SegmentChapters(c *gin.Context) {
	bookID := c.Param("book_id")

	chapters, err := h.bookService.SegmentChapters(c.Request.Context(), bookID)
	if err != nil {
		status, code := http.StatusInternalServerError, 50001
		if errors.Is(err, library.ErrNotFound) {
			status, code = http.StatusNotFound, 40401
		}
		c.JSON(status, ErrorResponse{Code: code, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": toChapterInfoList(chapters),
	})
}

// GetChapters 获取章节列表
// @Summary      章节列表
// @Tags         章节管理
// @Produce      json
// @Param        book_id  path      string  true  "书籍ID"
// @Success      200      {object}  map[string]interface{}  "成功响应"
// @Failure      404      {object}  ErrorResponse           "书籍不存在或尚未划分章节"
// @Router       /api/v1/books/{book_id}/chapters [get]
func (h *Handler) GetChapters(c *gin.Context) {
	bookID := c.Param("book_id")

	chapters, err := h.bookService.GetChapters(c.Request.Context(), bookID)
	if err != nil {
		status, code := http.StatusInternalServerError, 50001
		if errors.Is(err, library.ErrNotFound) {
			status, code = http.StatusNotFound, 40401
		}
		c.JSON(status, ErrorResponse{Code: code, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": toChapterInfoList(chapters),
	})
}

// GetChapterText 获取章节正文
// @Summary      章节正文
// @Tags         章节管理
// @Produce      json
// @Param        book_id     path      string  true  "书籍ID"
// @Param        chapter_id  path      string  true  "章节ID"
// @Success      200         {object}  map[string]interface{}  "成功响应"
// @Failure      404         {object}  ErrorResponse           "章节不存在"
// @Router       /api/v1/books/{book_id}/chapters/{chapter_id}/text [get]
func (h *Handler) GetChapterText(c *gin.Context) {
	bookID := c.Param("book_id")
	chapterID := c.Param("chapter_id")

	text, err := h.bookService.GetChapterText(c.Request.Context(), bookID, chapterID)
	if err != nil {
		status, code := http.StatusInternalServerError, 50001
		if errors.Is(err, library.ErrNotFound) {
			status, code = http.StatusNotFound, 40401
		}
		c.JSON(status, ErrorResponse{Code: code, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": gin.H{
			"book_id":    bookID,
			"chapter_id": chapterID,
			"text":       text,
		},
	})
}
