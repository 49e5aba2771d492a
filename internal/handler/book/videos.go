package book

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mango/internal/library"
)

// GenerateChapterVideo 为单个章节生成视频
// @Summary      生成章节视频
// @Description  分镜规划 -> 逐场景渲染 -> 拼接成片，同步执行直到完成
// @Tags         视频生成
// @Produce      json
// @Param        book_id     path      string  true  "书籍ID"
// @Param        chapter_id  path      string  true  "章节ID"
// @Success      200         {object}  map[string]interface{}  "成功响应"
// @Failure      404         {object}  ErrorResponse           "章节不存在"
// @Failure      500         {object}  ErrorResponse           "生成失败"
// @Router       /api/v1/books/{book_id}/chapters/{chapter_id}/video [post]
func (h *Handler) GenerateChapterVideo(c *gin.Context) {
	bookID := c.Param("book_id")
	chapterID := c.Param("chapter_id")

	ch, err := h.videoService.GenerateChapterVideo(c.Request.Context(), bookID, chapterID)
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
		"data": toChapterInfo(ch),
	})
}

// GenerateBookVideos 顺序为整本书的所有章节生成视频
// @Summary      生成整本书的章节视频
// @Description  逐章生成，单章失败跳过
// @Tags         视频生成
// @Produce      json
// @Param        book_id  path      string  true  "书籍ID"
// @Success      200      {object}  map[string]interface{}  "成功响应"
// @Failure      404      {object}  ErrorResponse           "书籍不存在或尚未划分章节"
// @Failure      500      {object}  ErrorResponse           "生成失败"
// @Router       /api/v1/books/{book_id}/videos [post]
func (h *Handler) GenerateBookVideos(c *gin.Context) {
	bookID := c.Param("book_id")

	chapters, err := h.videoService.GenerateBookVideos(c.Request.Context(), bookID)
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
