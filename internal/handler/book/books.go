package book

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mango/internal/library"
)

// UploadBook 上传并入库一本 PDF
// @Summary      上传书籍
// @Description  上传 PDF 文件并收入书库
// @Tags         书籍管理
// @Accept       multipart/form-data
// @Produce      json
// @Param        file    formData  file    true   "PDF 文件"
// @Param        title   formData  string  false  "书名（缺省取文件名）"
// @Param        author  formData  string  false  "作者"
// @Success      200  {object}  map[string]interface{}  "成功响应"
// @Failure      400  {object}  ErrorResponse           "请求参数错误"
// @Failure      500  {object}  ErrorResponse           "服务器内部错误"
// @Router       /api/v1/books [post]
func (h *Handler) UploadBook(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    40001,
			Message: "file is required",
		})
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    40002,
			Message: "only PDF files are supported",
		})
		return
	}

	tmpDir, err := os.MkdirTemp("", "mango-upload-*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    50001,
			Message: err.Error(),
		})
		return
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, filepath.Base(fileHeader.Filename))
	if err := c.SaveUploadedFile(fileHeader, tmpPath); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    50002,
			Message: err.Error(),
		})
		return
	}

	b, err := h.bookService.Ingest(c.Request.Context(), tmpPath, c.PostForm("title"), c.PostForm("author"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    50003,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": toBookInfo(b),
	})
}

// ListBooks 列出书库中的所有书籍
// @Summary      书籍列表
// @Tags         书籍管理
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "成功响应"
// @Failure      500  {object}  ErrorResponse           "服务器内部错误"
// @Router       /api/v1/books [get]
func (h *Handler) ListBooks(c *gin.Context) {
	books, err := h.bookService.ListBooks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    50001,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": toBookInfoList(books),
	})
}

// GetBook 获取书籍详情
// @Summary      书籍详情
// @Tags         书籍管理
// @Produce      json
// @Param        book_id  path      string  true  "书籍ID"
// @Success      200      {object}  map[string]interface{}  "成功响应"
// @Failure      404      {object}  ErrorResponse           "书籍不存在"
// @Router       /api/v1/books/{book_id} [get]
func (h *Handler) GetBook(c *gin.Context) {
	bookID := c.Param("book_id")

	b, err := h.bookService.GetBook(c.Request.Context(), bookID)
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
		"data": toBookInfo(b),
	})
}

// AnalyzePages 逐页分析书籍的页码区间
// @Summary      按页分析
// @Description  对页码区间 [first, last] 逐页抽取摘要、实体和主题
// @Tags         书籍管理
// @Produce      json
// @Param        book_id  path      string  true   "书籍ID"
// @Param        first    query     int     false  "起始页码（默认 1）"
// @Param        last     query     int     false  "结束页码（默认最后一页）"
// @Success      200      {object}  map[string]interface{}  "成功响应"
// @Failure      400      {object}  ErrorResponse           "请求参数错误"
// @Failure      500      {object}  ErrorResponse           "服务器内部错误"
// @Router       /api/v1/books/{book_id}/analyze [post]
func (h *Handler) AnalyzePages(c *gin.Context) {
	bookID := c.Param("book_id")

	first, _ := strconv.Atoi(c.DefaultQuery("first", "1"))
	last, _ := strconv.Atoi(c.DefaultQuery("last", "0"))

	pages, err := h.bookService.AnalyzePages(c.Request.Context(), bookID, first, last)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    50001,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": toPageKnowledgeList(pages),
	})
}

// GetPageKnowledge 获取按页分析结果
// @Summary      按页分析结果
// @Tags         书籍管理
// @Produce      json
// @Param        book_id  path      string  true  "书籍ID"
// @Success      200      {object}  map[string]interface{}  "成功响应"
// @Failure      500      {object}  ErrorResponse           "服务器内部错误"
// @Router       /api/v1/books/{book_id}/pages [get]
func (h *Handler) GetPageKnowledge(c *gin.Context) {
	bookID := c.Param("book_id")

	pages, err := h.bookService.GetPageKnowledge(c.Request.Context(), bookID)
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
		"data": toPageKnowledgeList(pages),
	})
}
