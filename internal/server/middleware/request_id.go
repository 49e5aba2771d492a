package middleware

import (
	"github.com/gin-gonic/gin"

	"mango/internal/pkg/id"
)

const requestIDHeader = "X-Request-ID"

// RequestID 请求ID中间件
// 优先使用调用方传入的 X-Request-ID，否则生成一个新的
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" || !id.IsValid(requestID) {
			requestID = id.New()
		}

		c.Set("request_id", requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}
