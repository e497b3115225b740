package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NodeHeaderMiddleware stamps every response with the serving node so load
// drivers can verify bid routing.
func NodeHeaderMiddleware(nodeNumber int64) gin.HandlerFunc {
	node := strconv.FormatInt(nodeNumber, 10)
	return func(c *gin.Context) {
		c.Header("X-Gavel-Node", node)
		c.Next()
	}
}

func RequestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		switch {
		case status >= 500:
			zap.L().Error("http request", fields...)
		case status >= 400:
			zap.L().Warn("http request", fields...)
		default:
			zap.L().Debug("http request", fields...)
		}
	}
}
