package middleware

import (
	"time"

	"geousers/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request once the handler chain returns.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"correlation_id", c.GetString(CorrelationIDKey),
		}
		switch {
		case status >= 500:
			log.Error("request", kv...)
		case status >= 400:
			log.Warn("request", kv...)
		default:
			log.Info("request", kv...)
		}
	}
}
