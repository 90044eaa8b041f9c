package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"resto-pos/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, echoes it back and makes it
// available to service logs through the request context.
func RequestID(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = logger.GenerateRequestID()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))

		start := time.Now()
		c.Next()

		if log != nil {
			log.Debug(c.Request.Context(), "http_request", "request handled",
				slog.String("method", c.Request.Method),
				slog.String("path", c.FullPath()),
				slog.Int("status", c.Writer.Status()),
				slog.Duration("latency", time.Since(start)))
		}
	}
}
