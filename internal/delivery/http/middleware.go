package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sentinel-cycle/engine/internal/logging"
)

const requestIDHeader = "X-Request-Id"

// LoggingMiddleware logs one line per request, mirroring the teacher's
// own request logger: method, path, status, and latency, tagged with a
// request id pulled from the incoming header or minted fresh.
func LoggingMiddleware(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger).With("http")
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		c.Next()
		logger.Info("%s %s status=%d latency=%s request_id=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), requestID)
	}
}
