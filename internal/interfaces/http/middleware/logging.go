package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/logging"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/prometheus"
)

// RequestLogger logs every request and feeds the HTTP metrics. The metrics
// label uses the route template, not the raw URL, to bound cardinality.
func RequestLogger(log logging.Logger, metrics *prometheus.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()

		if metrics != nil {
			metrics.RecordHTTPRequest(c.Request.Method, path, status, duration)
		}

		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", status),
			logging.Int64("duration_ms", duration.Milliseconds()),
			logging.String("request_id", GetRequestID(c)),
		}
		switch {
		case status >= 500:
			log.Error("request failed", fields...)
		case status >= 400:
			log.Warn("request rejected", fields...)
		default:
			log.Info("request served", fields...)
		}
	}
}
