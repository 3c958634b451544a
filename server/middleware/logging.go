package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/captiongen/logger"
)

// RequestRecorder receives one observation per completed request.
type RequestRecorder interface {
	RecordRequest(ctx context.Context, method, route string, status int, d time.Duration)
}

const slowRequest = 5 * time.Second

// RequestLogger logs every request with its matched route, status and
// latency, and reports it to rec when rec is non-nil. Health checks are
// recorded but not logged.
func RequestLogger(log *logger.Logger, rec RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx := c.Request.Context()
		if rec != nil {
			rec.RecordRequest(ctx, c.Request.Method, route, status, latency)
		}
		if route == "/health" && status < 500 {
			return
		}

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"route":      route,
			"status":     status,
			"latency_ms": latency.Milliseconds(),
			"client":     c.ClientIP(),
			"bytes":      c.Writer.Size(),
		}
		if latency > slowRequest {
			fields["slow"] = true
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			fields["error"] = errs.String()
		}

		l := log.WithContext(ctx)
		switch {
		case status >= 500:
			l.Error("Request completed", fields)
		case status >= 400:
			l.Warn("Request completed", fields)
		default:
			l.Info("Request completed", fields)
		}
	}
}
