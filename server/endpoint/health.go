// Package endpoint provides the system endpoints of the captiongen server.
package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/captiongen/component"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// HealthResponse is the /health body.
type HealthResponse struct {
	Status     string             `json:"status"`
	Service    string             `json:"service"`
	Timestamp  string             `json:"timestamp"`
	Components []component.Health `json:"components"`
}

// Health returns a handler that reports service health including component
// statuses. Any unhealthy component makes the response 503; degraded ones
// are reported with 200.
func Health(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := string(component.StatusHealthy)
		components := []component.Health{}

		if checker != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			components = checker(ctx)
			cancel()
			for _, ch := range components {
				if ch.Status == component.StatusUnhealthy {
					status = string(component.StatusUnhealthy)
					break
				}
				if ch.Status == component.StatusDegraded {
					status = string(component.StatusDegraded)
				}
			}
		}

		httpStatus := http.StatusOK
		if status == string(component.StatusUnhealthy) {
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, HealthResponse{
			Status:     status,
			Service:    serviceName,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Components: components,
		})
	}
}
