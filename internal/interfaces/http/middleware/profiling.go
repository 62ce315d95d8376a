package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/leorit/backend/internal/infrastructure/telemetry"
)

// Profiling attaches pyroscope labels (route template, method, actor role)
// to the goroutine serving the request. Place it after JWTAuthMiddleware so
// that the role is known. Health probes are not labelled.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || route == "/health" || route == "/ready" {
			c.Next()
			return
		}
		role := ""
		if actor, ok := GetActor(c); ok {
			role = actor.Role.String()
		}
		labels := telemetry.HTTPRequestLabels(route, c.Request.Method, role)
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
