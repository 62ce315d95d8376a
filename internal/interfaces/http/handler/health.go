package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leorit/backend/internal/interfaces/http/dto"
)

// HealthCheck probes one dependency
type HealthCheck struct {
	Name string
	// Critical checks fail liveness; the rest only degrade readiness
	Critical bool
	Check    func(ctx context.Context) error
}

// HealthHandler serves liveness, readiness and build information
type HealthHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	timeout   time.Duration
	checks    []HealthCheck
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(name, version string, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		timeout:   2 * time.Second,
		checks:    checks,
	}
}

// HealthResponse is the body of the health and readiness probes
type HealthResponse struct {
	Status    string            `json:"status" example:"healthy"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// SystemInfoResponse describes the running build
type SystemInfoResponse struct {
	Name      string `json:"name" example:"leorit-orders"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// Health godoc
// @Summary      Liveness probe; pings the database
// @Tags         system
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	h.probe(c, true)
}

// Ready godoc
// @Summary      Readiness probe; runs every dependency check
// @Tags         system
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} HealthResponse
// @Router       /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	h.probe(c, false)
}

func (h *HealthHandler) probe(c *gin.Context, criticalOnly bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Checks:    make(map[string]string, len(h.checks)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	for _, check := range h.checks {
		if criticalOnly && !check.Critical {
			continue
		}
		if err := check.Check(ctx); err != nil {
			resp.Checks[check.Name] = "unhealthy: " + err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name] = "healthy"
	}
	c.JSON(status, resp)
}

// GetSystemInfo godoc
// @Summary      Build and uptime information
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Security     BearerAuth
// @Router       /system/info [get]
func (h *HealthHandler) GetSystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}))
}
