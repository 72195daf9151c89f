package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"musicez/internal/handlers/render"
)

// HealthChecker is anything that can report its own health
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Health statuses
const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ComponentHealth is the state of one dependency
type ComponentHealth struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency int64  `json:"latencyMs"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// AdminHandler serves operational endpoints
type AdminHandler struct {
	catalog HealthChecker
	cache   HealthChecker
	timeout time.Duration
}

// NewAdminHandler creates a new admin handler. cache may be nil.
func NewAdminHandler(catalog, cache HealthChecker) *AdminHandler {
	return &AdminHandler{
		catalog: catalog,
		cache:   cache,
		timeout: 2 * time.Second,
	}
}

// Health handles GET /health. The catalog is required; a cache outage only
// degrades the service because searches fall through to the catalog.
func (h *AdminHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:     StatusOK,
		Components: make(map[string]ComponentHealth, 2),
		Timestamp:  render.Now(),
	}

	catalog := check(ctx, h.catalog)
	resp.Components["mongodb"] = catalog
	if catalog.Status != StatusOK {
		resp.Status = StatusUnhealthy
	}

	if h.cache != nil {
		cache := check(ctx, h.cache)
		resp.Components["cache"] = cache
		if cache.Status != StatusOK && resp.Status == StatusOK {
			resp.Status = StatusDegraded
		}
	}

	status := http.StatusOK
	if resp.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
		slog.Error("Health check failed", "components", resp.Components)
	}
	c.JSON(status, resp)
}

func check(ctx context.Context, checker HealthChecker) ComponentHealth {
	if checker == nil {
		return ComponentHealth{Status: StatusUnhealthy, Error: "not configured"}
	}
	start := time.Now()
	err := checker.Health(ctx)
	result := ComponentHealth{Status: StatusOK, Latency: time.Since(start).Milliseconds()}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	}
	return result
}
