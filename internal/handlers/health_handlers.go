package handlers

import (
	"net/http"
	"runtime"
	"time"

	"warrantyhub/internal/tenancy"

	"github.com/labstack/echo/v4"
)

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	registry *tenancy.Registry
}

// NewHealthHandlers creates a new health handlers instance
func NewHealthHandlers(registry *tenancy.Registry) *HealthHandlers {
	return &HealthHandlers{registry: registry}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// LivenessCheck handles GET /health. It answers as long as the process is
// up; dependency state is the readiness check's business.
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /health/ready. The master database is the
// only hard dependency: without it nothing can be routed, provisioned or
// listed. Dealer databases are checked lazily per request.
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx := c.Request().Context()

	health := &HealthStatus{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
	}
	if err := h.registry.Master().Ping(ctx); err != nil {
		health.Status = "not_ready"
		health.Services["master_database"] = "unreachable"
		return c.JSON(http.StatusServiceUnavailable, health)
	}
	health.Services["master_database"] = "healthy"
	return c.JSON(http.StatusOK, health)
}

// DetailedHealthCheck handles GET /health/detailed with registry and
// runtime internals for operators.
func (h *HealthHandlers) DetailedHealthCheck(c echo.Context) error {
	ctx := c.Request().Context()

	masterStatus := "healthy"
	status := http.StatusOK
	overall := "healthy"
	if err := h.registry.Master().Ping(ctx); err != nil {
		masterStatus = "unreachable"
		overall = "degraded"
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, map[string]interface{}{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": map[string]string{
			"master_database": masterStatus,
		},
		"registry": map[string]interface{}{
			"open_tenant_handles": h.registry.Open(),
		},
		"goroutines": runtime.NumGoroutine(),
	})
}
