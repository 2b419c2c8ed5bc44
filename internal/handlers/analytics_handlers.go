package handlers

import (
	"net/http"

	"warrantyhub/internal/analytics"

	"github.com/labstack/echo/v4"
)

// AnalyticsHandlers handles HTTP requests for fleet dashboards
type AnalyticsHandlers struct {
	analyticsService *analytics.Service
}

// NewAnalyticsHandlers creates a new analytics handlers instance
func NewAnalyticsHandlers(analyticsService *analytics.Service) *AnalyticsHandlers {
	return &AnalyticsHandlers{analyticsService: analyticsService}
}

// FleetOverview handles GET /v1/analytics/fleet. Figures are best-effort:
// partitions_missing says how many dealers could not be reached.
func (h *AnalyticsHandlers) FleetOverview(c echo.Context) error {
	ctx := c.Request().Context()

	overview, err := h.analyticsService.Overview(ctx)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, overview)
}
