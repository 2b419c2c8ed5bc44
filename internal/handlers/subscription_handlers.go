package handlers

import (
	"net/http"

	"warrantyhub/internal/common"
	"warrantyhub/internal/services"

	"github.com/labstack/echo/v4"
)

// SubscriptionHandlers handles HTTP requests for dealer subscriptions
type SubscriptionHandlers struct {
	subscriptionService services.SubscriptionService
}

// NewSubscriptionHandlers creates a new subscription handlers instance
func NewSubscriptionHandlers(subscriptionService services.SubscriptionService) *SubscriptionHandlers {
	return &SubscriptionHandlers{subscriptionService: subscriptionService}
}

// ListDealerSubscriptions handles GET /v1/dealers/:id/subscriptions
func (h *SubscriptionHandlers) ListDealerSubscriptions(c echo.Context) error {
	ctx := c.Request().Context()

	dealerID, err := common.ValidateUUID(c.Param("id"), "dealer ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	subs, err := h.subscriptionService.ListByDealer(ctx, dealerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"count":         len(subs),
	})
}

// RenewSubscription handles POST /v1/dealers/:id/subscriptions/renew
func (h *SubscriptionHandlers) RenewSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	dealerID, err := common.ValidateUUID(c.Param("id"), "dealer ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req struct {
		Plan string `json:"plan"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if req.Plan == "" {
		return common.SendValidationError(c, "plan", "plan is required")
	}

	sub, err := h.subscriptionService.Renew(ctx, dealerID, req.Plan)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, sub)
}

// CancelSubscription handles POST /v1/subscriptions/:id/cancel
func (h *SubscriptionHandlers) CancelSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	subscriptionID, err := common.ValidateUUID(c.Param("id"), "subscription ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	if err := h.subscriptionService.Cancel(ctx, subscriptionID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Subscription cancelled",
	})
}

// ListPlans handles GET /v1/subscriptions/plans
func (h *SubscriptionHandlers) ListPlans(c echo.Context) error {
	return c.JSON(http.StatusOK, h.subscriptionService.AvailablePlans())
}
