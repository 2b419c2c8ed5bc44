package handlers

import (
	"net/http"
	"strconv"

	"warrantyhub/internal/common"
	"warrantyhub/internal/models"
	"warrantyhub/internal/services"

	"github.com/labstack/echo/v4"
)

// DealerHandlers handles HTTP requests for dealer accounts
type DealerHandlers struct {
	dealerService  services.DealerService
	catalogService services.CatalogService
}

// NewDealerHandlers creates a new dealer handlers instance
func NewDealerHandlers(dealerService services.DealerService, catalogService services.CatalogService) *DealerHandlers {
	return &DealerHandlers{
		dealerService:  dealerService,
		catalogService: catalogService,
	}
}

// CreateDealer handles POST /v1/dealers. Provisioning runs synchronously:
// a 201 means the dealer database exists and is reachable.
func (h *DealerHandlers) CreateDealer(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Name          string  `json:"name"`
		LegalName     *string `json:"legal_name"`
		Email         string  `json:"email"`
		Phone         *string `json:"phone"`
		Address       *string `json:"address"`
		LicenseNumber *string `json:"license_number"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if req.Name == "" {
		return common.SendValidationError(c, "name", "name is required")
	}
	if req.Email == "" {
		return common.SendValidationError(c, "email", "email is required")
	}

	dealer := &models.Dealer{
		Name:          req.Name,
		LegalName:     req.LegalName,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		LicenseNumber: req.LicenseNumber,
	}
	if err := h.dealerService.CreateDealer(ctx, dealer); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, dealer)
}

// ListDealers handles GET /v1/dealers
func (h *DealerHandlers) ListDealers(c echo.Context) error {
	ctx := c.Request().Context()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	dealers, err := h.dealerService.ListDealers(ctx, limit, offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"dealers": dealers,
		"count":   len(dealers),
	})
}

// GetDealer handles GET /v1/dealers/:id
func (h *DealerHandlers) GetDealer(c echo.Context) error {
	ctx := c.Request().Context()

	dealerID, err := common.ValidateUUID(c.Param("id"), "dealer ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	dealer, err := h.dealerService.GetDealer(ctx, dealerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dealer)
}

// SuspendDealer handles POST /v1/dealers/:id/suspend
func (h *DealerHandlers) SuspendDealer(c echo.Context) error {
	ctx := c.Request().Context()

	dealerID, err := common.ValidateUUID(c.Param("id"), "dealer ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	if err := h.dealerService.SuspendDealer(ctx, dealerID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Dealer suspended",
	})
}

// ReactivateDealer handles POST /v1/dealers/:id/reactivate
func (h *DealerHandlers) ReactivateDealer(c echo.Context) error {
	ctx := c.Request().Context()

	dealerID, err := common.ValidateUUID(c.Param("id"), "dealer ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	if err := h.dealerService.ReactivateDealer(ctx, dealerID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Dealer reactivated",
	})
}

// AssignPackage handles POST /v1/dealers/:id/packages/:packageId
func (h *DealerHandlers) AssignPackage(c echo.Context) error {
	ctx := c.Request().Context()

	dealerID, err := common.ValidateUUID(c.Param("id"), "dealer ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	packageID, err := common.ValidateUUID(c.Param("packageId"), "package ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req struct {
		DealerCost  float64 `json:"dealer_cost"`
		RetailPrice float64 `json:"retail_price"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if req.DealerCost < 0 || req.RetailPrice < 0 {
		return common.SendValidationError(c, "pricing", "prices cannot be negative")
	}

	if err := h.catalogService.AssignToDealer(ctx, dealerID, packageID, req.DealerCost, req.RetailPrice); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"message": "Package assigned to dealer",
	})
}
