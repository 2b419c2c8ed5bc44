package handlers

import (
	"net/http"
	"strconv"
	"time"

	"warrantyhub/internal/common"
	"warrantyhub/internal/models"
	"warrantyhub/internal/services"

	"github.com/labstack/echo/v4"
)

// SaleHandlers handles HTTP requests for warranty sales
type SaleHandlers struct {
	salesService services.SalesService
}

// NewSaleHandlers creates a new sale handlers instance
func NewSaleHandlers(salesService services.SalesService) *SaleHandlers {
	return &SaleHandlers{salesService: salesService}
}

// CreateSale handles POST /v1/sales
func (h *SaleHandlers) CreateSale(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		CustomerID string  `json:"customer_id"`
		VehicleID  string  `json:"vehicle_id"`
		PackageID  string  `json:"package_id"`
		SalePrice  float64 `json:"sale_price"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	customerID, err := common.ValidateUUID(req.CustomerID, "customer_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	vehicleID, err := common.ValidateUUID(req.VehicleID, "vehicle_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	packageID, err := common.ValidateUUID(req.PackageID, "package_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	if req.SalePrice < 0 {
		return common.SendValidationError(c, "sale_price", "sale_price cannot be negative")
	}

	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	identity, _ := common.GetIdentityFromContext(ctx)
	sale := &models.WarrantySale{
		CustomerID:   customerID,
		VehicleID:    vehicleID,
		PackageID:    packageID,
		SalePrice:    req.SalePrice,
		SoldByUserID: &identity.UserID,
	}
	if err := h.salesService.CreateSale(ctx, d, sale); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, sale)
}

// ListSales handles GET /v1/sales. Same scoping rules as the customer
// directory: dealer roles get their partition, admins can merge the fleet.
func (h *SaleHandlers) ListSales(c echo.Context) error {
	ctx := c.Request().Context()

	filter, err := saleFilterFromQuery(c)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	if wantsFleetScope(c) {
		sales, listErr := h.salesService.ListFleet(ctx, filter)
		if listErr != nil {
			return respondServiceError(c, listErr)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"sales": sales,
			"count": len(sales),
			"scope": "all",
		})
	}

	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	sales, err := h.salesService.ListSales(ctx, d, filter)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sales": sales,
		"count": len(sales),
	})
}

// GetSale handles GET /v1/sales/:id
func (h *SaleHandlers) GetSale(c echo.Context) error {
	ctx := c.Request().Context()

	saleID, err := common.ValidateUUID(c.Param("id"), "sale ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	sale, err := h.salesService.GetSale(ctx, d, saleID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, sale)
}

// CancelSale handles POST /v1/sales/:id/cancel
func (h *SaleHandlers) CancelSale(c echo.Context) error {
	ctx := c.Request().Context()

	saleID, err := common.ValidateUUID(c.Param("id"), "sale ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	if err := h.salesService.CancelSale(ctx, d, saleID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Sale cancelled",
	})
}

func saleFilterFromQuery(c echo.Context) (models.SaleSearchFilter, error) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	filter := models.SaleSearchFilter{
		Limit:  limit,
		Offset: offset,
	}
	if status := c.QueryParam("status"); status != "" {
		if err := common.ValidateSaleStatus(status); err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	if raw := c.QueryParam("package_id"); raw != "" {
		id, err := common.ValidateUUID(raw, "package_id")
		if err != nil {
			return filter, err
		}
		filter.PackageID = &id
	}
	if raw := c.QueryParam("filter_dealer_id"); raw != "" {
		id, err := common.ValidateUUID(raw, "filter_dealer_id")
		if err != nil {
			return filter, err
		}
		filter.DealerID = &id
	}
	if raw := c.QueryParam("sold_from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.SoldFrom = &t
	}
	if raw := c.QueryParam("sold_to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.SoldTo = &t
	}
	return filter, nil
}
