package handlers

import (
	"net/http"
	"strconv"

	"warrantyhub/internal/common"
	"warrantyhub/internal/models"
	"warrantyhub/internal/services"
	"warrantyhub/internal/tenancy"

	"github.com/labstack/echo/v4"
)

// PackageHandlers handles HTTP requests for the warranty catalog
type PackageHandlers struct {
	catalogService services.CatalogService
}

// NewPackageHandlers creates a new package handlers instance
func NewPackageHandlers(catalogService services.CatalogService) *PackageHandlers {
	return &PackageHandlers{catalogService: catalogService}
}

type packageItemRequest struct {
	Name          string   `json:"name"`
	Description   *string  `json:"description"`
	CoverageLimit *float64 `json:"coverage_limit"`
}

type packageRequest struct {
	Name           string               `json:"name"`
	Description    *string              `json:"description"`
	DurationMonths int                  `json:"duration_months"`
	MaxOdometerKm  *int                 `json:"max_odometer_km"`
	DealerCost     float64              `json:"dealer_cost"`
	RetailPrice    float64              `json:"retail_price"`
	Status         string               `json:"status"`
	Items          []packageItemRequest `json:"items"`
}

// toModel keeps the nil/empty distinction for items: an absent list means
// "leave dealer items untouched" during propagation.
func (req *packageRequest) toModel() *models.WarrantyPackage {
	pkg := &models.WarrantyPackage{
		Name:           req.Name,
		Description:    req.Description,
		DurationMonths: req.DurationMonths,
		MaxOdometerKm:  req.MaxOdometerKm,
		DealerCost:     req.DealerCost,
		RetailPrice:    req.RetailPrice,
		Status:         req.Status,
	}
	if req.Items != nil {
		pkg.Items = make([]*models.PackageItem, 0, len(req.Items))
		for _, item := range req.Items {
			pkg.Items = append(pkg.Items, &models.PackageItem{
				Name:          item.Name,
				Description:   item.Description,
				CoverageLimit: item.CoverageLimit,
			})
		}
	}
	return pkg
}

// CreatePackage handles POST /v1/packages
func (h *PackageHandlers) CreatePackage(c echo.Context) error {
	ctx := c.Request().Context()

	var req packageRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if req.Name == "" {
		return common.SendValidationError(c, "name", "name is required")
	}
	if err := common.ValidatePositiveInteger(req.DurationMonths, "duration_months", 240); err != nil {
		return common.SendValidationError(c, "duration_months", err.Error())
	}

	identity, ok := common.GetIdentityFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	pkg := req.toModel()
	pkg.CreatedBy = &identity.UserID

	if err := h.catalogService.CreatePackage(ctx, pkg); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, pkg)
}

// ListPackages handles GET /v1/packages
func (h *PackageHandlers) ListPackages(c echo.Context) error {
	ctx := c.Request().Context()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	packages, err := h.catalogService.ListPackages(ctx, limit, offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"packages": packages,
		"count":    len(packages),
	})
}

// GetPackage handles GET /v1/packages/:id
func (h *PackageHandlers) GetPackage(c echo.Context) error {
	ctx := c.Request().Context()

	packageID, err := common.ValidateUUID(c.Param("id"), "package ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	pkg, err := h.catalogService.GetPackage(ctx, packageID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, pkg)
}

// UpdatePackage handles PUT /v1/packages/:id. The response carries the
// updated package plus the propagation report so the caller can see how
// many dealers took the push.
func (h *PackageHandlers) UpdatePackage(c echo.Context) error {
	ctx := c.Request().Context()

	packageID, err := common.ValidateUUID(c.Param("id"), "package ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req packageRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if req.Name == "" {
		return common.SendValidationError(c, "name", "name is required")
	}
	if err := common.ValidatePositiveInteger(req.DurationMonths, "duration_months", 240); err != nil {
		return common.SendValidationError(c, "duration_months", err.Error())
	}

	pkg := req.toModel()
	pkg.ID = packageID

	report, err := h.catalogService.UpdatePackage(ctx, pkg)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"package":     pkg,
		"propagation": report,
	})
}

// RetirePackage handles POST /v1/packages/:id/retire
func (h *PackageHandlers) RetirePackage(c echo.Context) error {
	ctx := c.Request().Context()

	packageID, err := common.ValidateUUID(c.Param("id"), "package ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	report, err := h.catalogService.RetirePackage(ctx, packageID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":     "Package retired",
		"propagation": report,
	})
}

// SetPricing handles PUT /v1/packages/:id/pricing. Dealer roles adjust
// their own copy; admins may override a dealer with ?dealer_id=.
func (h *PackageHandlers) SetPricing(c echo.Context) error {
	ctx := c.Request().Context()

	packageID, err := common.ValidateUUID(c.Param("id"), "package ID")
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
	if req.DealerCost < 0 {
		return common.SendValidationError(c, "dealer_cost", "dealer_cost cannot be negative")
	}
	if err := common.ValidatePositiveFloat(req.RetailPrice, "retail_price", 1000000.0); err != nil {
		return common.SendValidationError(c, "retail_price", err.Error())
	}

	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	if d.Scope != tenancy.ScopeTenant {
		return common.SendClientError(c, "dealer_id is required for pricing updates")
	}
	if err := h.catalogService.SetLocalPricing(ctx, d, packageID, req.DealerCost, req.RetailPrice); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Pricing updated",
	})
}
