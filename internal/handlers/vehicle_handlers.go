package handlers

import (
	"net/http"

	"warrantyhub/internal/common"
	"warrantyhub/internal/models"
	"warrantyhub/internal/services"

	"github.com/labstack/echo/v4"
)

// VehicleHandlers handles HTTP requests for customer vehicles
type VehicleHandlers struct {
	vehicleService services.VehicleService
}

// NewVehicleHandlers creates a new vehicle handlers instance
func NewVehicleHandlers(vehicleService services.VehicleService) *VehicleHandlers {
	return &VehicleHandlers{vehicleService: vehicleService}
}

// CreateVehicle handles POST /v1/vehicles
func (h *VehicleHandlers) CreateVehicle(c echo.Context) error {
	ctx := c.Request().Context()

	var vehicle models.Vehicle
	if err := c.Bind(&vehicle); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateVIN(vehicle.VIN, "vin"); err != nil {
		return common.SendValidationError(c, "vin", err.Error())
	}

	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	if err := h.vehicleService.CreateVehicle(ctx, d, &vehicle); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, vehicle)
}

// GetVehicle handles GET /v1/vehicles/:id
func (h *VehicleHandlers) GetVehicle(c echo.Context) error {
	ctx := c.Request().Context()

	vehicleID, err := common.ValidateUUID(c.Param("id"), "vehicle ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	vehicle, err := h.vehicleService.GetVehicle(ctx, d, vehicleID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, vehicle)
}

// ListCustomerVehicles handles GET /v1/customers/:id/vehicles
func (h *VehicleHandlers) ListCustomerVehicles(c echo.Context) error {
	ctx := c.Request().Context()

	customerID, err := common.ValidateUUID(c.Param("id"), "customer ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	vehicles, err := h.vehicleService.ListByCustomer(ctx, d, customerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"vehicles": vehicles,
		"count":    len(vehicles),
	})
}

// UpdateVehicle handles PUT /v1/vehicles/:id
func (h *VehicleHandlers) UpdateVehicle(c echo.Context) error {
	ctx := c.Request().Context()

	vehicleID, err := common.ValidateUUID(c.Param("id"), "vehicle ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var vehicle models.Vehicle
	if err := c.Bind(&vehicle); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	vehicle.ID = vehicleID
	if err := common.ValidateVIN(vehicle.VIN, "vin"); err != nil {
		return common.SendValidationError(c, "vin", err.Error())
	}

	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	if err := h.vehicleService.UpdateVehicle(ctx, d, &vehicle); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, vehicle)
}

// DeleteVehicle handles DELETE /v1/vehicles/:id
func (h *VehicleHandlers) DeleteVehicle(c echo.Context) error {
	ctx := c.Request().Context()

	vehicleID, err := common.ValidateUUID(c.Param("id"), "vehicle ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	if err := h.vehicleService.DeleteVehicle(ctx, d, vehicleID); err != nil {
		return respondServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
