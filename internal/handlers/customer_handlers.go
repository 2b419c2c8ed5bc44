package handlers

import (
	"net/http"
	"strconv"

	"warrantyhub/internal/common"
	"warrantyhub/internal/models"
	"warrantyhub/internal/services"

	"github.com/labstack/echo/v4"
)

// CustomerHandlers handles HTTP requests for the customer directory
type CustomerHandlers struct {
	directory services.DirectoryService
}

// NewCustomerHandlers creates a new customer handlers instance
func NewCustomerHandlers(directory services.DirectoryService) *CustomerHandlers {
	return &CustomerHandlers{directory: directory}
}

// CreateCustomer handles POST /v1/customers
func (h *CustomerHandlers) CreateCustomer(c echo.Context) error {
	ctx := c.Request().Context()

	var customer models.Customer
	if err := c.Bind(&customer); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if customer.FirstName == "" || customer.LastName == "" {
		return common.SendValidationError(c, "name", "first and last name are required")
	}

	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	if err := h.directory.CreateCustomer(ctx, d, &customer); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, customer)
}

// ListCustomers handles GET /v1/customers. Dealer roles see their own
// partition. Admins see the master partition, one dealer with ?dealer_id=,
// or the merged fleet view with ?scope=all.
func (h *CustomerHandlers) ListCustomers(c echo.Context) error {
	ctx := c.Request().Context()

	filter := customerFilterFromQuery(c)
	if wantsFleetScope(c) {
		customers, err := h.directory.ListFleet(ctx, filter)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"customers": customers,
			"count":     len(customers),
			"scope":     "all",
		})
	}

	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	customers, err := h.directory.ListCustomers(ctx, d, filter)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"customers": customers,
		"count":     len(customers),
	})
}

// SearchCustomer handles GET /v1/customers/search?email=&phone=. It
// answers which partition owns a person; a customer exists in exactly one.
func (h *CustomerHandlers) SearchCustomer(c echo.Context) error {
	ctx := c.Request().Context()

	email := c.QueryParam("email")
	phone := c.QueryParam("phone")
	if email == "" && phone == "" {
		return common.SendValidationError(c, "query", "email or phone is required")
	}

	customer, found, err := h.directory.FindByContact(ctx, email, phone)
	if err != nil {
		return respondServiceError(c, err)
	}
	if !found {
		return common.SendNotFoundError(c, "customer")
	}
	return c.JSON(http.StatusOK, customer)
}

// GetCustomer handles GET /v1/customers/:id
func (h *CustomerHandlers) GetCustomer(c echo.Context) error {
	ctx := c.Request().Context()

	customerID, err := common.ValidateUUID(c.Param("id"), "customer ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	customer, err := h.directory.GetCustomer(ctx, d, customerID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, customer)
}

// UpdateCustomer handles PUT /v1/customers/:id
func (h *CustomerHandlers) UpdateCustomer(c echo.Context) error {
	ctx := c.Request().Context()

	customerID, err := common.ValidateUUID(c.Param("id"), "customer ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var customer models.Customer
	if err := c.Bind(&customer); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	customer.ID = customerID
	if customer.FirstName == "" || customer.LastName == "" {
		return common.SendValidationError(c, "name", "first and last name are required")
	}

	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	if err := h.directory.UpdateCustomer(ctx, d, &customer); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, customer)
}

// DeleteCustomer handles DELETE /v1/customers/:id
func (h *CustomerHandlers) DeleteCustomer(c echo.Context) error {
	ctx := c.Request().Context()

	customerID, err := common.ValidateUUID(c.Param("id"), "customer ID")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	d, err := requireDecision(c)
	if err != nil {
		return respondRoutingError(c, err)
	}
	if err := h.directory.DeleteCustomer(ctx, d, customerID); err != nil {
		return respondServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func customerFilterFromQuery(c echo.Context) models.CustomerSearchFilter {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	filter := models.CustomerSearchFilter{
		Query:  c.QueryParam("q"),
		Limit:  limit,
		Offset: offset,
	}
	if raw := c.QueryParam("filter_dealer_id"); raw != "" {
		if id, err := common.ValidateUUID(raw, "filter_dealer_id"); err == nil {
			filter.DealerID = &id
		}
	}
	return filter
}
