package handlers

import (
	"errors"
	"net/http"

	"warrantyhub/internal/common"
	"warrantyhub/internal/services"
	"warrantyhub/internal/tenancy"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// errNoIdentity marks requests that reached a routed handler without a
// verified identity.
var errNoIdentity = errors.New("no identity in request context")

// requireDecision resolves which partition the request acts on: the
// caller's identity plus an optional ?dealer_id= override run through the
// router. Dealer roles can never escape their own partition.
func requireDecision(c echo.Context) (tenancy.Decision, error) {
	identity, ok := common.GetIdentityFromContext(c.Request().Context())
	if !ok {
		return tenancy.Decision{}, errNoIdentity
	}
	override, err := dealerOverride(c)
	if err != nil {
		return tenancy.Decision{}, err
	}
	return tenancy.Route(identity, override)
}

// dealerOverride parses the optional dealer_id query parameter.
func dealerOverride(c echo.Context) (*uuid.UUID, error) {
	raw := c.QueryParam("dealer_id")
	if raw == "" {
		return nil, nil
	}
	id, err := common.ValidateUUID(raw, "dealer_id")
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// wantsFleetScope reports whether an elevated caller asked for the merged
// cross-dealer view.
func wantsFleetScope(c echo.Context) bool {
	identity, ok := common.GetIdentityFromContext(c.Request().Context())
	if !ok || !common.IsElevated(identity.Role) {
		return false
	}
	return c.QueryParam("scope") == "all"
}

// respondRoutingError writes the response for a failed routing decision.
func respondRoutingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, errNoIdentity):
		return common.SendUnauthorizedError(c)
	case errors.Is(err, tenancy.ErrCrossTenantDenied):
		return common.SendForbiddenError(c, "cannot act on another dealer's data")
	default:
		return common.SendClientError(c, err.Error())
	}
}

// respondServiceError maps data plane errors onto HTTP statuses. Anything
// unrecognized is a plain server error.
func respondServiceError(c echo.Context, err error) error {
	var provErr *tenancy.ProvisioningError
	switch {
	case errors.Is(err, tenancy.ErrCrossTenantDenied):
		return common.SendForbiddenError(c, "cannot act on another dealer's data")
	case errors.Is(err, tenancy.ErrTenantNotConfigured):
		return common.SendNotFoundError(c, "dealer database")
	case errors.Is(err, tenancy.ErrTenantUnreachable):
		return c.JSON(http.StatusBadGateway, common.CreateErrorResponse("TENANT_UNREACHABLE", "dealer database unreachable", nil))
	case errors.Is(err, tenancy.ErrRegistryClosed):
		return c.JSON(http.StatusServiceUnavailable, common.CreateErrorResponse("SHUTTING_DOWN", "server shutting down", nil))
	case errors.As(err, &provErr):
		return c.JSON(http.StatusInternalServerError, common.CreateErrorResponse("PROVISIONING_FAILED", err.Error(), nil))
	case errors.Is(err, services.ErrDealerNotFound):
		return common.SendNotFoundError(c, "dealer")
	case errors.Is(err, services.ErrPackageNotFound):
		return common.SendNotFoundError(c, "package")
	case errors.Is(err, services.ErrCustomerNotFound):
		return common.SendNotFoundError(c, "customer")
	case errors.Is(err, services.ErrVehicleNotFound):
		return common.SendNotFoundError(c, "vehicle")
	case errors.Is(err, services.ErrSaleNotFound):
		return common.SendNotFoundError(c, "sale")
	case errors.Is(err, services.ErrInvoiceNotFound):
		return common.SendNotFoundError(c, "invoice")
	case errors.Is(err, services.ErrNoActiveSubscription):
		return common.SendNotFoundError(c, "active subscription")
	case errors.Is(err, services.ErrDealerEmailTaken):
		return common.SendConflictError(c, err.Error())
	case errors.Is(err, services.ErrPackageAssigned):
		return common.SendConflictError(c, err.Error())
	default:
		return common.SendServerError(c, err.Error())
	}
}
