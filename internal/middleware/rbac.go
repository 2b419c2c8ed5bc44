package middleware

import (
	"warrantyhub/internal/common"

	"github.com/labstack/echo/v4"
)

// RequireRole gates a route to the given roles. Requests without a
// verified identity are rejected as unauthenticated, requests with the
// wrong role as forbidden.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := common.GetIdentityFromContext(c.Request().Context())
			if !ok {
				return common.SendUnauthorizedError(c)
			}
			if _, ok := allowed[identity.Role]; !ok {
				return common.SendForbiddenError(c, "insufficient role")
			}
			return next(c)
		}
	}
}

// RequireElevated restricts a route to platform staff.
func RequireElevated() echo.MiddlewareFunc {
	return RequireRole(common.RoleSuperAdmin, common.RoleAdmin)
}
