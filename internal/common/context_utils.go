package common

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	IdentityKey contextKey = "identity"
)

// Roles recognized by the platform. Platform operators (superadmin, admin)
// work against the master database; dealer roles are confined to their own
// dealer's database.
const (
	RoleSuperAdmin  = "superadmin"
	RoleAdmin       = "admin"
	RoleDealerAdmin = "dealer_admin"
	RoleDealerUser  = "dealer_user"
)

// Identity is the authenticated principal extracted from the JWT.
type Identity struct {
	UserID   uuid.UUID
	Role     string
	DealerID *uuid.UUID // nil for platform operators
}

// IsElevated reports whether the role operates at platform scope.
func IsElevated(role string) bool {
	return role == RoleSuperAdmin || role == RoleAdmin
}

// ValidRole reports whether the role is one the platform issues.
func ValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleDealerAdmin, RoleDealerUser:
		return true
	}
	return false
}

// WithIdentity stores the authenticated identity in the request context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// GetIdentityFromContext extracts the authenticated identity from the request context.
func GetIdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(Identity)
	return identity, ok
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]string{
		field: message,
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", "Validation failed", details))
}

// SendClientError sends a client error response
func SendClientError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("CLIENT_ERROR", message, nil))
}

// SendServerError sends a server error response
func SendServerError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", message, nil))
}

// SendNotFoundError sends a not found error response
func SendNotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", fmt.Sprintf("%s not found", resource), nil))
}

// SendUnauthorizedError sends an unauthorized error response
func SendUnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", "Unauthorized access", nil))
}

// SendForbiddenError sends a forbidden error response
func SendForbiddenError(c echo.Context, message string) error {
	return c.JSON(http.StatusForbidden, CreateErrorResponse("FORBIDDEN", message, nil))
}

// SendConflictError sends a conflict error response
func SendConflictError(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, CreateErrorResponse("CONFLICT", message, nil))
}

// ValidateUUID validates UUID format with comprehensive checks
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	if strings.TrimSpace(idStr) == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}

	idStr = strings.TrimSpace(idStr)

	if len(idStr) != 36 {
		return uuid.Nil, fmt.Errorf("%s must be exactly 36 characters (including hyphens)", fieldName)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s contains invalid characters: %v", fieldName, err)
	}

	return id, nil
}

// ValidatePositiveInteger validates positive integer values with upper bounds
func ValidatePositiveInteger(value int, fieldName string, maxValue int) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive", fieldName)
	}
	if value > maxValue {
		return fmt.Errorf("%s cannot exceed %d", fieldName, maxValue)
	}
	return nil
}

// ValidatePositiveFloat validates positive float values with upper bounds
func ValidatePositiveFloat(value float64, fieldName string, maxValue float64) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive", fieldName)
	}
	if value > maxValue {
		return fmt.Errorf("%s cannot exceed %.2f", fieldName, maxValue)
	}
	return nil
}

// ValidateVIN validates vehicle identification numbers. VINs are 17
// characters and never contain I, O or Q.
func ValidateVIN(vin, fieldName string) error {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if vin == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if len(vin) != 17 {
		return fmt.Errorf("%s must be exactly 17 characters", fieldName)
	}

	pattern := `^[A-HJ-NPR-Z0-9]{17}$`
	matched, err := regexp.MatchString(pattern, vin)
	if err != nil {
		return fmt.Errorf("invalid VIN validation pattern")
	}
	if !matched {
		return fmt.Errorf("%s has invalid VIN format", fieldName)
	}

	return nil
}

// ValidateModelYear validates vehicle model years
func ValidateModelYear(year int, fieldName string) error {
	if year < 1950 {
		return fmt.Errorf("%s cannot be before 1950", fieldName)
	}
	if year > time.Now().Year()+1 {
		return fmt.Errorf("%s cannot be in the future", fieldName)
	}
	return nil
}

// ValidateRequiredString validates required string fields
func ValidateRequiredString(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateOptionalString validates optional string fields
func ValidateOptionalString(value *string, fieldName string, maxLength int) error {
	if value != nil {
		if len(*value) > maxLength {
			return fmt.Errorf("%s cannot exceed %d characters", fieldName, maxLength)
		}
		*value = strings.TrimSpace(*value)
	}
	return nil
}

// ValidatePackageStatus validates warranty package status values
func ValidatePackageStatus(status string) error {
	if status != "active" && status != "retired" {
		return fmt.Errorf("package status must be either 'active' or 'retired'")
	}
	return nil
}

// ValidateSaleStatus validates warranty sale status values
func ValidateSaleStatus(status string) error {
	validStatuses := map[string]bool{
		"active": true, "expired": true, "cancelled": true,
	}
	if !validStatuses[status] {
		return fmt.Errorf("sale status must be one of: active, expired, cancelled")
	}
	return nil
}

// ValidateInvoiceStatus validates invoice status
func ValidateInvoiceStatus(status string) error {
	validStatuses := map[string]bool{
		"pending": true, "paid": true, "overdue": true, "cancelled": true,
	}
	if !validStatuses[status] {
		return fmt.Errorf("invoice status must be one of: pending, paid, overdue, cancelled")
	}
	return nil
}

// SafeString safely handles string pointer operations
func SafeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SafeFloat64 safely handles float64 pointer operations
func SafeFloat64(f *float64) float64 {
	if f == nil {
		return 0.0
	}
	return *f
}

// SanitizeHTMLElement escapes HTML characters to prevent XSS attacks
func SanitizeHTMLElement(input string) string {
	return html.EscapeString(input)
}

// SanitizeHTMLField sanitizes string pointer fields for HTML display
func SanitizeHTMLField(field *string, fieldName string) error {
	if field != nil && *field != "" {
		sanitized := SanitizeHTMLElement(*field)

		if len(sanitized) > 1000 {
			return fmt.Errorf("%s content exceeds maximum allowed length", fieldName)
		}

		*field = sanitized
	}
	return nil
}

// SanitizeSearchQuery normalizes free-text search input. Matching happens
// in memory after the fan-out merge, so this only trims and bounds it.
func SanitizeSearchQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}

	if len(query) > 100 {
		query = query[:100]
	}

	return strings.TrimSpace(query)
}

// ValidatePaginationParams validates pagination parameters
func ValidatePaginationParams(limit, offset int) (int, int, error) {
	if limit <= 0 {
		limit = 50 // Default
	}
	if limit > 1000 {
		limit = 1000 // Maximum
	}

	if offset < 0 {
		offset = 0
	}
	if offset > 1000000 {
		return 0, 0, fmt.Errorf("offset cannot exceed 1,000,000")
	}

	return limit, offset, nil
}
