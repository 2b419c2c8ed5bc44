package middleware

import (
	"fmt"
	"net/http"
	"time"

	"warrantyhub/internal/common"
	"warrantyhub/internal/config"
	"warrantyhub/internal/logger"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// NewJWTMiddleware builds the token verification middleware. Tokens are
// verified against a JWKS endpoint when one is configured, otherwise with
// the shared HS256 secret. This service never mints tokens; it only
// verifies what the identity provider issued. Verified claims become the
// request identity consumed by the role gate and the router.
func NewJWTMiddleware(cfg config.JWTConfig) (echo.MiddlewareFunc, error) {
	jwtConfig := echojwt.Config{
		SuccessHandler: identityFromToken,
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing token")
		},
	}

	if cfg.JWKSURL != "" {
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval:  time.Hour,
			RefreshRateLimit: time.Minute,
			RefreshErrorHandler: func(err error) {
				logger.L().Error("JWKS refresh failed", zap.Error(err))
			},
		})
		if err != nil {
			return nil, fmt.Errorf("fetch JWKS from %s: %w", cfg.JWKSURL, err)
		}
		jwtConfig.KeyFunc = jwks.Keyfunc
	} else {
		jwtConfig.SigningKey = []byte(cfg.Secret)
	}

	return echojwt.WithConfig(jwtConfig), nil
}

// identityFromToken lifts the verified claims into the request context.
// Tokens with unusable claims leave no identity behind, so downstream
// guards reject the request.
func identityFromToken(c echo.Context) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return
	}
	role, _ := claims["role"].(string)
	if !common.ValidRole(role) {
		return
	}

	identity := common.Identity{
		UserID: userID,
		Role:   role,
	}
	if raw, ok := claims["dealer_id"].(string); ok && raw != "" {
		dealerID, err := uuid.Parse(raw)
		if err != nil {
			return
		}
		identity.DealerID = &dealerID
	}

	ctx := common.WithIdentity(c.Request().Context(), identity)
	c.SetRequest(c.Request().WithContext(ctx))
}
