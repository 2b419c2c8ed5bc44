package middleware

import (
	"time"

	"warrantyhub/internal/common"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuditMiddleware emits one structured event per mutating request with the
// identity that made it. Events go to the log stream; reads are not
// audited.
type AuditMiddleware struct {
	log *zap.Logger
}

// NewAuditMiddleware creates a new audit middleware instance
func NewAuditMiddleware(log *zap.Logger) *AuditMiddleware {
	return &AuditMiddleware{log: log}
}

// AuditMutations records POST, PUT, PATCH and DELETE requests after they
// complete, whether they succeeded or not.
func (m *AuditMiddleware) AuditMutations() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case echo.POST, echo.PUT, echo.PATCH, echo.DELETE:
			default:
				return next(c)
			}

			start := time.Now()
			err := next(c)

			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.String("ip", c.RealIP()),
				zap.Int("status", c.Response().Status),
				zap.Duration("took", time.Since(start)),
			}
			if identity, ok := common.GetIdentityFromContext(c.Request().Context()); ok {
				fields = append(fields,
					zap.String("user_id", identity.UserID.String()),
					zap.String("role", identity.Role))
				if identity.DealerID != nil {
					fields = append(fields, zap.String("dealer_id", identity.DealerID.String()))
				}
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			m.log.Info("mutation", fields...)

			return err
		}
	}
}
