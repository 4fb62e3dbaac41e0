package tenancy

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/stockflow/internal/logging"
)

// TenantResolver extracts the tenant of the authenticated caller.
type TenantResolver func(c echo.Context) (uint, error)

// Middleware binds the caller's tenant to the request context at entry and
// restores the unbound request on every exit path.
func Middleware(resolve TenantResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			orig := c.Request()
			l := logging.FromContext(orig.Context())

			tenantID, err := resolve(c)
			if err != nil {
				l.Error("tenant_bind_failed", "status", 500, "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
			}

			ctx, err := WithTenant(orig.Context(), tenantID)
			if err != nil {
				l.Error("tenant_bind_failed", "status", 500, "tenant_id", tenantID, "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
			}
			ctx = logging.IntoContext(ctx, l.With("tenant_id", tenantID))

			c.SetRequest(orig.WithContext(ctx))
			defer c.SetRequest(orig)

			return next(c)
		}
	}
}
