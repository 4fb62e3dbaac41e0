package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/stockflow/internal/access"
	"github.com/Skotchmaster/stockflow/internal/logging"
	"github.com/Skotchmaster/stockflow/internal/models"
	"github.com/Skotchmaster/stockflow/internal/tenancy"
	"github.com/Skotchmaster/stockflow/internal/tokens"
)

// RequestLogger puts a request-scoped logger into the context and logs
// completion with a level picked by status.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			l := base.With(
				"request_id", rid,
				"method", c.Request().Method,
				"path", c.Path(),
				"url", c.Request().URL.Path,
				"remote_ip", c.RealIP(),
				"user_agent", c.Request().UserAgent(),
			)

			req := c.Request().WithContext(logging.IntoContext(c.Request().Context(), l))
			c.SetRequest(req)

			start := time.Now()
			err := next(c)
			dur := time.Since(start)
			status := c.Response().Status

			if err != nil {
				c.Echo().HTTPErrorHandler(err, c)
				status = c.Response().Status
			}

			switch {
			case status >= 500:
				l.Error("request completed", "status", status, "duration_ms", dur.Milliseconds(), "error", errStr(err))
			case status >= 400:
				l.Warn("request completed", "status", status, "duration_ms", dur.Milliseconds(), "error", errStr(err))
			default:
				l.Info("request completed", "status", status, "duration_ms", dur.Milliseconds(), "bytes", c.Response().Size)
			}
			return nil
		}
	}
}

func errStr(err error) string {
	if err == nil {
		return ""
	}
	if he, ok := err.(*echo.HTTPError); ok && he.Internal != nil {
		return fmt.Sprintf("%v: %v", he.Message, he.Internal)
	}
	return err.Error()
}

const claimsKey = "claims"

type Authenticator struct {
	Signer        *tokens.Signer
	SecureCookies bool
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	if ck, err := c.Cookie(accessCookie); err == nil {
		return ck.Value
	}
	return ""
}

// RequireAuth verifies the access token, then binds the caller's user id and
// tenant to the request context for the rest of the chain.
func (m *Authenticator) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	bound := tenancy.Middleware(claimsTenant)(next)
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := m.Signer.Parse(raw)
		if err != nil {
			c.SetCookie(deleteCookie(accessCookie, "/", m.SecureCookies))
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token").SetInternal(err)
		}
		userID, err := claims.UserID()
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token").SetInternal(err)
		}

		orig := c.Request()
		ctx := access.WithUserID(orig.Context(), userID)
		ctx = logging.IntoContext(ctx, logging.FromContext(ctx).With("user_id", userID))
		c.SetRequest(orig.WithContext(ctx))
		defer c.SetRequest(orig)

		c.Set(claimsKey, claims)
		return bound(c)
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get(claimsKey).(*tokens.AccessClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !slices.Contains(roles, claims.Role) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}

func claimsTenant(c echo.Context) (uint, error) {
	claims, ok := c.Get(claimsKey).(*tokens.AccessClaims)
	if !ok {
		return 0, tenancy.ErrContextMissing
	}
	return claims.TenantID, nil
}
