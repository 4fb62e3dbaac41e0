package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/stockflow/internal/metrics"
	"github.com/Skotchmaster/stockflow/internal/models"
	"github.com/Skotchmaster/stockflow/internal/tokens"
)

type Deps struct {
	Logger        *slog.Logger
	Auth          *AuthHTTP
	Inventory     *InventoryHTTP
	Signer        *tokens.Signer
	Metrics       *metrics.Metrics
	SecureCookies bool
	// CSRF enables the double-submit check for cookie sessions.
	CSRF bool
	// Ready reports whether dependencies (the database) are reachable.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.Use(middleware.Recover())
	e.Use(RequestLogger(d.Logger))
	if d.CSRF {
		e.Use(CSRF(d.SecureCookies))
	}

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready").SetInternal(err)
			}
		}
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))

	authMw := &Authenticator{Signer: d.Signer, SecureCookies: d.SecureCookies}

	a := e.Group("/auth")
	a.POST("/login", d.Auth.Login)
	a.POST("/refresh", d.Auth.Refresh)
	a.POST("/logout", d.Auth.Logout)
	a.PUT("/password", d.Auth.ChangePassword, authMw.RequireAuth)

	private := e.Group("")
	private.Use(authMw.RequireAuth)

	private.GET("/products", d.Inventory.ListProducts)
	private.GET("/products/:id", d.Inventory.GetProduct)
	private.GET("/movements", d.Inventory.ListMovements)
	private.GET("/branches", d.Inventory.ListBranches)
	private.GET("/branches/:id/products", d.Inventory.ListBranchProducts)
	private.GET("/search/products", d.Inventory.SearchProducts)

	admin := private.Group("/admin", RequireRole(models.RoleAdmin))
	admin.POST("/users/:id/unlock", d.Auth.Unlock)
}
