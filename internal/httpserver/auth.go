package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/stockflow/internal/access"
	"github.com/Skotchmaster/stockflow/internal/logging"
	"github.com/Skotchmaster/stockflow/internal/service"
)

type AuthHTTP struct {
	Svc           *service.AuthService
	SecureCookies bool
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Role         string `json:"role"`
}

func (h *AuthHTTP) writeTokens(c echo.Context, res *service.AuthResult) error {
	c.SetCookie(createCookie(accessCookie, res.AccessToken, "/", res.AccessExp, h.SecureCookies))
	c.SetCookie(createCookie(refreshCookie, res.RefreshToken, refreshPath, res.RefreshExp, h.SecureCookies))
	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(res.AccessExp).Seconds()),
		Role:         string(res.Role),
	})
}

func (h *AuthHTTP) clearTokens(c echo.Context) {
	c.SetCookie(deleteCookie(accessCookie, "/", h.SecureCookies))
	c.SetCookie(deleteCookie(refreshCookie, refreshPath, h.SecureCookies))
}

// refreshFrom reads the refresh token from the JSON body, falling back to
// the cookie.
func refreshFrom(c echo.Context) string {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.Bind(&req)
	if req.RefreshToken != "" {
		return req.RefreshToken
	}
	if ck, err := c.Cookie(refreshCookie); err == nil {
		return ck.Value
	}
	return ""
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}
	return h.writeTokens(c, res)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	res, err := h.Svc.Refresh(ctx, refreshFrom(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidSession) {
			h.clearTokens(c)
		}
		return httpError(err)
	}
	return h.writeTokens(c, res)
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	err := h.Svc.Logout(ctx, refreshFrom(c))
	h.clearTokens(c)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_change_password")

	userID, ok := access.UserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("change_password_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.ChangePassword(ctx, userID, req.OldPassword, req.NewPassword); err != nil {
		return httpError(err)
	}
	h.clearTokens(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHTTP) Unlock(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	if err := h.Svc.UnlockAccount(c.Request().Context(), uint(id)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
