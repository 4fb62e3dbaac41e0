package httpserver

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	csrfCookie = "XSRF-TOKEN"
	csrfHeader = "X-CSRF-Token"
	csrfMaxAge = 24 * time.Hour
)

// CSRF is a double-submit check for browser sessions. It only applies to
// unsafe requests that carry an auth cookie and no Authorization header;
// bearer clients cannot be driven cross-site.
func CSRF(secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			token := readCookie(req, csrfCookie)
			if token == "" {
				var err error
				if token, err = newCSRFToken(); err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "failed to create CSRF token")
				}
				c.SetCookie(&http.Cookie{
					Name:     csrfCookie,
					Value:    token,
					Path:     "/",
					Secure:   secure,
					HttpOnly: false,
					MaxAge:   int(csrfMaxAge.Seconds()),
					SameSite: http.SameSiteLaxMode,
				})
			}

			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				c.Response().Header().Set(csrfHeader, token)
				return next(c)
			}
			if !cookieSession(req) {
				return next(c)
			}

			provided := req.Header.Get(csrfHeader)
			if provided == "" || subtle.ConstantTimeCompare([]byte(token), []byte(provided)) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "invalid CSRF token")
			}
			return next(c)
		}
	}
}

func cookieSession(req *http.Request) bool {
	if req.Header.Get(echo.HeaderAuthorization) != "" {
		return false
	}
	return readCookie(req, accessCookie) != "" || readCookie(req, refreshCookie) != ""
}

func newCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func readCookie(req *http.Request, name string) string {
	ck, err := req.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
