package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/stockflow/internal/access"
	"github.com/Skotchmaster/stockflow/internal/scope"
	"github.com/Skotchmaster/stockflow/internal/search"
	"github.com/Skotchmaster/stockflow/internal/service"
	"github.com/Skotchmaster/stockflow/internal/session"
	"github.com/Skotchmaster/stockflow/internal/tenancy"
)

// httpError maps domain errors to responses. Anything unknown, and a missing
// tenant in particular, becomes a bare 500.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, tenancy.ErrContextMissing):
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	case errors.Is(err, service.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, service.ErrUnauthenticated.Error())
	case errors.Is(err, service.ErrInvalidSession),
		errors.Is(err, session.ErrTokenNotFound),
		errors.Is(err, session.ErrTokenRevoked),
		errors.Is(err, session.ErrTokenExpired):
		return echo.NewHTTPError(http.StatusUnauthorized, service.ErrInvalidSession.Error()).SetInternal(err)
	case errors.Is(err, scope.ErrNoPrincipal), errors.Is(err, access.ErrPrincipalNotFound):
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required").SetInternal(err)
	case errors.Is(err, access.ErrForbiddenBranchAccess):
		return echo.NewHTTPError(http.StatusForbidden, "branch not accessible")
	case errors.Is(err, scope.ErrInvalidSort),
		errors.Is(err, service.ErrValidation),
		errors.Is(err, search.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, scope.ErrNotFound), errors.Is(err, service.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, search.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search unavailable")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}
