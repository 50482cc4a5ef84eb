package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrNoProfile is returned by a Membership lookup when the user has no
// profile row yet (bootstrap still in flight or failed).
var ErrNoProfile = errors.New("no profile for user")

// Membership resolves a user's clinic membership: the clinic they belong to
// and their role in it.
type Membership interface {
	Lookup(ctx context.Context, userID string) (clinicID, role string, err error)
}

// ClinicMiddleware injects the authenticated user's clinic id and role into
// the request context. Every clinic-scoped repository reads the clinic id
// from the context, so handlers below this middleware can only see rows
// belonging to the caller's clinic.
//
// Requests from users without a provisioned profile are rejected; the client
// should retry after the profile bootstrap completes.
func ClinicMiddleware(membership Membership) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := UserIDFromContext(c.Request().Context())
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}

			clinicID, role, err := membership.Lookup(c.Request().Context(), userID)
			if err != nil {
				if errors.Is(err, ErrNoProfile) {
					return echo.NewHTTPError(http.StatusForbidden, "profile not provisioned")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "membership lookup failed")
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, ClinicIDKey, clinicID)
			ctx = context.WithValue(ctx, RoleKey, role)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
