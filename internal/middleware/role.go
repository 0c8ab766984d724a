package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-marketplace/internal/model"
)

// UserLoader loads a profile by id, returning nil when there is none.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// BlockOrganisers keeps organizer accounts off customer surfaces.  Guests
// pass through; authenticated callers have their role loaded and organizers
// of either spelling get 403.  Callers without a profile are treated as
// customers.
func BlockOrganisers(users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := UserID(c)
			if id == "" {
				return next(c)
			}
			u, err := users.GetUserByID(c.Request().Context(), id)
			if err != nil {
				c.Logger().Errorf("role check for %s: %v", id, err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
			}
			if u != nil && model.IsOrganizer(u.Role) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "organizers cannot use this feature"})
			}
			if u != nil {
				setCurrentUser(c, u)
			}
			return next(c)
		}
	}
}

// RequireOrganizer admits only authenticated organizers and stores their
// profile for the handler.  It must run after Auth.
func RequireOrganizer(users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := UserID(c)
			if id == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": ErrMissingToken.Error()})
			}
			u, err := users.GetUserByID(c.Request().Context(), id)
			if err != nil {
				c.Logger().Errorf("role check for %s: %v", id, err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
			}
			if u == nil || !model.IsOrganizer(u.Role) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			setCurrentUser(c, u)
			return next(c)
		}
	}
}
