package middleware

// identity.go holds the context helpers shared by the Auth Gateway
// middleware and the handlers.  Auth and OptionalAuth store a model.Identity;
// the role gates additionally store the loaded user profile.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-marketplace/internal/model"
)

const (
	identityKey = "identity"
	userKey     = "current_user"
)

// SetIdentity stores who is acting on the request.
func SetIdentity(c echo.Context, id model.Identity) { c.Set(identityKey, id) }

// IdentityFrom returns the request identity.  Requests that never passed
// through Auth or OptionalAuth are guests.
func IdentityFrom(c echo.Context) model.Identity {
	if id, ok := c.Get(identityKey).(model.Identity); ok && id != nil {
		return id
	}
	return model.Guest{}
}

// UserID returns the authenticated user id, or "" for guests.
func UserID(c echo.Context) string { return model.UserIDOf(IdentityFrom(c)) }

// CurrentUser returns the profile loaded by a role gate, if any.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(userKey).(*model.User)
	return u
}

func setCurrentUser(c echo.Context, u *model.User) { c.Set(userKey, u) }

// rateKeyUser identifies the caller in rate limit keys.  Guests are told
// apart by client IP.
func rateKeyUser(c echo.Context, ip string) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "guest@" + ip
}
