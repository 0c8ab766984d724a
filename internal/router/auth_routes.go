package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-marketplace/internal/handler"
	"github.com/iliyamo/trip-marketplace/internal/middleware"
)

// RegisterAuth registers the OTP flow and the profile endpoints.
func RegisterAuth(v1 *echo.Group, a *handler.AuthHandler, d Deps) {
	g := v1.Group("/auth")
	// Issue a one-time code by email.  Limited per email address.
	g.POST("/send-otp", a.SendOTP)
	// Verify a code and mark the account's email verified.  A bearer token
	// is optional but, when present, must belong to the same email.
	g.POST("/verify-otp", a.VerifyOTP, middleware.OptionalAuth(d.Verifier))
	// Verify a code and exchange it for a session token.
	g.POST("/verify-otp-login", a.VerifyOTPLogin)
	// Create the profile of the identity in the bearer token.
	g.POST("/signup", a.Signup, middleware.Auth(d.Verifier))

	me := v1.Group("/me", middleware.Auth(d.Verifier))
	me.GET("", a.Me)
	me.PUT("", a.UpdateMe)

	// Public lookup used by the sign in screen to route organizers.
	v1.GET("/users/organiser", a.IsOrganiser)
}
