package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-marketplace/internal/handler"
	"github.com/iliyamo/trip-marketplace/internal/middleware"
)

// RegisterBookings registers the booking endpoints.  Guests may book and
// search; organizer accounts are kept off the customer surfaces.
func RegisterBookings(v1 *echo.Group, h *handler.BookingHandler, d Deps) {
	auth := middleware.Auth(d.Verifier)
	optional := middleware.OptionalAuth(d.Verifier)
	noOrganisers := middleware.BlockOrganisers(d.Users)

	v1.POST("/bookings", h.Create, optional, noOrganisers)
	// Static paths are matched before /bookings/:id.
	v1.GET("/bookings/check", h.Check, optional)
	v1.GET("/bookings/search", h.Search)
	v1.POST("/bookings/approve", h.Decide, auth)

	v1.GET("/bookings/:id", h.Get, auth)
	v1.PUT("/bookings/:id", h.Update, auth)
	// Owner only; checked by the booking engine.
	v1.GET("/trips/:id/bookings", h.ForTrip, auth)

	v1.GET("/my-bookings", h.Mine, auth, noOrganisers)
}
