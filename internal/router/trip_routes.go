package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-marketplace/internal/handler"
	"github.com/iliyamo/trip-marketplace/internal/middleware"
)

// RegisterTrips registers the catalog.  Public reads go through the Redis
// response cache; every write purges it so listings never serve stale trips.
func RegisterTrips(v1 *echo.Group, h *handler.TripHandler, d Deps) {
	cache := middleware.NewRedisCache(d.Cache, d.Redis)
	v1.GET("/trips", h.List, cache)
	v1.GET("/trips/:id", h.Get, cache)

	auth := middleware.Auth(d.Verifier)
	purge := middleware.InvalidateCache(d.Cache, d.Redis)
	// Only organizers may publish.  Update and delete check ownership in
	// the catalog itself.
	v1.POST("/trips", h.Create, auth, middleware.RequireOrganizer(d.Users), purge)
	v1.PUT("/trips/:id", h.Update, auth, purge)
	v1.DELETE("/trips/:id", h.Delete, auth, purge)
}

// RegisterOrganizer registers the organizer dashboard.  All routes require
// a bearer token and an organizer profile.
func RegisterOrganizer(v1 *echo.Group, t *handler.TripHandler, b *handler.BookingHandler, d Deps) {
	g := v1.Group("/organizer", middleware.Auth(d.Verifier), middleware.RequireOrganizer(d.Users))
	g.GET("/trips", t.Mine)
	g.GET("/bookings", b.ForOrganizer)
	g.GET("/stats", b.Stats)
}
