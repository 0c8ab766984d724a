package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-marketplace/internal/middleware"
	"github.com/iliyamo/trip-marketplace/internal/model"
	"github.com/iliyamo/trip-marketplace/internal/repository"
	"github.com/iliyamo/trip-marketplace/internal/service"
)

// Trips is the trip catalog used by TripHandler.
type Trips interface {
	GetTripByID(ctx context.Context, id string) (*model.Trip, error)
	GetAllTrips(ctx context.Context, f repository.TripFilter) ([]model.Trip, error)
	GetTripsByCreator(ctx context.Context, creatorID string) ([]model.Trip, error)
	CreateTrip(ctx context.Context, owner *model.User, in service.TripInput) (*model.Trip, error)
	UpdateTrip(ctx context.Context, actorID, id string, in service.TripInput) (*model.Trip, error)
	DeleteTrip(ctx context.Context, actorID, id string) error
}

// TripHandler serves the trip catalog.
type TripHandler struct {
	Trips Trips
}

func NewTripHandler(t Trips) *TripHandler { return &TripHandler{Trips: t} }

// ----- DTOs -----

type tripReq struct {
	Title      string                `json:"title"`
	About      model.TripAbout       `json:"about"`
	Host       model.TripHost        `json:"host"`
	PriceInINR int64                 `json:"priceInInr"`
	Packages   []model.Package       `json:"packages"`
	Status     string                `json:"status"`
	Itinerary  []model.ItineraryItem `json:"itinerary"`
	Inclusions []string              `json:"inclusions"`
	Exclusions []string              `json:"exclusions"`
}

func (r tripReq) input() service.TripInput {
	return service.TripInput{
		Title:      r.Title,
		About:      r.About,
		Host:       r.Host,
		PriceInINR: r.PriceInINR,
		Packages:   r.Packages,
		Status:     r.Status,
		Itinerary:  r.Itinerary,
		Inclusions: r.Inclusions,
		Exclusions: r.Exclusions,
	}
}

// List returns trips, optionally filtered by ?status= and ?location=.
func (h *TripHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	ts, err := h.Trips.GetAllTrips(ctx, repository.TripFilter{
		Status:   c.QueryParam("status"),
		Location: c.QueryParam("location"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"trips": ts, "count": len(ts)})
}

// Get returns one trip.
func (h *TripHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Trips.GetTripByID(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Create publishes a trip for the organizer loaded by RequireOrganizer.
func (h *TripHandler) Create(c echo.Context) error {
	var req tripReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Trips.CreateTrip(ctx, middleware.CurrentUser(c), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// Update replaces a trip's mutable fields.  Owner only.
func (h *TripHandler) Update(c echo.Context) error {
	var req tripReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Trips.UpdateTrip(ctx, middleware.UserID(c), c.Param("id"), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Delete removes a trip.  Owner only; refused with 409 and the number of
// blocking bookings while any are Pending or Approved.
func (h *TripHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Trips.DeleteTrip(ctx, middleware.UserID(c), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Mine lists the trips of the calling organizer.
func (h *TripHandler) Mine(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	ts, err := h.Trips.GetTripsByCreator(ctx, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"trips": ts, "count": len(ts)})
}
