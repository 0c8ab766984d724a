package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-marketplace/internal/middleware"
	"github.com/iliyamo/trip-marketplace/internal/model"
	"github.com/iliyamo/trip-marketplace/internal/service"
)

// Bookings is the booking engine used by BookingHandler.
type Bookings interface {
	CreateBooking(ctx context.Context, who model.Identity, in service.BookingInput) (*model.Booking, error)
	ApproveBooking(ctx context.Context, bookingID, actorID string) (*model.Booking, error)
	RejectBooking(ctx context.Context, bookingID, actorID, reason string) (*model.Booking, error)
	UpdateBooking(ctx context.Context, bookingID, actorID string, u service.BookingUpdate) (*model.Booking, error)
	GetBooking(ctx context.Context, bookingID, actorID string) (*model.BookingView, error)
	ListTripBookings(ctx context.Context, actorID, tripID string) ([]model.BookingView, error)
	GetBookingsForOrganizer(ctx context.Context, organizerID string) ([]model.BookingView, error)
	GetBookingStatsForOrganizer(ctx context.Context, organizerID string) (model.BookingStats, error)
	GetBookingsByCreator(ctx context.Context, userID string) ([]model.BookingView, error)
	CheckBooking(ctx context.Context, who model.Identity, tripID string) (service.BookingCheck, error)
	FindBookings(ctx context.Context, email, phone, query string) ([]model.BookingView, error)
}

// BookingHandler serves booking requests and the approval workflow.
type BookingHandler struct {
	Bookings Bookings
}

func NewBookingHandler(b Bookings) *BookingHandler { return &BookingHandler{Bookings: b} }

// ----- DTOs -----

// createBookingReq is validated by the booking engine so guest and
// authenticated requests report the same field errors.
type createBookingReq struct {
	TripID        string `json:"tripId"`
	TravelerName  string `json:"travelerName"`
	TravelerEmail string `json:"travelerEmail"`
	TravelerPhone string `json:"travelerPhone"`
	GroupSize     int    `json:"groupSize"`
	Preferences   string `json:"preferences"`
	PackageName   string `json:"packageName"`
}

type decisionReq struct {
	BookingID string `json:"bookingId" validate:"required"`
	Action    string `json:"action" validate:"required,oneof=approve reject"`
	Reason    string `json:"reason"`
}

func (r *decisionReq) trim() {
	r.BookingID = strings.TrimSpace(r.BookingID)
	r.Action = strings.TrimSpace(r.Action)
}

type updateBookingReq struct {
	Status          *string `json:"status"`
	PaymentStatus   *string `json:"paymentStatus"`
	RejectionReason *string `json:"rejectionReason"`
}

type bookingsResp struct {
	Bookings []model.BookingView `json:"bookings"`
	Count    int                 `json:"count"`
}

func listResp(vs []model.BookingView) bookingsResp {
	if vs == nil {
		vs = []model.BookingView{}
	}
	return bookingsResp{Bookings: vs, Count: len(vs)}
}

// Create places a booking request for a guest or a signed in customer.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Bookings.CreateBooking(ctx, middleware.IdentityFrom(c), service.BookingInput{
		TripID:        req.TripID,
		TravelerName:  req.TravelerName,
		TravelerEmail: req.TravelerEmail,
		TravelerPhone: req.TravelerPhone,
		GroupSize:     req.GroupSize,
		Preferences:   req.Preferences,
		PackageName:   req.PackageName,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": b.ID, "booking": b})
}

// Decide approves or rejects a booking on behalf of the trip owner in the
// bearer token.
func (h *BookingHandler) Decide(c echo.Context) error {
	var req decisionReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	var (
		b   *model.Booking
		err error
	)
	actor := middleware.UserID(c)
	switch strings.ToLower(req.Action) {
	case "approve":
		b, err = h.Bookings.ApproveBooking(ctx, req.BookingID, actor)
	default:
		b, err = h.Bookings.RejectBooking(ctx, req.BookingID, actor, req.Reason)
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Update is the dashboard's direct status/payment update.
func (h *BookingHandler) Update(c echo.Context) error {
	var req updateBookingReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Bookings.UpdateBooking(ctx, c.Param("id"), middleware.UserID(c), service.BookingUpdate{
		Status:          req.Status,
		PaymentStatus:   req.PaymentStatus,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Get returns a booking to its trip owner or its creator.
func (h *BookingHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.Bookings.GetBooking(ctx, c.Param("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Check answers whether the caller already booked ?tripId=.
func (h *BookingHandler) Check(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Bookings.CheckBooking(ctx, middleware.IdentityFrom(c), c.QueryParam("tripId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Search is the guest "find my booking" lookup by ?email= and/or ?phone=,
// optionally narrowed by ?q= on trip title or host name.
func (h *BookingHandler) Search(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	vs, err := h.Bookings.FindBookings(ctx, c.QueryParam("email"), c.QueryParam("phone"), c.QueryParam("q"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, listResp(vs))
}

// Mine lists bookings created by the caller.
func (h *BookingHandler) Mine(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	vs, err := h.Bookings.GetBookingsByCreator(ctx, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, listResp(vs))
}

// ForTrip lists a trip's bookings for its owner.
func (h *BookingHandler) ForTrip(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	vs, err := h.Bookings.ListTripBookings(ctx, middleware.UserID(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, listResp(vs))
}

// ForOrganizer lists bookings across all of the caller's trips.
func (h *BookingHandler) ForOrganizer(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	vs, err := h.Bookings.GetBookingsForOrganizer(ctx, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, listResp(vs))
}

// Stats returns the caller's booking counts by status.
func (h *BookingHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.Bookings.GetBookingStatsForOrganizer(ctx, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
