package service

import (
	"context"
	"errors"
	"net/mail"
	"sort"
	"strings"

	"github.com/iliyamo/trip-marketplace/internal/apperr"
	"github.com/iliyamo/trip-marketplace/internal/mailer"
	"github.com/iliyamo/trip-marketplace/internal/model"
	"github.com/iliyamo/trip-marketplace/internal/repository"
	"github.com/iliyamo/trip-marketplace/internal/utils"
)

// BookingStore is the persistence the booking engine needs.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.BookingView, error)
	UpdateState(ctx context.Context, b *model.Booking) error
	// UpdateStateFrom writes only while the stored status is still from and
	// returns repository.ErrStaleWrite otherwise.
	UpdateStateFrom(ctx context.Context, b *model.Booking, from string) error
	ListByTrip(ctx context.Context, tripID string) ([]model.BookingView, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]model.BookingView, error)
	ListByCreator(ctx context.Context, userID string) ([]model.BookingView, error)
	ListByEmail(ctx context.Context, email string) ([]model.BookingView, error)
	ListByPhone(ctx context.Context, phone string) ([]model.BookingView, error)
	FindForUserAndTrip(ctx context.Context, userID, tripID string) (*model.BookingView, error)
	StatsForOrganizer(ctx context.Context, organizerID string) (model.BookingStats, error)
}

// TripReader loads trips.
type TripReader interface {
	GetByID(ctx context.Context, id string) (*model.Trip, error)
}

// UserReader loads users.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// Notifier queues an email without waiting for delivery.
type Notifier interface {
	Enqueue(ctx context.Context, e mailer.Email)
}

// phoneDigits is the length of a local phone number.
const phoneDigits = 10

// BookingInput is a booking request.
type BookingInput struct {
	TripID        string
	TravelerName  string
	TravelerEmail string
	TravelerPhone string
	GroupSize     int
	Preferences   string
	PackageName   string
}

// BookingUpdate is the generic status/payment update.  Nil fields are left
// unchanged.
type BookingUpdate struct {
	Status          *string
	PaymentStatus   *string
	RejectionReason *string
}

// BookingCheck answers whether a caller already booked a trip.
type BookingCheck struct {
	HasBooked bool               `json:"hasBooked"`
	Booking   *model.BookingView `json:"booking,omitempty"`
}

// BookingEngine creates bookings and drives their approval state machine.
type BookingEngine struct {
	bookings BookingStore
	trips    TripReader
	users    UserReader
	notify   Notifier
	log      Logger
	baseURL  string
	now      Clock
}

func NewBookingEngine(bookings BookingStore, trips TripReader, users UserReader, notify Notifier, log Logger) *BookingEngine {
	return &BookingEngine{bookings: bookings, trips: trips, users: users, notify: notify, log: log, now: utcNow}
}

func (e *BookingEngine) WithClock(c Clock) *BookingEngine { e.now = c; return e }

// WithBaseURL sets the public web URL used for links in emails.
func (e *BookingEngine) WithBaseURL(u string) *BookingEngine {
	e.baseURL = strings.TrimRight(u, "/")
	return e
}

// CreateBooking validates in, prices it against the trip and stores a
// Pending booking.  Authenticated callers may hold one booking per trip.
func (e *BookingEngine) CreateBooking(ctx context.Context, who model.Identity, in BookingInput) (*model.Booking, error) {
	in, err := validateBookingInput(in)
	if err != nil {
		return nil, err
	}

	trip, err := e.loadTrip(ctx, in.TripID)
	if err != nil {
		return nil, err
	}
	if !trip.Bookable() {
		return nil, apperr.Conflict("trip is not accepting bookings")
	}
	if limit := trip.About.GroupSizeMax; limit > 0 && in.GroupSize > limit {
		return nil, apperr.Field("groupSize", "exceeds the trip's maximum group size")
	}
	total, err := totalAmount(trip, in)
	if err != nil {
		return nil, err
	}

	userID := model.UserIDOf(who)
	if userID != "" {
		booked, err := e.HasUserBookedTrip(ctx, userID, trip.ID)
		if err != nil {
			return nil, err
		}
		if booked {
			return nil, apperr.Conflict("you have already booked this trip")
		}
	}

	now := e.now()
	b := &model.Booking{
		ID:            newID(),
		TripID:        trip.ID,
		CreatedBy:     userID,
		TravelerName:  in.TravelerName,
		TravelerEmail: in.TravelerEmail,
		TravelerPhone: in.TravelerPhone,
		GroupSize:     in.GroupSize,
		Preferences:   in.Preferences,
		PackageName:   in.PackageName,
		TotalAmount:   total,
		Status:        model.BookingPending,
		PaymentStatus: model.PaymentPending,
		BookingDate:   now,
		UpdatedAt:     now,
	}
	if err := e.bookings.Create(ctx, b); err != nil {
		return nil, apperr.Upstream("create booking", err)
	}
	e.log.Infof("booking %s created for trip %s (group=%d total=%d)", b.ID, trip.ID, b.GroupSize, b.TotalAmount)

	e.notifyOrganizer(ctx, trip, b)
	return b, nil
}

func validateBookingInput(in BookingInput) (BookingInput, error) {
	in.TripID = strings.TrimSpace(in.TripID)
	in.TravelerName = strings.TrimSpace(in.TravelerName)
	in.TravelerEmail = model.NormalizeEmail(in.TravelerEmail)
	in.Preferences = strings.TrimSpace(in.Preferences)
	in.PackageName = strings.TrimSpace(in.PackageName)

	fields := map[string]string{}
	if in.TripID == "" {
		fields["tripId"] = "is required"
	}
	if in.TravelerName == "" {
		fields["travelerName"] = "is required"
	}
	if in.TravelerEmail == "" {
		fields["travelerEmail"] = "is required"
	} else if a, err := mail.ParseAddress(in.TravelerEmail); err != nil || a.Address != in.TravelerEmail {
		fields["travelerEmail"] = "must be a valid email address"
	}
	phone := utils.DigitsOnly(in.TravelerPhone)
	if len(phone) != phoneDigits {
		fields["travelerPhone"] = "must be a 10 digit phone number"
	}
	in.TravelerPhone = phone
	if in.GroupSize < 1 {
		fields["groupSize"] = "must be at least 1"
	}
	if len(fields) > 0 {
		return in, apperr.Validation("invalid booking", fields)
	}
	return in, nil
}

// totalAmount prices a booking.  A named package is charged per person or
// once; otherwise the trip price is multiplied by the group size.
func totalAmount(t *model.Trip, in BookingInput) (int64, error) {
	if in.PackageName != "" {
		p, ok := t.FindPackage(in.PackageName)
		if !ok {
			return 0, apperr.Field("packageName", "is not offered by this trip")
		}
		if p.PerPerson {
			return p.Price * int64(in.GroupSize), nil
		}
		return p.Price, nil
	}
	if t.PriceInINR > 0 {
		return t.PriceInINR * int64(in.GroupSize), nil
	}
	return 0, apperr.Field("packageName", "is required for this trip")
}

func (e *BookingEngine) notifyOrganizer(ctx context.Context, trip *model.Trip, b *model.Booking) {
	owner, err := e.users.GetByID(ctx, trip.CreatedBy)
	if err != nil {
		e.log.Warnf("booking %s: load organizer %s: %v", b.ID, trip.CreatedBy, err)
		return
	}
	d := e.details(trip, model.BookingView{Booking: *b, TripTitle: trip.Title, HostName: trip.Host.Name})
	d.Link = e.baseURL + "/dashboard/bookings/" + b.ID
	e.notify.Enqueue(ctx, mailer.BookingReceived(owner.Email, d))
}

// ApproveBooking approves a Pending booking.  Only the trip owner may.
func (e *BookingEngine) ApproveBooking(ctx context.Context, bookingID, actorID string) (*model.Booking, error) {
	v, err := e.loadForOwner(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}
	if v.Status != model.BookingPending {
		return nil, apperr.Conflict("booking is already " + strings.ToLower(v.Status))
	}
	v.MarkApproved(actorID, e.now())
	if err := e.decide(ctx, &v.Booking, "approve booking"); err != nil {
		return nil, err
	}
	e.log.Infof("booking %s approved by %s", v.ID, actorID)
	e.notify.Enqueue(ctx, mailer.BookingApproved(e.detailsFor(ctx, *v)))
	return &v.Booking, nil
}

// RejectBooking rejects a Pending booking with a mandatory reason.  Only
// the trip owner may.
func (e *BookingEngine) RejectBooking(ctx context.Context, bookingID, actorID, reason string) (*model.Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Field("reason", "is required when rejecting a booking")
	}
	v, err := e.loadForOwner(ctx, bookingID, actorID)
	if err != nil {
		return nil, err
	}
	if v.Status != model.BookingPending {
		return nil, apperr.Conflict("booking is already " + strings.ToLower(v.Status))
	}
	v.MarkRejected(actorID, reason, e.now())
	if err := e.decide(ctx, &v.Booking, "reject booking"); err != nil {
		return nil, err
	}
	e.log.Infof("booking %s rejected by %s", v.ID, actorID)
	e.notify.Enqueue(ctx, mailer.BookingRejected(e.detailsFor(ctx, *v)))
	return &v.Booking, nil
}

// decide persists an approve or reject decision.  The write only lands
// while the booking is still Pending in storage, so of two concurrent
// decisions exactly one wins.
func (e *BookingEngine) decide(ctx context.Context, b *model.Booking, op string) error {
	err := e.bookings.UpdateStateFrom(ctx, b, model.BookingPending)
	switch {
	case errors.Is(err, repository.ErrStaleWrite):
		return apperr.Conflict("booking was already decided")
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("booking")
	case err != nil:
		return apperr.Upstream(op, err)
	}
	return nil
}

// UpdateBooking is the dashboard's direct status/payment overwrite.  The
// trip owner may set both; the booking creator may set only the payment
// status.  Moving to Rejected without a reason is allowed here.
func (e *BookingEngine) UpdateBooking(ctx context.Context, bookingID, actorID string, u BookingUpdate) (*model.Booking, error) {
	if u.Status == nil && u.PaymentStatus == nil {
		return nil, apperr.Validation("nothing to update", map[string]string{"status": "status or paymentStatus is required"})
	}
	v, err := e.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	isOwner := actorID != "" && actorID == v.TripOwner
	isCreator := actorID != "" && actorID == v.CreatedBy
	if !isOwner && !isCreator {
		return nil, apperr.Forbidden("not allowed to update this booking")
	}

	statusChanged := false
	now := e.now()
	if u.Status != nil {
		status := strings.TrimSpace(*u.Status)
		if !model.ValidBookingStatus(status) {
			return nil, apperr.Field("status", "must be one of Pending, Approved, Rejected")
		}
		if !isOwner {
			return nil, apperr.Forbidden("only the trip owner can change the booking status")
		}
		if status != v.Status {
			statusChanged = true
			switch status {
			case model.BookingApproved:
				v.MarkApproved(actorID, now)
			case model.BookingRejected:
				reason := ""
				if u.RejectionReason != nil {
					reason = strings.TrimSpace(*u.RejectionReason)
				}
				if reason == "" {
					e.log.Warnf("booking %s moved to Rejected without a reason by %s", v.ID, actorID)
				}
				v.MarkRejected(actorID, reason, now)
			case model.BookingPending:
				v.MarkPending(now)
			}
		}
	}
	if u.PaymentStatus != nil {
		ps := strings.TrimSpace(*u.PaymentStatus)
		if ps == "" || len(ps) > 32 {
			return nil, apperr.Field("paymentStatus", "must be 1 to 32 characters")
		}
		v.PaymentStatus = ps
	}
	v.UpdatedAt = now

	if err := e.bookings.UpdateState(ctx, &v.Booking); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("booking")
		}
		return nil, apperr.Upstream("update booking", err)
	}
	if statusChanged {
		e.log.Infof("booking %s status set to %s by %s", v.ID, v.Status, actorID)
		e.notify.Enqueue(ctx, mailer.BookingStatusChanged(e.detailsFor(ctx, *v)))
	}
	return &v.Booking, nil
}

// GetBooking returns a booking visible to its trip owner or its creator.
func (e *BookingEngine) GetBooking(ctx context.Context, bookingID, actorID string) (*model.BookingView, error) {
	v, err := e.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorID == "" || (actorID != v.TripOwner && actorID != v.CreatedBy) {
		return nil, apperr.Forbidden("not allowed to view this booking")
	}
	return v, nil
}

// GetBookingsForTrip lists every booking of a trip.
func (e *BookingEngine) GetBookingsForTrip(ctx context.Context, tripID string) ([]model.BookingView, error) {
	return e.list(e.bookings.ListByTrip(ctx, tripID))
}

// ListTripBookings is GetBookingsForTrip restricted to the trip owner.
func (e *BookingEngine) ListTripBookings(ctx context.Context, actorID, tripID string) ([]model.BookingView, error) {
	trip, err := e.loadTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if actorID == "" || trip.CreatedBy != actorID {
		return nil, apperr.Forbidden("only the trip owner can list its bookings")
	}
	return e.GetBookingsForTrip(ctx, tripID)
}

// GetBookingsForOrganizer lists bookings across all trips of an organizer.
func (e *BookingEngine) GetBookingsForOrganizer(ctx context.Context, organizerID string) ([]model.BookingView, error) {
	return e.list(e.bookings.ListByOrganizer(ctx, organizerID))
}

// GetBookingStatsForOrganizer counts an organizer's bookings by status.
func (e *BookingEngine) GetBookingStatsForOrganizer(ctx context.Context, organizerID string) (model.BookingStats, error) {
	st, err := e.bookings.StatsForOrganizer(ctx, organizerID)
	if err != nil {
		return model.BookingStats{}, apperr.Upstream("booking stats", err)
	}
	return st, nil
}

// GetBookingsByCreator lists bookings created by an authenticated user.
func (e *BookingEngine) GetBookingsByCreator(ctx context.Context, userID string) ([]model.BookingView, error) {
	return e.list(e.bookings.ListByCreator(ctx, userID))
}

// HasUserBookedTrip reports whether the user has any booking for the trip,
// whatever its status.
func (e *BookingEngine) HasUserBookedTrip(ctx context.Context, userID, tripID string) (bool, error) {
	v, err := e.GetUserBookingForTrip(ctx, userID, tripID)
	return v != nil, err
}

// GetUserBookingForTrip returns the user's latest booking for the trip, or
// nil when there is none.
func (e *BookingEngine) GetUserBookingForTrip(ctx context.Context, userID, tripID string) (*model.BookingView, error) {
	v, err := e.bookings.FindForUserAndTrip(ctx, userID, tripID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Upstream("check booking", err)
	}
	return v, nil
}

// CheckBooking is the duplicate-booking check.  Guests never have one.
func (e *BookingEngine) CheckBooking(ctx context.Context, who model.Identity, tripID string) (BookingCheck, error) {
	if strings.TrimSpace(tripID) == "" {
		return BookingCheck{}, apperr.Field("tripId", "is required")
	}
	switch id := who.(type) {
	case model.Authenticated:
		v, err := e.GetUserBookingForTrip(ctx, id.UserID, tripID)
		if err != nil {
			return BookingCheck{}, err
		}
		return BookingCheck{HasBooked: v != nil, Booking: v}, nil
	default:
		return BookingCheck{}, nil
	}
}

// GetBookingsByEmail lists bookings whose traveler email matches.
func (e *BookingEngine) GetBookingsByEmail(ctx context.Context, email string) ([]model.BookingView, error) {
	return e.list(e.bookings.ListByEmail(ctx, model.NormalizeEmail(email)))
}

// GetBookingsByPhone lists bookings whose traveler phone matches after
// stripping non-digits.
func (e *BookingEngine) GetBookingsByPhone(ctx context.Context, phone string) ([]model.BookingView, error) {
	return e.list(e.bookings.ListByPhone(ctx, utils.DigitsOnly(phone)))
}

// FindBookings is the guest "find my booking" search.  Matches by email and
// phone are merged and deduplicated by id, newest first, then filtered by a
// case-insensitive substring of the trip title or host name.
func (e *BookingEngine) FindBookings(ctx context.Context, email, phone, query string) ([]model.BookingView, error) {
	email = model.NormalizeEmail(email)
	phone = utils.DigitsOnly(phone)
	if email == "" && phone == "" {
		return nil, apperr.Validation("email or phone is required", map[string]string{"email": "email or phone is required"})
	}

	var all []model.BookingView
	if email != "" {
		vs, err := e.GetBookingsByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		all = append(all, vs...)
	}
	if phone != "" {
		vs, err := e.GetBookingsByPhone(ctx, phone)
		if err != nil {
			return nil, err
		}
		all = append(all, vs...)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	seen := make(map[string]bool, len(all))
	out := []model.BookingView{}
	for _, v := range all {
		if seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		if q != "" && !strings.Contains(strings.ToLower(v.TripTitle), q) && !strings.Contains(strings.ToLower(v.HostName), q) {
			continue
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].BookingDate.After(out[j].BookingDate) })
	return out, nil
}

func (e *BookingEngine) list(vs []model.BookingView, err error) ([]model.BookingView, error) {
	if err != nil {
		return nil, apperr.Upstream("list bookings", err)
	}
	return vs, nil
}

func (e *BookingEngine) loadTrip(ctx context.Context, id string) (*model.Trip, error) {
	t, err := e.trips.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("trip")
	}
	if err != nil {
		return nil, apperr.Upstream("load trip", err)
	}
	return t, nil
}

func (e *BookingEngine) loadBooking(ctx context.Context, id string) (*model.BookingView, error) {
	v, err := e.bookings.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("booking")
	}
	if err != nil {
		return nil, apperr.Upstream("load booking", err)
	}
	return v, nil
}

func (e *BookingEngine) loadForOwner(ctx context.Context, bookingID, actorID string) (*model.BookingView, error) {
	v, err := e.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorID == "" || v.TripOwner != actorID {
		return nil, apperr.Forbidden("only the trip owner can approve or reject bookings")
	}
	return v, nil
}

// detailsFor builds email details, loading the trip for dates and location.
// A failed load still yields an email with the booking's own fields.
func (e *BookingEngine) detailsFor(ctx context.Context, v model.BookingView) mailer.BookingDetails {
	trip, err := e.trips.GetByID(ctx, v.TripID)
	if err != nil {
		e.log.Warnf("booking %s: load trip %s for email: %v", v.ID, v.TripID, err)
		trip = nil
	}
	return e.details(trip, v)
}

func (e *BookingEngine) details(trip *model.Trip, v model.BookingView) mailer.BookingDetails {
	d := mailer.BookingDetails{
		Booking:   v.Booking,
		TripTitle: v.TripTitle,
		HostName:  v.HostName,
		Link:      e.baseURL + "/trips",
	}
	if trip != nil {
		d.TripTitle = trip.Title
		d.HostName = trip.Host.Name
		d.Location = trip.About.Location
		d.StartDate = trip.About.StartDate
		d.EndDate = trip.About.EndDate
	}
	return d
}
