package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-marketplace/internal/apperr"
	"github.com/iliyamo/trip-marketplace/internal/mailer"
	"github.com/iliyamo/trip-marketplace/internal/middleware"
	"github.com/iliyamo/trip-marketplace/internal/model"
	"github.com/iliyamo/trip-marketplace/internal/repository"
	"github.com/iliyamo/trip-marketplace/internal/service"
)

// newTestEcho returns an echo instance wired like the server.  Every request
// runs with identity id.
func newTestEcho(id model.Identity) *echo.Echo {
	e := echo.New()
	e.Validator = NewRequestValidator()
	e.HTTPErrorHandler = HTTPErrorHandler
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id != nil {
				middleware.SetIdentity(c, id)
			}
			return next(c)
		}
	})
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("response is not a JSON object: %v\n%s", err, rec.Body.String())
		}
	}
	return rec, out
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, code, rec.Body.String())
	}
}

func fieldErrors(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	f, ok := body["fields"].(map[string]any)
	if !ok {
		t.Fatalf("no fields in %v", body)
	}
	return f
}

// ----- auth dependencies -----

type otpMock struct {
	create func(ctx context.Context, email string) (string, error)
	verify func(ctx context.Context, email, code string) (bool, error)
}

func (m otpMock) Create(ctx context.Context, email string) (string, error) {
	return m.create(ctx, email)
}
func (m otpMock) Verify(ctx context.Context, email, code string) (bool, error) {
	return m.verify(ctx, email, code)
}
func (otpMock) TTL() time.Duration { return 15 * time.Minute }

type admitterFunc func(ctx context.Context, id string) (service.Decision, error)

func (f admitterFunc) TryAdmit(ctx context.Context, id string) (service.Decision, error) {
	return f(ctx, id)
}

type senderFunc func(ctx context.Context, e mailer.Email) error

func (f senderFunc) Send(ctx context.Context, e mailer.Email) error { return f(ctx, e) }

type usersMock struct {
	byEmail  map[string]*model.User
	verified []string
	created  *service.NewUser
	update   *service.ProfileUpdate
}

func (m *usersMock) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return m.byEmail[email], nil
}

func (m *usersMock) GetUserByID(_ context.Context, id string) (*model.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *usersMock) CreateUser(_ context.Context, who model.Authenticated, in service.NewUser) (*model.User, error) {
	m.created = &in
	return &model.User{ID: who.UserID, Email: who.Email, Name: in.Name, Role: in.Role}, nil
}

func (m *usersMock) UpdateUser(_ context.Context, id string, p service.ProfileUpdate) (*model.User, error) {
	m.update = &p
	return m.GetUserByID(context.Background(), id)
}

func (m *usersMock) VerifyUserEmail(_ context.Context, id string) error {
	m.verified = append(m.verified, id)
	return nil
}

func (m *usersMock) IsEmailOrganiser(_ context.Context, email string) (bool, error) {
	u := m.byEmail[email]
	return u != nil && model.IsOrganizer(u.Role), nil
}

// ----- trip and booking dependencies -----

type tripsMock struct {
	filter   repository.TripFilter
	trips    []model.Trip
	deleteFn func(actorID, id string) error
	owner    *model.User
	input    service.TripInput
}

func (m *tripsMock) GetTripByID(_ context.Context, id string) (*model.Trip, error) {
	for i := range m.trips {
		if m.trips[i].ID == id {
			return &m.trips[i], nil
		}
	}
	return nil, apperr.NotFound("trip")
}

func (m *tripsMock) GetAllTrips(_ context.Context, f repository.TripFilter) ([]model.Trip, error) {
	m.filter = f
	return m.trips, nil
}

func (m *tripsMock) GetTripsByCreator(_ context.Context, creatorID string) ([]model.Trip, error) {
	var out []model.Trip
	for _, t := range m.trips {
		if t.CreatedBy == creatorID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *tripsMock) CreateTrip(_ context.Context, owner *model.User, in service.TripInput) (*model.Trip, error) {
	m.owner, m.input = owner, in
	return &model.Trip{ID: "trip-new", Title: in.Title, CreatedBy: owner.ID}, nil
}

func (m *tripsMock) UpdateTrip(_ context.Context, actorID, id string, in service.TripInput) (*model.Trip, error) {
	m.input = in
	return &model.Trip{ID: id, Title: in.Title, CreatedBy: actorID}, nil
}

func (m *tripsMock) DeleteTrip(_ context.Context, actorID, id string) error {
	return m.deleteFn(actorID, id)
}

type bookingsMock struct {
	who      model.Identity
	input    service.BookingInput
	actor    string
	reason   string
	action   string
	update   service.BookingUpdate
	search   [3]string
	err      error
	views    []model.BookingView
	stats    model.BookingStats
	check    service.BookingCheck
	lastTrip string
}

func (m *bookingsMock) CreateBooking(_ context.Context, who model.Identity, in service.BookingInput) (*model.Booking, error) {
	m.who, m.input = who, in
	if m.err != nil {
		return nil, m.err
	}
	return &model.Booking{ID: "bk-1", TripID: in.TripID, Status: model.BookingPending}, nil
}

func (m *bookingsMock) ApproveBooking(_ context.Context, id, actorID string) (*model.Booking, error) {
	m.action, m.actor = "approve", actorID
	if m.err != nil {
		return nil, m.err
	}
	return &model.Booking{ID: id, Status: model.BookingApproved, ApprovedBy: actorID}, nil
}

func (m *bookingsMock) RejectBooking(_ context.Context, id, actorID, reason string) (*model.Booking, error) {
	m.action, m.actor, m.reason = "reject", actorID, reason
	if m.err != nil {
		return nil, m.err
	}
	return &model.Booking{ID: id, Status: model.BookingRejected, RejectionReason: reason}, nil
}

func (m *bookingsMock) UpdateBooking(_ context.Context, id, actorID string, u service.BookingUpdate) (*model.Booking, error) {
	m.actor, m.update = actorID, u
	if m.err != nil {
		return nil, m.err
	}
	return &model.Booking{ID: id}, nil
}

func (m *bookingsMock) GetBooking(_ context.Context, id, actorID string) (*model.BookingView, error) {
	m.actor = actorID
	if m.err != nil {
		return nil, m.err
	}
	return &model.BookingView{Booking: model.Booking{ID: id}}, nil
}

func (m *bookingsMock) ListTripBookings(_ context.Context, actorID, tripID string) ([]model.BookingView, error) {
	m.actor, m.lastTrip = actorID, tripID
	return m.views, m.err
}

func (m *bookingsMock) GetBookingsForOrganizer(_ context.Context, organizerID string) ([]model.BookingView, error) {
	m.actor = organizerID
	return m.views, m.err
}

func (m *bookingsMock) GetBookingStatsForOrganizer(_ context.Context, organizerID string) (model.BookingStats, error) {
	m.actor = organizerID
	return m.stats, m.err
}

func (m *bookingsMock) GetBookingsByCreator(_ context.Context, userID string) ([]model.BookingView, error) {
	m.actor = userID
	return m.views, m.err
}

func (m *bookingsMock) CheckBooking(_ context.Context, who model.Identity, tripID string) (service.BookingCheck, error) {
	m.who, m.lastTrip = who, tripID
	return m.check, m.err
}

func (m *bookingsMock) FindBookings(_ context.Context, email, phone, query string) ([]model.BookingView, error) {
	m.search = [3]string{email, phone, query}
	return m.views, m.err
}
