package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/iliyamo/trip-marketplace/internal/mailer"
	"github.com/iliyamo/trip-marketplace/internal/model"
	"github.com/iliyamo/trip-marketplace/internal/repository"
)

type memUsers struct {
	byID map[string]*model.User
}

func newMemUsers(us ...*model.User) *memUsers {
	m := &memUsers{byID: map[string]*model.User{}}
	for _, u := range us {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	for _, x := range m.byID {
		if x.ID == u.ID || x.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, u *model.User) error {
	x, ok := m.byID[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	x.Name, x.Contact, x.UpdatedAt = u.Name, u.Contact, u.UpdatedAt
	return nil
}

func (m *memUsers) SetEmailVerified(_ context.Context, id string) error {
	x, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	x.EmailVerified = true
	return nil
}

type memTrips struct {
	byID     map[string]*model.Trip
	bookings *memBookings

	// beforeDelete runs at the start of DeleteUnlessBooked.
	beforeDelete func()
}

func newMemTrips(ts ...*model.Trip) *memTrips {
	m := &memTrips{byID: map[string]*model.Trip{}}
	for _, t := range ts {
		m.byID[t.ID] = t
	}
	return m
}

func (m *memTrips) Create(_ context.Context, t *model.Trip) error {
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memTrips) GetByID(_ context.Context, id string) (*model.Trip, error) {
	t, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTrips) ListAll(_ context.Context, f repository.TripFilter) ([]model.Trip, error) {
	out := []model.Trip{}
	for _, t := range m.byID {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Location != "" && !strings.Contains(strings.ToLower(t.About.Location), strings.ToLower(f.Location)) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTrips) ListByCreator(_ context.Context, creatorID string) ([]model.Trip, error) {
	out := []model.Trip{}
	for _, t := range m.byID {
		if t.CreatedBy == creatorID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTrips) Update(_ context.Context, t *model.Trip) error {
	x, ok := m.byID[t.ID]
	if !ok || x.CreatedBy != t.CreatedBy {
		return repository.ErrStaleWrite
	}
	cp := *t
	m.byID[t.ID] = &cp
	return nil
}

func (m *memTrips) DeleteUnlessBooked(_ context.Context, id, ownerID string) (int, error) {
	if m.beforeDelete != nil {
		m.beforeDelete()
	}
	x, ok := m.byID[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if x.CreatedBy != ownerID {
		return 0, repository.ErrStaleWrite
	}
	if m.bookings != nil {
		n := 0
		for _, b := range m.bookings.byID {
			if b.TripID == id && (b.Status == model.BookingPending || b.Status == model.BookingApproved) {
				n++
			}
		}
		if n > 0 {
			return n, nil
		}
	}
	delete(m.byID, id)
	return 0, nil
}

// memBookings joins bookings with trips from a memTrips like the SQL views do.
type memBookings struct {
	trips *memTrips
	byID  map[string]*model.Booking
	order []string
}

func newMemBookings(trips *memTrips, bs ...*model.Booking) *memBookings {
	m := &memBookings{trips: trips, byID: map[string]*model.Booking{}}
	trips.bookings = m
	for _, b := range bs {
		m.byID[b.ID] = b
		m.order = append(m.order, b.ID)
	}
	return m
}

func (m *memBookings) view(b *model.Booking) model.BookingView {
	v := model.BookingView{Booking: *b}
	if t, ok := m.trips.byID[b.TripID]; ok {
		v.TripTitle, v.HostName, v.TripOwner = t.Title, t.Host.Name, t.CreatedBy
	}
	return v
}

func (m *memBookings) filter(keep func(v model.BookingView) bool) []model.BookingView {
	out := []model.BookingView{}
	for i := len(m.order) - 1; i >= 0; i-- {
		v := m.view(m.byID[m.order[i]])
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (m *memBookings) Create(_ context.Context, b *model.Booking) error {
	cp := *b
	m.byID[b.ID] = &cp
	m.order = append(m.order, b.ID)
	return nil
}

func (m *memBookings) GetByID(_ context.Context, id string) (*model.BookingView, error) {
	b, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v := m.view(b)
	return &v, nil
}

func (m *memBookings) UpdateState(_ context.Context, b *model.Booking) error {
	if _, ok := m.byID[b.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *b
	m.byID[b.ID] = &cp
	return nil
}

func (m *memBookings) UpdateStateFrom(ctx context.Context, b *model.Booking, from string) error {
	x, ok := m.byID[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if x.Status != from {
		return repository.ErrStaleWrite
	}
	return m.UpdateState(ctx, b)
}

func (m *memBookings) ListByTrip(_ context.Context, tripID string) ([]model.BookingView, error) {
	return m.filter(func(v model.BookingView) bool { return v.TripID == tripID }), nil
}

func (m *memBookings) ListByOrganizer(_ context.Context, organizerID string) ([]model.BookingView, error) {
	return m.filter(func(v model.BookingView) bool { return v.TripOwner == organizerID }), nil
}

func (m *memBookings) ListByCreator(_ context.Context, userID string) ([]model.BookingView, error) {
	return m.filter(func(v model.BookingView) bool { return v.CreatedBy == userID }), nil
}

func (m *memBookings) ListByEmail(_ context.Context, email string) ([]model.BookingView, error) {
	return m.filter(func(v model.BookingView) bool { return strings.EqualFold(v.TravelerEmail, email) }), nil
}

func (m *memBookings) ListByPhone(_ context.Context, phone string) ([]model.BookingView, error) {
	return m.filter(func(v model.BookingView) bool { return v.TravelerPhone == phone }), nil
}

func (m *memBookings) FindForUserAndTrip(_ context.Context, userID, tripID string) (*model.BookingView, error) {
	vs := m.filter(func(v model.BookingView) bool { return v.CreatedBy == userID && v.TripID == tripID })
	if len(vs) == 0 {
		return nil, repository.ErrNotFound
	}
	return &vs[0], nil
}

func (m *memBookings) StatsForOrganizer(_ context.Context, organizerID string) (model.BookingStats, error) {
	var st model.BookingStats
	for _, v := range m.filter(func(v model.BookingView) bool { return v.TripOwner == organizerID }) {
		st.Total++
		switch v.Status {
		case model.BookingPending:
			st.Pending++
		case model.BookingApproved:
			st.Approved++
		case model.BookingRejected:
			st.Rejected++
		}
	}
	return st, nil
}

// recordingNotifier captures enqueued emails.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []mailer.Email
}

func (r *recordingNotifier) Enqueue(_ context.Context, e mailer.Email) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, e)
}

func (r *recordingNotifier) templates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, e := range r.sent {
		out = append(out, e.Meta["template"])
	}
	return out
}

// MailerFunc adapts a function to Mailer.
type MailerFunc func(ctx context.Context, e mailer.Email) error

func (f MailerFunc) Send(ctx context.Context, e mailer.Email) error { return f(ctx, e) }

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e mailer.Email) error

func (f PublisherFunc) PublishEmail(ctx context.Context, e mailer.Email) error { return f(ctx, e) }
