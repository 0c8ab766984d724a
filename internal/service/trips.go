package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/trip-marketplace/internal/apperr"
	"github.com/iliyamo/trip-marketplace/internal/model"
	"github.com/iliyamo/trip-marketplace/internal/repository"
)

// TripStore is the persistence the trip catalog needs.
type TripStore interface {
	Create(ctx context.Context, t *model.Trip) error
	GetByID(ctx context.Context, id string) (*model.Trip, error)
	ListAll(ctx context.Context, f repository.TripFilter) ([]model.Trip, error)
	ListByCreator(ctx context.Context, creatorID string) ([]model.Trip, error)
	Update(ctx context.Context, t *model.Trip) error
	// DeleteUnlessBooked deletes the trip atomically unless it still has
	// Pending or Approved bookings, whose count it returns instead.
	DeleteUnlessBooked(ctx context.Context, id, ownerID string) (int, error)
}

// TripInput holds the mutable fields of a trip.
type TripInput struct {
	Title      string
	About      model.TripAbout
	Host       model.TripHost
	PriceInINR int64
	Packages   []model.Package
	Status     string
	Itinerary  []model.ItineraryItem
	Inclusions []string
	Exclusions []string
}

// TripCatalog manages trip listings.
type TripCatalog struct {
	trips TripStore
	now   Clock
}

func NewTripCatalog(trips TripStore) *TripCatalog {
	return &TripCatalog{trips: trips, now: utcNow}
}

func (c *TripCatalog) WithClock(cl Clock) *TripCatalog { c.now = cl; return c }

// GetTripByID returns the trip or a NotFound error.
func (c *TripCatalog) GetTripByID(ctx context.Context, id string) (*model.Trip, error) {
	t, err := c.trips.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("trip")
	}
	if err != nil {
		return nil, apperr.Upstream("load trip", err)
	}
	return t, nil
}

// GetAllTrips lists trips, optionally filtered by status and location.
func (c *TripCatalog) GetAllTrips(ctx context.Context, f repository.TripFilter) ([]model.Trip, error) {
	if f.Status != "" && !model.ValidTripStatus(f.Status) {
		return nil, apperr.Field("status", "is not a valid trip status")
	}
	ts, err := c.trips.ListAll(ctx, f)
	if err != nil {
		return nil, apperr.Upstream("list trips", err)
	}
	return ts, nil
}

// GetTripsByCreator lists the trips owned by creatorID.
func (c *TripCatalog) GetTripsByCreator(ctx context.Context, creatorID string) ([]model.Trip, error) {
	ts, err := c.trips.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, apperr.Upstream("list trips", err)
	}
	return ts, nil
}

// CreateTrip publishes a trip owned by owner, who must be an organizer.
func (c *TripCatalog) CreateTrip(ctx context.Context, owner *model.User, in TripInput) (*model.Trip, error) {
	if owner == nil || !model.IsOrganizer(owner.Role) {
		return nil, apperr.Forbidden("only trip organizers can create trips")
	}
	in = normalizeTripInput(in, model.TripUpcoming)
	if err := validateTripInput(in); err != nil {
		return nil, err
	}
	now := c.now()
	t := &model.Trip{ID: newID(), CreatedBy: owner.ID, CreatedAt: now}
	applyTripInput(t, in, now)
	if t.Host.Name == "" {
		t.Host.Name = owner.Name
	}
	if err := c.trips.Create(ctx, t); err != nil {
		return nil, apperr.Upstream("create trip", err)
	}
	return t, nil
}

// UpdateTrip replaces the mutable fields of a trip.  Only the owner may
// update; ID and CreatedBy never change.
func (c *TripCatalog) UpdateTrip(ctx context.Context, actorID, id string, in TripInput) (*model.Trip, error) {
	t, err := c.GetTripByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID == "" || t.CreatedBy != actorID {
		return nil, apperr.Forbidden("only the trip owner can update this trip")
	}
	in = normalizeTripInput(in, t.Status)
	if err := validateTripInput(in); err != nil {
		return nil, err
	}
	applyTripInput(t, in, c.now())
	if err := c.trips.Update(ctx, t); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return nil, apperr.NotFound("trip")
		}
		return nil, apperr.Upstream("update trip", err)
	}
	return t, nil
}

// DeleteTrip removes a trip owned by actorID.  It fails with
// apperr.ErrActiveBookingsExist, carrying the count, while any booking of
// the trip is Pending or Approved.
func (c *TripCatalog) DeleteTrip(ctx context.Context, actorID, id string) error {
	t, err := c.GetTripByID(ctx, id)
	if err != nil {
		return err
	}
	if actorID == "" || t.CreatedBy != actorID {
		return apperr.Forbidden("only the trip owner can delete this trip")
	}
	n, err := c.trips.DeleteUnlessBooked(ctx, id, actorID)
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrStaleWrite):
		return apperr.NotFound("trip")
	case err != nil:
		return apperr.Upstream("delete trip", err)
	case n > 0:
		return apperr.ActiveBookings(n)
	}
	return nil
}

func applyTripInput(t *model.Trip, in TripInput, now time.Time) {
	t.Title = in.Title
	t.About = in.About
	t.Host = in.Host
	t.PriceInINR = in.PriceInINR
	t.Packages = in.Packages
	t.Status = in.Status
	t.Itinerary = in.Itinerary
	t.Inclusions = in.Inclusions
	t.Exclusions = in.Exclusions
	t.UpdatedAt = now
}

// normalizeTripInput trims text fields and fills an empty status with
// defaultStatus.
func normalizeTripInput(in TripInput, defaultStatus string) TripInput {
	in.Title = strings.TrimSpace(in.Title)
	in.About.Location = strings.TrimSpace(in.About.Location)
	in.Host.Name = strings.TrimSpace(in.Host.Name)
	in.Status = strings.TrimSpace(in.Status)
	if in.Status == "" {
		in.Status = defaultStatus
	}
	for i := range in.Packages {
		in.Packages[i].Name = strings.TrimSpace(in.Packages[i].Name)
		if in.Packages[i].Currency == "" {
			in.Packages[i].Currency = "INR"
		}
	}
	return in
}

func validateTripInput(in TripInput) error {
	fields := map[string]string{}
	if in.Title == "" {
		fields["title"] = "is required"
	}
	if in.About.Location == "" {
		fields["about.location"] = "is required"
	}
	if in.About.StartDate.IsZero() {
		fields["about.startDate"] = "is required"
	}
	if !in.About.EndDate.IsZero() && in.About.EndDate.Before(in.About.StartDate) {
		fields["about.endDate"] = "must not be before startDate"
	}
	if in.About.GroupSizeMin < 0 || in.About.GroupSizeMax < 0 ||
		(in.About.GroupSizeMax > 0 && in.About.GroupSizeMin > in.About.GroupSizeMax) {
		fields["about.groupSize"] = "invalid range"
	}
	if in.About.AgeMin < 0 || in.About.AgeMax < 0 ||
		(in.About.AgeMax > 0 && in.About.AgeMin > in.About.AgeMax) {
		fields["about.age"] = "invalid range"
	}
	if in.PriceInINR < 0 {
		fields["priceInInr"] = "must not be negative"
	}
	if in.PriceInINR == 0 && len(in.Packages) == 0 {
		fields["priceInInr"] = "price or at least one package is required"
	}
	seen := map[string]bool{}
	for _, p := range in.Packages {
		switch {
		case p.Name == "":
			fields["packages"] = "every package needs a name"
		case seen[p.Name]:
			fields["packages"] = "package names must be unique"
		case p.Price <= 0:
			fields["packages"] = "package price must be positive"
		}
		seen[p.Name] = true
	}
	if !model.ValidTripStatus(in.Status) {
		fields["status"] = "must be one of Upcoming, Ongoing, Active, Completed, Cancelled"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid trip", fields)
	}
	return nil
}
