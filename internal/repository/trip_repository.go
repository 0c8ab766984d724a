package repository

// This file defines repository methods for trip listings.  Nested listing
// sections are kept in JSON columns; location, dates, host name and status are
// duplicated into plain columns so listing filters can use indexes.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/iliyamo/trip-marketplace/internal/model"
)

// TripFilter narrows ListAll.  Zero values mean "no filter".
type TripFilter struct {
	Status   string
	Location string // case-insensitive substring
}

// TripRepo encapsulates all database queries related to trips.
type TripRepo struct {
	db *sql.DB
}

func NewTripRepo(db *sql.DB) *TripRepo { return &TripRepo{db: db} }

const tripColumns = `id, title, created_by, about, host, price_in_inr, packages, status,
	itinerary, inclusions, exclusions, created_at, updated_at`

// tripDoc is the JSON-encoded form of a trip's nested sections.
type tripDoc struct {
	about, host, packages, itinerary, inclusions, exclusions []byte
}

func encodeTrip(t *model.Trip) (tripDoc, error) {
	var d tripDoc
	var err error
	if d.about, err = json.Marshal(t.About); err != nil {
		return d, err
	}
	if d.host, err = json.Marshal(t.Host); err != nil {
		return d, err
	}
	if d.packages, err = marshalList(t.Packages); err != nil {
		return d, err
	}
	if d.itinerary, err = marshalList(t.Itinerary); err != nil {
		return d, err
	}
	if d.inclusions, err = marshalList(t.Inclusions); err != nil {
		return d, err
	}
	d.exclusions, err = marshalList(t.Exclusions)
	return d, err
}

// marshalList encodes nil slices as [] so JSON columns are never null.
func marshalList[T any](v []T) ([]byte, error) {
	if v == nil {
		v = []T{}
	}
	return json.Marshal(v)
}

func scanTrip(row interface{ Scan(...any) error }) (*model.Trip, error) {
	var (
		t model.Trip
		d tripDoc
	)
	err := row.Scan(&t.ID, &t.Title, &t.CreatedBy, &d.about, &d.host, &t.PriceInINR, &d.packages,
		&t.Status, &d.itinerary, &d.inclusions, &d.exclusions, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	for _, part := range []struct {
		raw []byte
		dst any
	}{
		{d.about, &t.About}, {d.host, &t.Host}, {d.packages, &t.Packages},
		{d.itinerary, &t.Itinerary}, {d.inclusions, &t.Inclusions}, {d.exclusions, &t.Exclusions},
	} {
		if len(part.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(part.raw, part.dst); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func (r *TripRepo) queryTrips(ctx context.Context, q string, args ...any) ([]model.Trip, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Create inserts a new trip.  The caller assigns ID and timestamps.
func (r *TripRepo) Create(ctx context.Context, t *model.Trip) error {
	d, err := encodeTrip(t)
	if err != nil {
		return err
	}
	const q = `INSERT INTO trips (id, title, created_by, location, start_date, end_date, about, host, host_name,
		price_in_inr, packages, status, itinerary, inclusions, exclusions, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err = r.db.ExecContext(ctx, q, t.ID, t.Title, t.CreatedBy, t.About.Location, t.About.StartDate, t.About.EndDate,
		d.about, d.host, t.Host.Name, t.PriceInINR, d.packages, t.Status, d.itinerary, d.inclusions, d.exclusions,
		t.CreatedAt, t.UpdatedAt)
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID fetches a trip regardless of owner.
func (r *TripRepo) GetByID(ctx context.Context, id string) (*model.Trip, error) {
	return scanTrip(r.db.QueryRowContext(ctx, "SELECT "+tripColumns+" FROM trips WHERE id = ?", id))
}

// ListAll returns trips ordered by start date.
func (r *TripRepo) ListAll(ctx context.Context, f TripFilter) ([]model.Trip, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		where = append(where, "LOWER(location) LIKE ?")
		args = append(args, "%"+escapeLike(strings.ToLower(loc))+"%")
	}
	q := "SELECT " + tripColumns + " FROM trips"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY start_date, created_at"
	return r.queryTrips(ctx, q, args...)
}

// ListByCreator returns all trips owned by the given organizer.
func (r *TripRepo) ListByCreator(ctx context.Context, creatorID string) ([]model.Trip, error) {
	return r.queryTrips(ctx, "SELECT "+tripColumns+" FROM trips WHERE created_by = ? ORDER BY created_at DESC", creatorID)
}

// Update replaces the mutable fields of a trip owned by t.CreatedBy.  It
// returns ErrStaleWrite when no row with that id and owner exists.
func (r *TripRepo) Update(ctx context.Context, t *model.Trip) error {
	d, err := encodeTrip(t)
	if err != nil {
		return err
	}
	const q = `UPDATE trips SET title = ?, location = ?, start_date = ?, end_date = ?, about = ?, host = ?,
		host_name = ?, price_in_inr = ?, packages = ?, status = ?, itinerary = ?, inclusions = ?, exclusions = ?,
		updated_at = ? WHERE id = ? AND created_by = ?`
	res, err := r.db.ExecContext(ctx, q, t.Title, t.About.Location, t.About.StartDate, t.About.EndDate, d.about, d.host,
		t.Host.Name, t.PriceInINR, d.packages, t.Status, d.itinerary, d.inclusions, d.exclusions, t.UpdatedAt,
		t.ID, t.CreatedBy)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		err := r.db.QueryRowContext(ctx, "SELECT 1 FROM trips WHERE id = ? AND created_by = ?", t.ID, t.CreatedBy).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStaleWrite
		}
		return err
	}
	return nil
}

// DeleteUnlessBooked removes a trip owned by ownerID in one transaction.
// While the trip still has Pending or Approved bookings nothing is deleted
// and their count is returned.  The trip row stays locked until commit, so
// a booking inserted concurrently either lands before the count or fails
// its foreign key.
func (r *TripRepo) DeleteUnlessBooked(ctx context.Context, id, ownerID string) (active int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil || active > 0 {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	var owner string
	err = tx.QueryRowContext(ctx, "SELECT created_by FROM trips WHERE id = ? FOR UPDATE", id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if owner != ownerID {
		return 0, ErrStaleWrite
	}
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE trip_id = ? AND status IN (?, ?) LOCK IN SHARE MODE",
		id, model.BookingPending, model.BookingApproved).Scan(&active)
	if err != nil || active > 0 {
		return active, err
	}
	_, err = tx.ExecContext(ctx, "DELETE FROM trips WHERE id = ?", id)
	return 0, err
}

// escapeLike escapes LIKE wildcards in user supplied text.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
