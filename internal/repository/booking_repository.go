package repository

// This file holds queries over the `bookings` table.  Listing queries join
// trips so callers get the trip title, host name and owner in one round trip.

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/trip-marketplace/internal/model"
)

// BookingRepo encapsulates all database queries related to bookings.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `b.id, b.trip_id, b.created_by, b.traveler_name, b.traveler_email, b.traveler_phone,
	b.group_size, b.preferences, b.package_name, b.total_amount, b.status, b.payment_status,
	b.rejection_reason, b.approved_at, b.approved_by, b.rejected_at, b.rejected_by, b.booking_date, b.updated_at`

const bookingViewSelect = "SELECT " + bookingColumns + `, t.title, t.host_name, t.created_by
	FROM bookings b JOIN trips t ON t.id = b.trip_id`

type rowScanner interface{ Scan(...any) error }

func scanBookingInto(row rowScanner, b *model.Booking, extra ...any) error {
	var (
		createdBy, preferences, reason, approvedBy, rejectedBy sql.NullString
		approvedAt, rejectedAt                                 sql.NullTime
	)
	dest := []any{&b.ID, &b.TripID, &createdBy, &b.TravelerName, &b.TravelerEmail, &b.TravelerPhone,
		&b.GroupSize, &preferences, &b.PackageName, &b.TotalAmount, &b.Status, &b.PaymentStatus,
		&reason, &approvedAt, &approvedBy, &rejectedAt, &rejectedBy, &b.BookingDate, &b.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	b.CreatedBy = createdBy.String
	b.Preferences = preferences.String
	b.RejectionReason = reason.String
	b.ApprovedBy = approvedBy.String
	b.RejectedBy = rejectedBy.String
	if approvedAt.Valid {
		t := approvedAt.Time
		b.ApprovedAt = &t
	}
	if rejectedAt.Valid {
		t := rejectedAt.Time
		b.RejectedAt = &t
	}
	return nil
}

func scanBookingView(row rowScanner) (*model.BookingView, error) {
	var v model.BookingView
	if err := scanBookingInto(row, &v.Booking, &v.TripTitle, &v.HostName, &v.TripOwner); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *BookingRepo) queryViews(ctx context.Context, q string, args ...any) ([]model.BookingView, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.BookingView{}
	for rows.Next() {
		v, err := scanBookingView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Create inserts a booking.  The caller assigns ID and timestamps.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (id, trip_id, created_by, traveler_name, traveler_email, traveler_phone,
		group_size, preferences, package_name, total_amount, status, payment_status, booking_date, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q, b.ID, b.TripID, nullString(b.CreatedBy), b.TravelerName, b.TravelerEmail,
		b.TravelerPhone, b.GroupSize, nullString(b.Preferences), b.PackageName, b.TotalAmount, b.Status,
		b.PaymentStatus, b.BookingDate, b.UpdatedAt)
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID returns a booking joined with its trip.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.BookingView, error) {
	return scanBookingView(r.db.QueryRowContext(ctx, bookingViewSelect+" WHERE b.id = ?", id))
}

// UpdateState writes status, payment status and approval metadata.
func (r *BookingRepo) UpdateState(ctx context.Context, b *model.Booking) error {
	return r.writeState(ctx, b, "")
}

// UpdateStateFrom is UpdateState guarded by the stored status: the row is
// written only while its status is still from.  It returns ErrStaleWrite
// when another writer moved the booking first.
func (r *BookingRepo) UpdateStateFrom(ctx context.Context, b *model.Booking, from string) error {
	return r.writeState(ctx, b, from)
}

func (r *BookingRepo) writeState(ctx context.Context, b *model.Booking, from string) error {
	q := `UPDATE bookings SET status = ?, payment_status = ?, rejection_reason = ?, approved_at = ?,
		approved_by = ?, rejected_at = ?, rejected_by = ?, updated_at = ? WHERE id = ?`
	args := []any{b.Status, b.PaymentStatus, nullString(b.RejectionReason),
		nullTime(b.ApprovedAt), nullString(b.ApprovedBy), nullTime(b.RejectedAt), nullString(b.RejectedBy),
		b.UpdatedAt, b.ID}
	if from != "" {
		q += " AND status = ?"
		args = append(args, from)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// Zero rows also covers a write that changed nothing.
	var status string
	err = r.db.QueryRowContext(ctx, "SELECT status FROM bookings WHERE id = ?", b.ID).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case err != nil:
		return err
	case from != "" && status != from:
		return ErrStaleWrite
	}
	return nil
}

// ListByTrip returns all bookings of a trip, newest first.
func (r *BookingRepo) ListByTrip(ctx context.Context, tripID string) ([]model.BookingView, error) {
	return r.queryViews(ctx, bookingViewSelect+" WHERE b.trip_id = ? ORDER BY b.booking_date DESC", tripID)
}

// ListByOrganizer returns bookings across every trip owned by organizerID.
func (r *BookingRepo) ListByOrganizer(ctx context.Context, organizerID string) ([]model.BookingView, error) {
	return r.queryViews(ctx, bookingViewSelect+" WHERE t.created_by = ? ORDER BY b.booking_date DESC", organizerID)
}

// ListByCreator returns bookings made by an authenticated user.
func (r *BookingRepo) ListByCreator(ctx context.Context, userID string) ([]model.BookingView, error) {
	return r.queryViews(ctx, bookingViewSelect+" WHERE b.created_by = ? ORDER BY b.booking_date DESC", userID)
}

// ListByEmail returns bookings whose traveler email matches (case-insensitive).
func (r *BookingRepo) ListByEmail(ctx context.Context, email string) ([]model.BookingView, error) {
	return r.queryViews(ctx, bookingViewSelect+" WHERE LOWER(b.traveler_email) = ? ORDER BY b.booking_date DESC",
		model.NormalizeEmail(email))
}

// ListByPhone returns bookings whose normalised traveler phone matches.
func (r *BookingRepo) ListByPhone(ctx context.Context, phone string) ([]model.BookingView, error) {
	return r.queryViews(ctx, bookingViewSelect+" WHERE b.traveler_phone = ? ORDER BY b.booking_date DESC", phone)
}

// FindForUserAndTrip returns the most recent booking a user made for a trip.
func (r *BookingRepo) FindForUserAndTrip(ctx context.Context, userID, tripID string) (*model.BookingView, error) {
	return scanBookingView(r.db.QueryRowContext(ctx,
		bookingViewSelect+" WHERE b.created_by = ? AND b.trip_id = ? ORDER BY b.booking_date DESC LIMIT 1",
		userID, tripID))
}

// StatsForOrganizer aggregates booking counts across an organizer's trips.
func (r *BookingRepo) StatsForOrganizer(ctx context.Context, organizerID string) (model.BookingStats, error) {
	const q = `SELECT b.status, COUNT(*) FROM bookings b JOIN trips t ON t.id = b.trip_id
		WHERE t.created_by = ? GROUP BY b.status`
	rows, err := r.db.QueryContext(ctx, q, organizerID)
	if err != nil {
		return model.BookingStats{}, err
	}
	defer rows.Close()

	var st model.BookingStats
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return model.BookingStats{}, err
		}
		st.Total += n
		switch status {
		case model.BookingPending:
			st.Pending = n
		case model.BookingApproved:
			st.Approved = n
		case model.BookingRejected:
			st.Rejected = n
		}
	}
	return st, rows.Err()
}
