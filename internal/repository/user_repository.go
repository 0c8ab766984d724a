package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/trip-marketplace/internal/model"
)

// UserRepo persists user profiles in the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,name,role,email_verified,phone,created_at,updated_at"

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.EmailVerified, &u.Contact.Phone, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a user.  The email is stored as given; callers normalise it.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id,email,name,role,email_verified,phone,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)",
		u.ID, u.Email, u.Name, u.Role, u.EmailVerified, u.Contact.Phone, u.CreatedAt, u.UpdatedAt)
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", model.NormalizeEmail(email)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// UpdateProfile writes the mutable profile fields.  Role and email are never
// part of the statement.
func (r *UserRepo) UpdateProfile(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name=?, phone=?, updated_at=? WHERE id=?",
		u.Name, u.Contact.Phone, u.UpdatedAt, u.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 affected rows for identical values too; confirm existence.
		if _, err := r.GetByID(ctx, u.ID); err != nil {
			return err
		}
	}
	return nil
}

// SetEmailVerified marks the user's email as verified.  Idempotent.
func (r *UserRepo) SetEmailVerified(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_verified=1, updated_at=CURRENT_TIMESTAMP WHERE id=? AND email_verified=0", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
