package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/trip-marketplace/internal/apperr"
	"github.com/iliyamo/trip-marketplace/internal/model"
	"github.com/iliyamo/trip-marketplace/internal/repository"
	"github.com/iliyamo/trip-marketplace/internal/utils"
)

// UserStore is the persistence the user directory needs.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, u *model.User) error
	SetEmailVerified(ctx context.Context, id string) error
}

// NewUser is the profile submitted at sign-up.
type NewUser struct {
	Name  string
	Role  string
	Phone string
}

// ProfileUpdate is a partial profile.  Nil fields are left unchanged.
type ProfileUpdate struct {
	Name  *string
	Phone *string
	Role  *string
}

// UserDirectory manages user profiles.
type UserDirectory struct {
	store UserStore
	now   Clock
}

func NewUserDirectory(store UserStore) *UserDirectory {
	return &UserDirectory{store: store, now: utcNow}
}

func (d *UserDirectory) WithClock(c Clock) *UserDirectory { d.now = c; return d }

// GetUserByEmail returns the user with email, or nil when there is none.
func (d *UserDirectory) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return d.lookup(d.store.GetByEmail(ctx, model.NormalizeEmail(email)))
}

// GetUserByID returns the user with id, or nil when there is none.
func (d *UserDirectory) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, nil
	}
	return d.lookup(d.store.GetByID(ctx, id))
}

func (d *UserDirectory) lookup(u *model.User, err error) (*model.User, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Upstream("load user", err)
	}
	return u, nil
}

// CreateUser registers the profile of an identity-provider account.  The
// user id is the token subject and the email comes from the token.
func (d *UserDirectory) CreateUser(ctx context.Context, who model.Authenticated, in NewUser) (*model.User, error) {
	email := model.NormalizeEmail(who.Email)
	fields := map[string]string{}
	if who.UserID == "" {
		return nil, apperr.Unauthenticated("token has no subject")
	}
	if email == "" {
		fields["email"] = "token has no email claim"
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		fields["name"] = "is required"
	}
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = model.RoleCustomer
	}
	if !model.ValidRole(role) {
		fields["role"] = "must be one of customer, trip-organizer, organiser"
	}
	phone := utils.DigitsOnly(in.Phone)
	if in.Phone != "" && len(phone) != 10 {
		fields["phone"] = "must be a 10 digit number"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid profile", fields)
	}

	now := d.now()
	u := &model.User{
		ID:        who.UserID,
		Email:     email,
		Name:      name,
		Role:      role,
		Contact:   model.Contact{Phone: phone},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.store.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("user already exists")
		}
		return nil, apperr.Upstream("create user", err)
	}
	return u, nil
}

// UpdateUser applies p to the user.  A role equal to the stored one is
// accepted and ignored; any other role fails with ErrRoleChangeNotAllowed and
// nothing is written.
func (d *UserDirectory) UpdateUser(ctx context.Context, id string, p ProfileUpdate) (*model.User, error) {
	u, err := d.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user")
	}
	if p.Role != nil && strings.TrimSpace(*p.Role) != u.Role {
		return nil, apperr.ErrRoleChangeNotAllowed
	}

	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, apperr.Field("name", "must not be empty")
		}
		u.Name = name
	}
	if p.Phone != nil {
		phone := utils.DigitsOnly(*p.Phone)
		if phone != "" && len(phone) != 10 {
			return nil, apperr.Field("phone", "must be a 10 digit number")
		}
		u.Contact.Phone = phone
	}
	u.UpdatedAt = d.now()
	if err := d.store.UpdateProfile(ctx, u); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.Upstream("update user", err)
	}
	return u, nil
}

// VerifyUserEmail sets EmailVerified.  Calling it again is a no-op.
func (d *UserDirectory) VerifyUserEmail(ctx context.Context, id string) error {
	err := d.store.SetEmailVerified(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("user")
	}
	if err != nil {
		return apperr.Upstream("verify email", err)
	}
	return nil
}

// IsEmailOrganiser reports whether email belongs to an organizer account.
func (d *UserDirectory) IsEmailOrganiser(ctx context.Context, email string) (bool, error) {
	u, err := d.GetUserByEmail(ctx, email)
	if err != nil || u == nil {
		return false, err
	}
	return model.IsOrganizer(u.Role), nil
}
