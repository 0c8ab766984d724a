package service

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/trip-marketplace/internal/apperr"
	"github.com/iliyamo/trip-marketplace/internal/model"
)

func strPtr(s string) *string { return &s }

func TestUpdateUserRejectsRoleChange(t *testing.T) {
	store := newMemUsers(&model.User{ID: "u1", Email: "a@example.com", Name: "A", Role: model.RoleCustomer})
	d := NewUserDirectory(store)
	ctx := context.Background()

	_, err := d.UpdateUser(ctx, "u1", ProfileUpdate{Role: strPtr("other-role")})
	if !errors.Is(err, apperr.ErrRoleChangeNotAllowed) {
		t.Fatalf("UpdateUser(role) err = %v, want ErrRoleChangeNotAllowed", err)
	}
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("kind = %v, want validation", apperr.KindOf(err))
	}
	if store.byID["u1"].Role != model.RoleCustomer {
		t.Errorf("stored role changed to %q", store.byID["u1"].Role)
	}

	u, err := d.UpdateUser(ctx, "u1", ProfileUpdate{Name: strPtr("X")})
	if err != nil {
		t.Fatalf("UpdateUser(name): %v", err)
	}
	if u.Name != "X" || u.Role != model.RoleCustomer {
		t.Errorf("user = %+v", u)
	}
	if store.byID["u1"].Name != "X" {
		t.Error("name not persisted")
	}

	// Repeating the stored role is not a change.
	if _, err := d.UpdateUser(ctx, "u1", ProfileUpdate{Role: strPtr(model.RoleCustomer), Phone: strPtr("98765 43210")}); err != nil {
		t.Errorf("UpdateUser(same role): %v", err)
	}
	if store.byID["u1"].Contact.Phone != "9876543210" {
		t.Errorf("phone = %q", store.byID["u1"].Contact.Phone)
	}
}

func TestUpdateUserMissing(t *testing.T) {
	d := NewUserDirectory(newMemUsers())
	_, err := d.UpdateUser(context.Background(), "nope", ProfileUpdate{Name: strPtr("X")})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestGetUserAbsentIsNil(t *testing.T) {
	d := NewUserDirectory(newMemUsers())
	u, err := d.GetUserByEmail(context.Background(), "x@example.com")
	if u != nil || err != nil {
		t.Errorf("GetUserByEmail = %v, %v; want nil, nil", u, err)
	}
	u, err = d.GetUserByID(context.Background(), "x")
	if u != nil || err != nil {
		t.Errorf("GetUserByID = %v, %v; want nil, nil", u, err)
	}
}

func TestCreateUser(t *testing.T) {
	store := newMemUsers()
	d := NewUserDirectory(store)
	ctx := context.Background()
	who := model.Authenticated{UserID: "sub-1", Email: " Org@Example.com"}

	u, err := d.CreateUser(ctx, who, NewUser{Name: "Org", Role: "organiser"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID != "sub-1" || u.Email != "org@example.com" || u.Role != model.RoleOrganiser {
		t.Errorf("user = %+v", u)
	}

	if _, err := d.CreateUser(ctx, who, NewUser{Name: "Org"}); apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("duplicate err = %v, want conflict", err)
	}

	_, err = d.CreateUser(ctx, model.Authenticated{UserID: "sub-2", Email: "b@example.com"}, NewUser{Role: "admin"})
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindValidation || e.Fields["role"] == "" || e.Fields["name"] == "" {
		t.Errorf("invalid profile err = %#v", err)
	}
}

func TestVerifyEmailAndOrganiserCheck(t *testing.T) {
	store := newMemUsers(
		&model.User{ID: "c", Email: "c@example.com", Role: model.RoleCustomer},
		&model.User{ID: "o1", Email: "o1@example.com", Role: model.RoleTripOrganizer},
		&model.User{ID: "o2", Email: "o2@example.com", Role: model.RoleOrganiser},
	)
	d := NewUserDirectory(store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := d.VerifyUserEmail(ctx, "c"); err != nil {
			t.Fatalf("VerifyUserEmail #%d: %v", i+1, err)
		}
	}
	if !store.byID["c"].EmailVerified {
		t.Error("email not verified")
	}
	if err := d.VerifyUserEmail(ctx, "missing"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("VerifyUserEmail(missing) = %v", err)
	}

	for email, want := range map[string]bool{
		"c@example.com": false, "O1@example.com": true, "o2@example.com": true, "none@example.com": false,
	} {
		got, err := d.IsEmailOrganiser(ctx, email)
		if err != nil || got != want {
			t.Errorf("IsEmailOrganiser(%q) = %v, %v; want %v", email, got, err, want)
		}
	}
}
