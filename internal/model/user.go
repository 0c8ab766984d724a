package model

import (
	"strings"
	"time"
)

// Role values accepted for users. Two spellings of the organizer role are in
// circulation; both are treated as the same concept by IsOrganizer.
const (
	RoleCustomer      = "customer"
	RoleTripOrganizer = "trip-organizer"
	RoleOrganiser     = "organiser"
)

// User represents a marketplace account.  It mirrors the `users` table.
//
// Fields:
//
//	ID            – subject of the identity provider account (primary key).
//	Email         – unique, lower-cased email address.
//	Name          – display name.
//	Role          – one of the Role* constants; never changes after creation.
//	EmailVerified – set once an OTP for Email has been verified.
//	Phone         – optional contact phone.
//	CreatedAt     – creation timestamp.
//	UpdatedAt     – last update timestamp.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	Contact       Contact   `json:"contact"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Contact holds optional contact details of a user.
type Contact struct {
	Phone string `json:"phone,omitempty"`
}

// ValidRole reports whether r is a known role value.
func ValidRole(r string) bool {
	switch r {
	case RoleCustomer, RoleTripOrganizer, RoleOrganiser:
		return true
	}
	return false
}

// IsOrganizer reports whether the role owns trips.
func IsOrganizer(role string) bool {
	r := strings.ToLower(strings.TrimSpace(role))
	return r == RoleTripOrganizer || r == RoleOrganiser
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
