package model

// Identity is who is acting on a request: an authenticated user or a guest.
// It is a closed sum type; switch on the concrete type.
type Identity interface {
	isIdentity()
}

// Authenticated is a caller with a verified bearer token.
type Authenticated struct {
	UserID string
	Email  string
}

// Guest is a caller without a token.
type Guest struct{}

func (Authenticated) isIdentity() {}
func (Guest) isIdentity()         {}

// UserIDOf returns the user id of an authenticated identity and "" for guests.
func UserIDOf(id Identity) string {
	if a, ok := id.(Authenticated); ok {
		return a.UserID
	}
	return ""
}
