package model

import "time"

// OTPRecord is the stored form of an issued one-time code.  Only a keyed hash
// of the code is kept.  One record exists per email; issuing a new code
// replaces it.
type OTPRecord struct {
	Email     string
	CodeHash  string
	CreatedAt time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// Expired reports whether the record is past its expiry at now.
func (r OTPRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
