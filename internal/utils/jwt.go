package utils // package utils provides helpers for session tokens and code hashing

import (
	"crypto/hmac"   // keyed hashing of one-time codes
	"crypto/sha256" // SHA-256 digest used by the HMAC
	"encoding/hex"  // hex encoding of digests
	"time"          // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// SessionToken is a signed HS256 JWT minted after a successful OTP login
// together with its expiry.
type SessionToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// SessionClaims are the claims carried by session tokens.  Subject holds the
// user id so the Auth Gateway treats them like identity provider tokens.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// NewSessionToken builds and signs an HS256 JWT for a user.  Issuer is
// checked by the Auth Gateway to tell session tokens apart from identity
// provider tokens.
func NewSessionToken(secret, issuer, userID, email string, ttlMin int, now time.Time) (SessionToken, error) {
	exp := now.UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now.UTC()),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// HashCode returns the hex HMAC-SHA256 of "email:code" under secret.  Only
// this value is stored for one-time codes so a leaked store does not reveal
// live codes.
func HashCode(secret, email, code string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(email + ":" + code))
	return hex.EncodeToString(mac.Sum(nil))
}
