package service

import (
	"context"
	"time"

	"github.com/iliyamo/trip-marketplace/internal/apperr"
	"github.com/iliyamo/trip-marketplace/internal/model"
	"github.com/iliyamo/trip-marketplace/internal/utils"
)

// OTPStore persists one code record per email.
type OTPStore interface {
	Put(ctx context.Context, rec model.OTPRecord) error
	Consume(ctx context.Context, email, codeHash string, now time.Time) (bool, error)
}

// OTPService issues and verifies email one-time codes.  It never sends
// email itself; callers deliver the returned code.
type OTPService struct {
	store  OTPStore
	secret string
	length int
	ttl    time.Duration
	now    Clock
	digits func(n int) (string, error)
}

func NewOTPService(store OTPStore, secret string, length int, ttl time.Duration) *OTPService {
	return &OTPService{store: store, secret: secret, length: length, ttl: ttl, now: utcNow, digits: utils.RandomDigits}
}

func (s *OTPService) WithClock(c Clock) *OTPService { s.now = c; return s }

// TTL is how long issued codes stay valid.
func (s *OTPService) TTL() time.Duration { return s.ttl }

// Create issues a new code for email, superseding any earlier one.
func (s *OTPService) Create(ctx context.Context, email string) (string, error) {
	email = model.NormalizeEmail(email)
	code, err := s.digits(s.length)
	if err != nil {
		return "", apperr.Upstream("generate code", err)
	}
	now := s.now()
	rec := model.OTPRecord{
		Email:     email,
		CodeHash:  utils.HashCode(s.secret, email, code),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return "", apperr.Upstream("store code", err)
	}
	return code, nil
}

// Verify consumes the active code for email when code matches.  Absent,
// expired, consumed and mismatched codes all yield false without error; only
// store failures are errors.
func (s *OTPService) Verify(ctx context.Context, email, code string) (bool, error) {
	email = model.NormalizeEmail(email)
	if len(code) != s.length || !utils.IsDigits(code) {
		return false, nil
	}
	ok, err := s.store.Consume(ctx, email, utils.HashCode(s.secret, email, code), s.now())
	if err != nil {
		return false, apperr.Upstream("verify code", err)
	}
	return ok, nil
}
