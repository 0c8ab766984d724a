package service

import (
	"context"
	"time"

	"github.com/iliyamo/trip-marketplace/internal/apperr"
	"github.com/iliyamo/trip-marketplace/internal/model"
	"github.com/iliyamo/trip-marketplace/internal/repository"
)

// WindowStore is the keyed sliding-window backend of the rate limiter.
type WindowStore interface {
	Hit(ctx context.Context, id string, now time.Time, window time.Duration, max int, mode repository.HitMode) (repository.WindowState, error)
}

// Decision is the outcome of a rate limit evaluation.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimiter bounds OTP issuance per email to MaxRequests per trailing Window.
type RateLimiter struct {
	store       WindowStore
	maxRequests int
	window      time.Duration
	now         Clock
}

func NewRateLimiter(store WindowStore, maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests < 1 {
		maxRequests = 1
	}
	return &RateLimiter{store: store, maxRequests: maxRequests, window: window, now: utcNow}
}

// WithClock replaces the limiter's clock.
func (l *RateLimiter) WithClock(c Clock) *RateLimiter { l.now = c; return l }

// Check reports whether a request from id would currently be admitted,
// without recording one.
func (l *RateLimiter) Check(ctx context.Context, id string) (Decision, error) {
	now := l.now()
	st, err := l.store.Hit(ctx, model.NormalizeEmail(id), now, l.window, l.maxRequests, repository.HitPeek)
	if err != nil {
		return Decision{}, apperr.Upstream("rate limit check", err)
	}
	return l.decide(st, st.Count < l.maxRequests, now), nil
}

// Record adds a request for id unconditionally.  Callers pair it with a
// prior Check; TryAdmit does both atomically.
func (l *RateLimiter) Record(ctx context.Context, id string) error {
	if _, err := l.store.Hit(ctx, model.NormalizeEmail(id), l.now(), l.window, l.maxRequests, repository.HitRecord); err != nil {
		return apperr.Upstream("rate limit record", err)
	}
	return nil
}

// TryAdmit records a request for id only when the window has room, in one
// atomic store operation.
func (l *RateLimiter) TryAdmit(ctx context.Context, id string) (Decision, error) {
	now := l.now()
	st, err := l.store.Hit(ctx, model.NormalizeEmail(id), now, l.window, l.maxRequests, repository.HitAdmit)
	if err != nil {
		return Decision{}, apperr.Upstream("rate limit admit", err)
	}
	return l.decide(st, st.Added, now), nil
}

func (l *RateLimiter) decide(st repository.WindowState, allowed bool, now time.Time) Decision {
	remaining := l.maxRequests - st.Count
	if remaining < 0 {
		remaining = 0
	}
	reset := now.Add(l.window)
	if !st.Oldest.IsZero() {
		reset = st.Oldest.Add(l.window)
	}
	return Decision{Allowed: allowed, Remaining: remaining, ResetAt: reset}
}

// MinutesUntil returns the whole minutes (rounded up) from now until t.
func MinutesUntil(t, now time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	m := int(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	return m
}
