package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/trip-marketplace/internal/config"
	"github.com/iliyamo/trip-marketplace/internal/handler"
	"github.com/iliyamo/trip-marketplace/internal/middleware"
	"github.com/iliyamo/trip-marketplace/internal/model"
)

type noUsers struct{}

func (noUsers) GetUserByID(context.Context, string) (*model.User, error) { return nil, nil }

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	keys := func(*jwt.Token) (interface{}, error) { return nil, jwt.ErrTokenUnverifiable }
	auth := config.AuthConfig{
		Issuer: "https://idp.example.com", Audience: "trip-marketplace",
		SessionSecret: "secret", SessionIssuer: "trip-marketplace", SessionTTLMin: 60,
	}
	d := Deps{
		Verifier: middleware.NewTokenVerifier(keys, auth),
		Users:    noUsers{},
		Redis:    rdb,
		RateLimit: config.RateLimitConfig{
			Enabled: true, Capacity: 100, RefillTokens: 1, RefillInterval: time.Second,
			TTL: time.Minute, KeyStrategy: "ip_route", Prefix: "rl",
		},
		Cache: config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true},
			TTL: time.Minute, KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1 << 20},
	}

	e := echo.New()
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	RegisterRoutes(e, okPinger{})
	v1 := API(e, d)
	trips := handler.NewTripHandler(nil)
	bookings := handler.NewBookingHandler(nil)
	RegisterAuth(v1, handler.NewAuthHandler(auth, nil, nil, nil, nil), d)
	RegisterTrips(v1, trips, d)
	RegisterOrganizer(v1, trips, bookings, d)
	RegisterBookings(v1, bookings, d)
	return e
}

func TestRouteTable(t *testing.T) {
	e := newTestServer(t)
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /readyz",
		"POST /v1/auth/send-otp",
		"POST /v1/auth/verify-otp",
		"POST /v1/auth/verify-otp-login",
		"POST /v1/auth/signup",
		"GET /v1/me",
		"PUT /v1/me",
		"GET /v1/users/organiser",
		"GET /v1/trips",
		"GET /v1/trips/:id",
		"POST /v1/trips",
		"PUT /v1/trips/:id",
		"DELETE /v1/trips/:id",
		"GET /v1/organizer/trips",
		"GET /v1/organizer/bookings",
		"GET /v1/organizer/stats",
		"GET /v1/trips/:id/bookings",
		"POST /v1/bookings",
		"POST /v1/bookings/approve",
		"PUT /v1/bookings/:id",
		"GET /v1/bookings/:id",
		"GET /v1/bookings/check",
		"GET /v1/bookings/search",
		"GET /v1/my-bookings",
	} {
		if !have[want] {
			t.Errorf("route %q not registered", want)
		}
	}
}

func TestBearerRoutesRejectAnonymous(t *testing.T) {
	e := newTestServer(t)
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/v1/me"},
		{http.MethodPost, "/v1/auth/signup"},
		{http.MethodPost, "/v1/trips"},
		{http.MethodDelete, "/v1/trips/t-1"},
		{http.MethodGet, "/v1/organizer/stats"},
		{http.MethodPost, "/v1/bookings/approve"},
		{http.MethodGet, "/v1/bookings/b-1"},
		{http.MethodGet, "/v1/my-bookings"},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(r.method, r.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d, want 401", r.method, r.path, rec.Code)
		}
	}
}

func TestProbes(t *testing.T) {
	e := newTestServer(t)
	for _, p := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s = %d", p, rec.Code)
		}
	}
}
