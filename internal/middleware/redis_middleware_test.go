package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/trip-marketplace/internal/config"
	"github.com/iliyamo/trip-marketplace/internal/model"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: 2 * time.Hour, KeyStrategy: "ip_route", Prefix: "rl",
	}
	e := echo.New()
	e.GET("/v1/trips", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, rdb))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/trips", nil))
		codes = append(codes, rec.Code)
		if i == 2 && rec.Header().Get("Retry-After") == "" {
			t.Error("missing Retry-After on blocked request")
		}
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}

func TestTokenBucketSeparatesGuestsByIP(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: 2 * time.Hour, KeyStrategy: "user", Prefix: "rl", Debug: true,
	}
	e := echo.New()
	e.GET("/v1/trips", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, rdb))

	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/trips", nil)
		req.RemoteAddr = ip + ":40000"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}
	first := hit("203.0.113.7")
	if first.Code != http.StatusNoContent {
		t.Fatalf("first guest status = %d", first.Code)
	}
	if got := first.Header().Get("X-RateLimit-Key"); got != "rl:user:guest@203.0.113.7" {
		t.Errorf("key = %q", got)
	}
	if rec := hit("198.51.100.9"); rec.Code != http.StatusNoContent {
		t.Errorf("second guest status = %d, want its own bucket", rec.Code)
	}
	if rec := hit("203.0.113.7"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("repeat guest status = %d, want 429", rec.Code)
	}
}

func TestBuildRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	req.RemoteAddr = "203.0.113.7:40000"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/bookings")

	tests := []struct {
		strategy, want string
	}{
		{"ip", "rl:ip:203.0.113.7"},
		{"user_route", "rl:user:guest@203.0.113.7:route:POST /v1/bookings"},
		{"IP_Route", "rl:ip:203.0.113.7:route:POST /v1/bookings"},
		{"bogus", "rl:ip:203.0.113.7:user:guest@203.0.113.7:route:POST /v1/bookings"},
	}
	for _, tt := range tests {
		cfg := config.RateLimitConfig{KeyStrategy: tt.strategy, Prefix: "rl"}
		if got := buildRateKey(cfg, c); got != tt.want {
			t.Errorf("%s: key = %q, want %q", tt.strategy, got, tt.want)
		}
	}

	SetIdentity(c, model.Authenticated{UserID: "u-asha", Email: "asha@example.com"})
	if got := buildRateKey(config.RateLimitConfig{KeyStrategy: "user", Prefix: "rl"}, c); got != "rl:user:u-asha" {
		t.Errorf("authenticated key = %q", got)
	}
}

func TestTokenBucketFailsOpen(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, rdb))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want request to pass when redis is down", rec.Code)
	}
}

func TestRedisCacheHitAndInvalidate(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute,
		KeyStrategy: "route_query", Prefix: "cache:trips", MaxBodyBytes: 1 << 20,
	}
	calls := 0
	e := echo.New()
	e.GET("/v1/trips/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "calls": calls})
	}, NewRedisCache(cfg, rdb))
	e.PUT("/v1/trips/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, InvalidateCache(cfg, rdb))

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	first := get("/v1/trips/a")
	second := get("/v1/trips/a")
	if first.Header().Get("X-Cache") != "MISS" || second.Header().Get("X-Cache") != "HIT" {
		t.Errorf("X-Cache = %q then %q", first.Header().Get("X-Cache"), second.Header().Get("X-Cache"))
	}
	if first.Body.String() != second.Body.String() || calls != 1 {
		t.Errorf("cached body differs or handler ran %d times", calls)
	}
	if got := get("/v1/trips/b"); got.Header().Get("X-Cache") != "MISS" {
		t.Error("different trip id served from cache")
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/trips/a", nil))
	if got := get("/v1/trips/a"); got.Header().Get("X-Cache") != "MISS" {
		t.Error("cache not purged after write")
	}
}
