package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/trip-marketplace/internal/config"
	"github.com/iliyamo/trip-marketplace/internal/handler"
	"github.com/iliyamo/trip-marketplace/internal/middleware"
)

// Deps carries what route registration needs besides the handlers: the
// token verifier for bearer routes, a user loader for the role gates and
// the Redis client backing the rate limiter and response cache.
type Deps struct {
	Verifier  *middleware.TokenVerifier
	Users     middleware.UserLoader
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
}

// RegisterRoutes registers the probes.  They sit outside /v1 so the rate
// limiter never throttles load balancer checks.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	// Liveness: the process is up.
	e.GET("/healthz", handler.Health)
	// Readiness: the database answers.
	e.GET("/readyz", handler.Ready(db))
}

// API returns the /v1 group with the global token bucket applied.  All
// Register* functions below hang their routes off this group.
func API(e *echo.Echo, d Deps) *echo.Group {
	return e.Group("/v1", middleware.NewTokenBucket(d.RateLimit, d.Redis))
}
