// Package service holds the business rules of the marketplace: OTP issuance
// and its rate limit, notification dispatch, the user directory, the trip
// catalog and the booking engine.  Services depend on small store interfaces
// satisfied by the MySQL and Redis repositories.
package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/trip-marketplace/internal/logger"
)

// Clock returns the current time.  Services take one so tests control time.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

func newID() string { return uuid.NewString() }

type Logger = logger.Logger
