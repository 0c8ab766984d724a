// Package queue moves notification emails through RabbitMQ: a publisher used by
// the request path and a background consumer that hands jobs to the mailer.
package queue

import (
	"time"

	"github.com/iliyamo/trip-marketplace/internal/mailer"
)

// EmailQueueName is the durable queue carrying EmailJob payloads.
const EmailQueueName = "notifications.email"

// EmailJob is the JSON payload of one queued email.
type EmailJob struct {
	Email      mailer.Email `json:"email"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
}
