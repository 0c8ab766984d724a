package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/trip-marketplace/internal/logger"
	"github.com/iliyamo/trip-marketplace/internal/mailer"
)

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, e mailer.Email) error
}

type action int

const (
	ack action = iota
	requeue
	drop
)

// sendTimeout bounds a single SMTP delivery.
const sendTimeout = 30 * time.Second

// StartEmailConsumer consumes the notifications queue and delivers each job
// through s.  It reconnects with exponential backoff and returns only when ctx
// is cancelled.
func StartEmailConsumer(ctx context.Context, url string, s Sender, log logger.Logger) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warnf("email-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, s, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnf("email-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, s Sender, log logger.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		log.Warnf("email-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(EmailQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(EmailQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			switch handleMessage(ctx, d.Body, d.Redelivered, s, log) {
			case ack:
				_ = d.Ack(false)
			case requeue:
				_ = d.Nack(false, true)
			case drop:
				_ = d.Nack(false, false)
			}
		}
	}
}

// handleMessage delivers one job.  A failed send is retried once through a
// requeue; a failed redelivery or a malformed payload is dropped.
func handleMessage(ctx context.Context, body []byte, redelivered bool, s Sender, log logger.Logger) action {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		log.Errorf("email-consumer: unmarshal job: %v", err)
		return drop
	}
	if job.Email.To == "" {
		log.Errorf("email-consumer: job without recipient dropped")
		return drop
	}

	sctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := s.Send(sctx, job.Email); err != nil {
		if errors.Is(err, mailer.ErrNotConfigured) || redelivered {
			log.Errorf("email-consumer: giving up on email to %s (template=%s): %v", job.Email.To, job.Email.Meta["template"], err)
			return drop
		}
		log.Warnf("email-consumer: send to %s failed, requeueing: %v", job.Email.To, err)
		return requeue
	}
	log.Infof("email-consumer: sent %s email to %s", job.Email.Meta["template"], job.Email.To)
	return ack
}
