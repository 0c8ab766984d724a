package service

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/trip-marketplace/internal/apperr"
	"github.com/iliyamo/trip-marketplace/internal/mailer"
)

// Mailer delivers one email synchronously.
type Mailer interface {
	Send(ctx context.Context, e mailer.Email) error
}

// Publisher hands an email to the background queue.
type Publisher interface {
	PublishEmail(ctx context.Context, e mailer.Email) error
}

// backgroundSendTimeout bounds a direct send started by Enqueue.
const backgroundSendTimeout = 30 * time.Second

// Dispatcher sends transactional email.  Send is used where the caller must
// know the outcome (OTP delivery); Enqueue is fire-and-forget and used for
// booking status notifications.
type Dispatcher struct {
	mailer    Mailer
	publisher Publisher // optional
	log       Logger
	wg        sync.WaitGroup
}

// NewDispatcher builds a dispatcher.  publisher may be nil, in which case
// Enqueue sends directly on a background goroutine.
func NewDispatcher(m Mailer, p Publisher, log Logger) *Dispatcher {
	return &Dispatcher{mailer: m, publisher: p, log: log}
}

// Send delivers e now and reports provider failures as Upstream errors.
func (d *Dispatcher) Send(ctx context.Context, e mailer.Email) error {
	if err := d.mailer.Send(ctx, e); err != nil {
		d.log.Errorf("email to %s failed: %v", e.To, err)
		return apperr.Upstream("failed to send email", err)
	}
	d.log.Infof("email %q sent to %s", e.Subject, e.To)
	return nil
}

// Enqueue schedules e without blocking the caller on delivery.  Failures
// are logged and never returned.
func (d *Dispatcher) Enqueue(ctx context.Context, e mailer.Email) {
	if d.publisher != nil {
		err := d.publisher.PublishEmail(context.WithoutCancel(ctx), e)
		if err == nil {
			return
		}
		d.log.Warnf("queue email to %s failed, sending directly: %v", e.To, err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundSendTimeout)
		defer cancel()
		if err := d.mailer.Send(sctx, e); err != nil {
			d.log.Errorf("background email to %s failed: %v", e.To, err)
			return
		}
		d.log.Infof("email %q sent to %s", e.Subject, e.To)
	}()
}

// Wait blocks until background sends started by Enqueue finish.
func (d *Dispatcher) Wait() { d.wg.Wait() }
