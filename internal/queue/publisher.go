package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/trip-marketplace/internal/mailer"
)

const (
	// dialTimeout bounds the TCP connect and the AMQP handshake.
	dialTimeout = 2 * time.Second
	// publishTimeout bounds one publish, dial included.
	publishTimeout = 3 * time.Second
)

// Publisher publishes email jobs to the notifications queue.  The broker
// connection is opened lazily and reopened after it drops.  Publishing runs
// on the request path, so every broker round trip is time bounded.
type Publisher struct {
	url            string
	dialTimeout    time.Duration
	publishTimeout time.Duration

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, dialTimeout: dialTimeout, publishTimeout: publishTimeout}
}

// channel returns an open channel with the queue declared.  Caller holds mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.DialConfig(p.url, amqp.Config{
			Dial:   amqp.DefaultDial(p.dialTimeout),
			Locale: "en_US",
		})
		if err != nil {
			return nil, fmt.Errorf("rabbitmq dial: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(
		EmailQueueName, // name
		true,           // durable
		false,          // autoDelete
		false,          // exclusive
		false,          // noWait
		nil,            // args
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.ch = ch
	return ch, nil
}

// PublishEmail queues e for delivery.  Messages are persistent.  It gives
// up after publishTimeout so callers can fall back to a direct send.
func (p *Publisher) PublishEmail(ctx context.Context, e mailer.Email) error {
	body, err := json.Marshal(EmailJob{Email: e, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal email job: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",             // default exchange
		EmailQueueName, // routing key = queue name
		false,          // mandatory
		false,          // immediate
		pub,
	); err != nil {
		// Drop the channel so the next publish reopens it.
		_ = ch.Close()
		p.ch = nil
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}
