// Package mailer delivers transactional email through an SMTP provider and
// renders the marketplace's email templates.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/iliyamo/trip-marketplace/internal/config"
)

// Email is one outgoing message.  Meta is carried through the queue for
// logging (booking id, template name) and never rendered.
type Email struct {
	To      string            `json:"to"`
	Subject string            `json:"subject"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// ErrNotConfigured is returned when SMTP credentials are missing.
var ErrNotConfigured = errors.New("email credentials not configured")

// SendFunc matches smtp.SendMail so tests can capture outgoing mail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends email with net/smtp.
type SMTPMailer struct {
	cfg  config.MailConfig
	send SendFunc
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// WithSendFunc replaces the transport.
func (m *SMTPMailer) WithSendFunc(f SendFunc) *SMTPMailer { m.send = f; return m }

// Send delivers e.  smtp.SendMail has no context support; ctx is checked
// before dialing so cancelled requests do not send.
func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	if m.cfg.SMTPUsername == "" || m.cfg.SMTPPassword == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(e.To, "\r\n") || strings.ContainsAny(e.Subject, "\r\n") {
		return fmt.Errorf("invalid header value in email to %q", e.To)
	}

	from := m.cfg.FromEmail
	if from == "" {
		from = m.cfg.SMTPUsername
	}
	auth := smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort
	if err := m.send(addr, auth, from, []string{e.To}, compose(m.cfg.FromName, from, e)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func compose(fromName, from string, e Email) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", fromName, from)
	fmt.Fprintf(&b, "To: %s\r\n", e.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", e.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(e.Message, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
