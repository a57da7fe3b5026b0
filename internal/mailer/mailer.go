// Package mailer delivers notification emails.
package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"github.com/yukikurage/project-management-api/internal/config"
	"github.com/yukikurage/project-management-api/internal/logger"
)

type Message struct {
	To      string
	Subject string
	Body    string // HTML
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer when SMTP is configured, and a logging mailer otherwise.
func New(cfg config.SMTPConfig) Mailer {
	if !cfg.Enabled() {
		logger.Log.Warn("SMTP_HOST not set, emails will only be logged")
		return LogMailer{}
	}
	return NewSMTPMailer(cfg)
}

type SMTPMailer struct {
	cfg config.SMTPConfig
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	out, err := m.build(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.User),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("sending mail to %s: %w", msg.To, err)
	}

	logger.Log.WithFields(logger.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("email sent")
	return nil
}

func (m *SMTPMailer) build(msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(m.cfg.Sender); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.cfg.Sender, err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextHTML, msg.Body)
	return out, nil
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	logger.Log.WithFields(logger.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("email not sent, SMTP disabled")
	return nil
}
