// Package mail sends notifications as plain-text email over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/sweeney/silence-sensor/internal/logic"
)

// Config contains SMTP settings.
type Config struct {
	Server    string
	Port      int
	TLS       bool // implicit TLS (SMTPS); otherwise STARTTLS when offered
	Username  string
	Password  string
	From      string
	Recipient string
	Timeout   time.Duration
}

// Sender delivers notifications to a single recipient.
type Sender struct {
	cfg Config
}

// NewSender validates cfg and returns a Sender. No connection is made until Send.
func NewSender(cfg Config) (*Sender, error) {
	if cfg.Server == "" {
		return nil, errors.New("mail: smtp server is required")
	}
	if cfg.From == "" || cfg.Recipient == "" {
		return nil, errors.New("mail: sender and recipient are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Sender{cfg: cfg}, nil
}

// Send builds the message and delivers it on a fresh SMTP connection.
func (s *Sender) Send(ctx context.Context, n logic.Notification) error {
	msg, err := s.buildMsg(n)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(s.cfg.Server, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("mail: create client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mail: send to %s: %w", s.cfg.Recipient, err)
	}
	return nil
}

func (s *Sender) buildMsg(n logic.Notification) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("mail: from address: %w", err)
	}
	if err := msg.To(s.cfg.Recipient); err != nil {
		return nil, fmt.Errorf("mail: recipient address: %w", err)
	}
	msg.Subject(n.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, n.Body)
	return msg, nil
}

func (s *Sender) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Port > 0 {
		opts = append(opts, gomail.WithPort(s.cfg.Port))
	}
	if s.cfg.TLS {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}
