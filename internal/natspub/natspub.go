// Package natspub publishes silence notifications to NATS subjects.
package natspub

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sweeney/silence-sensor/internal/logic"
)

// DefaultPrefix is used when no subject prefix is configured.
const DefaultPrefix = "silence"

var hostname = os.Hostname

// Message is the JSON body published for each notification.
type Message struct {
	Kind            string    `json:"kind"`
	Subject         string    `json:"subject"`
	Pin             int       `json:"pin"`
	Name            string    `json:"name"`
	Started         time.Time `json:"started"`
	At              time.Time `json:"at"`
	DurationSeconds int64     `json:"duration_seconds"`
	Alerts          int       `json:"alerts"`
	Host            string    `json:"host,omitempty"`
}

// Publisher sends notifications to NATS as <prefix>.<kind>.<pin>.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

// Connect dials url and returns a Publisher. The client reconnects on its own.
func Connect(url, prefix string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("silence-sensor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return NewPublisher(nc, prefix), nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(nc *nats.Conn, prefix string) *Publisher {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Publisher{nc: nc, prefix: prefix}
}

// Send publishes n. It satisfies dispatch.Transport.
func (p *Publisher) Send(_ context.Context, n logic.Notification) error {
	payload, err := json.Marshal(newMessage(n))
	if err != nil {
		return fmt.Errorf("marshal nats message: %w", err)
	}
	if err := p.nc.Publish(p.subject(n), payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}

func (p *Publisher) subject(n logic.Notification) string {
	return fmt.Sprintf("%s.%s.%d", p.prefix, strings.ToLower(string(n.Kind)), n.Pin)
}

func newMessage(n logic.Notification) Message {
	msg := Message{
		Kind:            string(n.Kind),
		Subject:         n.Subject,
		Pin:             n.Pin,
		Name:            n.Name,
		Started:         n.Started.UTC(),
		At:              n.At.UTC(),
		DurationSeconds: int64(n.Duration / time.Second),
		Alerts:          n.Alerts,
	}
	if host, err := hostname(); err == nil {
		msg.Host = host
	}
	return msg
}
