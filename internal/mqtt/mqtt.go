// Package mqtt publishes silence notifications and lifecycle events to MQTT,
// with abstraction for testing.
package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sweeney/silence-sensor/internal/logic"
)

// Topic is the MQTT topic for silence notifications.
const Topic = "care/silence/sensor/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "care/silence/sensor/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Send publishes a notification. It satisfies dispatch.Transport.
	Send(ctx context.Context, n logic.Notification) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Silence SilencePayload `json:"silence"`
}

// SilencePayload contains the notification details.
type SilencePayload struct {
	Timestamp       string `json:"timestamp"`
	Event           string `json:"event"`
	Pin             int    `json:"pin"`
	Name            string `json:"name"`
	Started         string `json:"started"`
	DurationSeconds int64  `json:"duration_seconds"`
	Alerts          int    `json:"alerts"`
	Subject         string `json:"subject"`
}

// FormatPayload creates the JSON payload for a notification.
func FormatPayload(n logic.Notification) ([]byte, error) {
	payload := Payload{
		Silence: SilencePayload{
			Timestamp:       n.At.UTC().Format(time.RFC3339),
			Event:           string(n.Kind),
			Pin:             n.Pin,
			Name:            n.Name,
			Started:         n.Started.UTC().Format(time.RFC3339),
			DurationSeconds: int64(n.Duration / time.Second),
			Alerts:          n.Alerts,
			Subject:         n.Subject,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}
