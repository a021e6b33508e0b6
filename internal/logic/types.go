// Package logic contains the press tracking and alerting rules for silence monitoring.
// This package has NO external dependencies (no GPIO, SMTP, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// EdgeKind is the direction of an input transition.
type EdgeKind string

const (
	EdgeAsserted EdgeKind = "ASSERTED" // falling edge, button held
	EdgeReleased EdgeKind = "RELEASED" // rising edge, button let go
)

// Edge is a debounced transition delivered by the hardware layer.
type Edge struct {
	Pin  int
	Kind EdgeKind
	Time time.Time
}

// NotificationKind classifies a notification.
type NotificationKind string

const (
	KindSilence      NotificationKind = "SILENCE"
	KindEndedSilence NotificationKind = "ENDED_SILENCE"
)

// Notification is a message for the dispatcher. Subject and Body are what the
// mail transport sends; the remaining fields are for structured sinks.
type Notification struct {
	Kind    NotificationKind
	Subject string
	Body    string

	Pin     int
	Name    string
	Started time.Time // episode start
	At      time.Time // alert time or release time
	// Duration is the elapsed silence for an alert, or the total held time
	// for a resolution.
	Duration time.Duration
	Alerts   int
}

// Enqueuer accepts notifications without blocking.
type Enqueuer interface {
	// Enqueue returns false if the notification was dropped.
	Enqueue(n Notification) bool
}

// PressState tracks one asserted input.
type PressState struct {
	// When the input was first observed asserted
	Started time.Time
	// Last ongoing-silence alert; zero if none sent yet
	LastAlert time.Time
	// Set once the first alert for this episode has gone out
	Alerted bool
	// Number of alerts sent for this episode
	Alerts int
}

// Silence is a copy of one registry entry, safe to use after the lock is released.
type Silence struct {
	Pin   int
	Name  string
	State PressState
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Presses     int
	Releases    int
	Alerts      int
	Resolutions int
}

// NameTable maps input pins to human-readable labels. It is built once at
// startup and never modified afterwards.
type NameTable map[int]string

// Name returns the label for pin, or "unknown".
func (t NameTable) Name(pin int) string {
	if name, ok := t[pin]; ok {
		return name
	}
	return "unknown"
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
