// Package status provides a thread-safe status tracker for the silence-sensor daemon.
// It is read by the HTTP handlers and the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/silence-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// QueueStats mirrors the dispatcher counters. This is a local copy to avoid
// importing internal/dispatch from status.
type QueueStats struct {
	Pending int
	Queued  uint64
	Sent    uint64
	Failed  uint64
	Dropped uint64
}

// Input is one monitored call button.
type Input struct {
	Pin  int
	Name string
}

// Config contains daemon configuration for display.
type Config struct {
	ThresholdMs   int64
	RepeatMs      int64
	DebounceMs    int64
	HeartbeatMs   int64
	QueueSize     int
	Recipient     string
	Broker        string
	NATS          string
	HistoryDB     string
	HTTPPort      string
	WSBroker      string // websocket broker URL for the live page (empty = disabled)
	SkippedInputs []string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Inputs        []Input
	Silences      []logic.Silence
	Counts        logic.EventCounts
	Queue         QueueStats
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Silence returns the open episode for pin, if any.
func (s Snapshot) Silence(pin int) (logic.Silence, bool) {
	for _, sil := range s.Silences {
		if sil.Pin == pin {
			return sil, true
		}
	}
	return logic.Silence{}, false
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, config and inputs.
func NewTracker(startTime time.Time, cfg Config, inputs []Input) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Inputs:    append([]Input(nil), inputs...),
		},
	}
}

// Update sets the open episodes, event counts and queue counters.
// Called from runLoop on every tick. The tracker keeps silences; callers
// must not modify it afterwards.
func (t *Tracker) Update(silences []logic.Silence, counts logic.EventCounts, queue QueueStats) {
	t.mu.Lock()
	t.snap.Silences = silences
	t.snap.Counts = counts
	t.snap.Queue = queue
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
