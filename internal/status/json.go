package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/silence-sensor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Silent        int          `json:"silent"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Inputs        []InputJSON  `json:"inputs"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Queue         QueueJSON    `json:"queue"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// InputJSON is one input and its open episode, if any.
type InputJSON struct {
	Pin           int    `json:"pin"`
	Name          string `json:"name"`
	Held          bool   `json:"held"`
	Since         string `json:"since,omitempty"`
	SilentSeconds int64  `json:"silent_seconds,omitempty"`
	Alerted       bool   `json:"alerted,omitempty"`
	Alerts        int    `json:"alerts,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Presses     int `json:"presses"`
	Releases    int `json:"releases"`
	Alerts      int `json:"alerts"`
	Resolutions int `json:"resolutions"`
}

// QueueJSON is the JSON representation of dispatcher counters.
type QueueJSON struct {
	Pending int    `json:"pending"`
	Queued  uint64 `json:"queued"`
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	ThresholdMs   int64    `json:"threshold_ms"`
	RepeatMs      int64    `json:"alert_repeat_ms"`
	DebounceMs    int64    `json:"debounce_ms"`
	HeartbeatMs   int64    `json:"heartbeat_ms"`
	QueueSize     int      `json:"queue_size"`
	Recipient     string   `json:"recipient"`
	Broker        string   `json:"broker"`
	NATS          string   `json:"nats,omitempty"`
	HistoryDB     string   `json:"history_db,omitempty"`
	HTTPPort      string   `json:"http_port"`
	WSBroker      string   `json:"ws_broker,omitempty"`
	SkippedInputs []string `json:"skipped_inputs,omitempty"`
}

func buildInputs(snap Snapshot) []InputJSON {
	out := make([]InputJSON, 0, len(snap.Inputs))
	for _, in := range snap.Inputs {
		ij := InputJSON{Pin: in.Pin, Name: in.Name}
		if sil, ok := snap.Silence(in.Pin); ok {
			ij.Held = true
			ij.Since = sil.State.Started.UTC().Format(time.RFC3339)
			ij.SilentSeconds = int64(snap.Now.Sub(sil.State.Started).Truncate(time.Second).Seconds())
			ij.Alerted = sil.State.Alerted
			ij.Alerts = sil.State.Alerts
		}
		out = append(out, ij)
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Silent:        len(snap.Silences),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Inputs:        buildInputs(snap),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts:        countsJSON(snap.Counts),
		Queue: QueueJSON{
			Pending: snap.Queue.Pending,
			Queued:  snap.Queue.Queued,
			Sent:    snap.Queue.Sent,
			Failed:  snap.Queue.Failed,
			Dropped: snap.Queue.Dropped,
		},
		Config: ConfigJSON{
			ThresholdMs:   snap.Config.ThresholdMs,
			RepeatMs:      snap.Config.RepeatMs,
			DebounceMs:    snap.Config.DebounceMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			QueueSize:     snap.Config.QueueSize,
			Recipient:     snap.Config.Recipient,
			Broker:        snap.Config.Broker,
			NATS:          snap.Config.NATS,
			HistoryDB:     snap.Config.HistoryDB,
			HTTPPort:      snap.Config.HTTPPort,
			WSBroker:      snap.Config.WSBroker,
			SkippedInputs: snap.Config.SkippedInputs,
		},
	}
}

func countsJSON(c logic.EventCounts) CountsJSON {
	return CountsJSON{
		Presses:     c.Presses,
		Releases:    c.Releases,
		Alerts:      c.Alerts,
		Resolutions: c.Resolutions,
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
