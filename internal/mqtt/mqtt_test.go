package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/silence-sensor/internal/logic"
)

func testNotification() logic.Notification {
	started := time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)
	return logic.Notification{
		Kind:     logic.KindSilence,
		Subject:  "Room 1 SILENCE",
		Body:     "Room 1 SILENCE for 10 seconds",
		Pin:      17,
		Name:     "Room 1",
		Started:  started,
		At:       started.Add(10 * time.Second),
		Duration: 10 * time.Second,
		Alerts:   1,
	}
}

func TestFormatPayload(t *testing.T) {
	payload, err := FormatPayload(testNotification())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Silence
	if s.Timestamp != "2026-02-02T22:18:22Z" {
		t.Errorf("unexpected timestamp: %s", s.Timestamp)
	}
	if s.Started != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected started: %s", s.Started)
	}
	if s.Event != "SILENCE" {
		t.Errorf("unexpected event: %s", s.Event)
	}
	if s.Pin != 17 || s.Name != "Room 1" {
		t.Errorf("unexpected input: pin=%d name=%q", s.Pin, s.Name)
	}
	if s.DurationSeconds != 10 {
		t.Errorf("unexpected duration: %d", s.DurationSeconds)
	}
	if s.Alerts != 1 {
		t.Errorf("unexpected alerts: %d", s.Alerts)
	}
}

func TestFormatPayloadEndedSilence(t *testing.T) {
	n := testNotification()
	n.Kind = logic.KindEndedSilence
	n.Duration = 75 * time.Second

	payload, err := FormatPayload(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Silence.Event != "ENDED_SILENCE" {
		t.Errorf("event: got %s, want ENDED_SILENCE", parsed.Silence.Event)
	}
	if parsed.Silence.DurationSeconds != 75 {
		t.Errorf("duration: got %d, want 75", parsed.Silence.DurationSeconds)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed SystemPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.System.Timestamp)
	}
	if parsed.System.Event != "SHUTDOWN" {
		t.Errorf("unexpected event: %s", parsed.System.Event)
	}
	if parsed.System.Reason != "SIGTERM" {
		t.Errorf("unexpected reason: %s", parsed.System.Reason)
	}
}

func TestFormatSystemPayloadWillOmitsTimestamp(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Event: "OFFLINE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"system":{"event":"OFFLINE"}}` {
		t.Errorf("unexpected payload: %s", payload)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestFakePublisherSend(t *testing.T) {
	f := NewFakePublisher()

	if err := f.Send(context.Background(), testNotification()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := f.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sent))
	}
	if sent[0].Subject != "Room 1 SILENCE" {
		t.Errorf("unexpected subject: %s", sent[0].Subject)
	}
	if len(f.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.Payloads))
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.SendError = errors.New("simulated error")

	if err := f.Send(context.Background(), testNotification()); err == nil {
		t.Error("expected error")
	}
	if len(f.Sent()) != 0 {
		t.Errorf("expected no notifications recorded on error, got %d", len(f.Sent()))
	}
}

func TestFakePublisherSystem(t *testing.T) {
	f := NewFakePublisher()

	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.System(); len(got) != 1 || got[0].Event != "STARTUP" {
		t.Errorf("unexpected system events: %+v", got)
	}

	f.PublishSystemError = errors.New("simulated error")
	if err := f.PublishSystem(SystemEvent{Event: "SHUTDOWN"}); err == nil {
		t.Error("expected error")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Send(context.Background(), testNotification())
	f.Close()
	f.Connected = true
	f.SendError = errors.New("error")

	f.Reset()

	if len(f.Sent()) != 0 {
		t.Error("notifications should be cleared")
	}
	if f.Closed {
		t.Error("closed should be reset")
	}
	if f.IsConnected() {
		t.Error("connected should be reset")
	}
	if f.SendError != nil {
		t.Error("error should be cleared")
	}
}

func TestTopics(t *testing.T) {
	if Topic != "care/silence/sensor/events" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "care/silence/sensor/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}
