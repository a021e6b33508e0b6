package logic

import (
	"strings"
	"testing"
	"time"
)

const (
	testThreshold = 10 * time.Second
	testRepeat    = 60 * time.Second
)

func newTestScanner() (*Scanner, *Registry, *fakeQueue) {
	reg := NewRegistry()
	q := &fakeQueue{}
	names := NameTable{17: "Room 1", 27: "Room 2"}
	return NewScanner(reg, names, q, testThreshold, testRepeat), reg, q
}

func TestScannerNoAlertBeforeThreshold(t *testing.T) {
	s, reg, q := newTestScanner()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.RecordPress(17, start)

	for sec := 0; sec < 10; sec++ {
		res := s.Scan(start.Add(time.Duration(sec) * time.Second))
		if len(res.Queued) != 0 {
			t.Fatalf("t=%ds: unexpected alert", sec)
		}
	}
	if len(q.items) != 0 {
		t.Errorf("expected no notifications, got %d", len(q.items))
	}
	st, _ := reg.Get(17)
	if st.Alerted {
		t.Error("should not be alerted before threshold")
	}
}

func TestScannerAlertAtThreshold(t *testing.T) {
	s, reg, q := newTestScanner()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.RecordPress(17, start)

	now := start.Add(testThreshold)
	res := s.Scan(now)
	if len(res.Queued) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(res.Queued))
	}

	st, _ := reg.Get(17)
	if !st.Alerted {
		t.Error("expected Alerted=true")
	}
	if !st.LastAlert.Equal(now) {
		t.Errorf("LastAlert: got %v, want %v", st.LastAlert, now)
	}
	if st.Alerts != 1 {
		t.Errorf("Alerts: got %d, want 1", st.Alerts)
	}

	n := q.items[0]
	if n.Kind != KindSilence {
		t.Errorf("Kind: got %s", n.Kind)
	}
	if n.Subject != "Room 1 SILENCE" {
		t.Errorf("Subject: got %q", n.Subject)
	}
	if !strings.Contains(n.Body, "Room 1 SILENCE for 10 seconds") {
		t.Errorf("Body missing elapsed: %q", n.Body)
	}
	if !strings.Contains(n.Body, "SILENCE BEGINS:\t"+FormatTimestamp(start)) {
		t.Errorf("Body missing start timestamp: %q", n.Body)
	}
	if n.Duration != testThreshold {
		t.Errorf("Duration: got %v, want %v", n.Duration, testThreshold)
	}
}

func TestScannerRepeatInterval(t *testing.T) {
	s, reg, q := newTestScanner()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.RecordPress(17, start)

	// Tick every second up to t=69
	for sec := 0; sec < 70; sec++ {
		s.Scan(start.Add(time.Duration(sec) * time.Second))
	}
	if len(q.items) != 1 {
		t.Fatalf("expected 1 alert before t=70, got %d", len(q.items))
	}

	res := s.Scan(start.Add(70 * time.Second))
	if len(res.Queued) != 1 {
		t.Fatalf("expected repeat alert at t=70, got %d", len(res.Queued))
	}
	if len(q.items) != 2 {
		t.Errorf("expected 2 alerts total, got %d", len(q.items))
	}
	if q.items[1].Alerts != 2 {
		t.Errorf("second alert Alerts: got %d, want 2", q.items[1].Alerts)
	}
}

func TestScannerLateTickStillAlerts(t *testing.T) {
	s, reg, q := newTestScanner()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.RecordPress(17, start)

	// A delayed tick well past the threshold produces exactly one alert.
	s.Scan(start.Add(42 * time.Second))
	s.Scan(start.Add(43 * time.Second))
	if len(q.items) != 1 {
		t.Errorf("expected 1 alert, got %d", len(q.items))
	}
}

func TestScannerIndependentPins(t *testing.T) {
	s, reg, q := newTestScanner()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.RecordPress(27, start)
	reg.RecordPress(17, start.Add(5*time.Second))

	res := s.Scan(start.Add(10 * time.Second))
	if len(res.Queued) != 1 || res.Queued[0].Pin != 27 {
		t.Fatalf("expected only pin 27 to alert, got %+v", res.Queued)
	}

	res = s.Scan(start.Add(15 * time.Second))
	if len(res.Queued) != 1 || res.Queued[0].Pin != 17 {
		t.Fatalf("expected only pin 17 to alert, got %+v", res.Queued)
	}
	if len(q.items) != 2 {
		t.Errorf("expected 2 alerts, got %d", len(q.items))
	}
}

func TestScannerOrdersByPin(t *testing.T) {
	s, reg, _ := newTestScanner()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, pin := range []int{27, 5, 17, 9} {
		reg.RecordPress(pin, start)
	}

	res := s.Scan(start.Add(time.Minute))
	if len(res.Queued) != 4 {
		t.Fatalf("expected 4 alerts, got %d", len(res.Queued))
	}
	for i := 1; i < len(res.Queued); i++ {
		if res.Queued[i-1].Pin > res.Queued[i].Pin {
			t.Errorf("alerts not ordered by pin: %d before %d", res.Queued[i-1].Pin, res.Queued[i].Pin)
		}
	}
}

func TestScannerDroppedAlertStillMarksState(t *testing.T) {
	reg := NewRegistry()
	q := &fakeQueue{capacity: 1}
	q.items = append(q.items, Notification{Subject: "filler"})
	s := NewScanner(reg, NameTable{}, q, testThreshold, testRepeat)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.RecordPress(17, start)

	res := s.Scan(start.Add(testThreshold))
	if len(res.Dropped) != 1 {
		t.Fatalf("expected 1 dropped alert, got %d", len(res.Dropped))
	}
	if res.Dropped[0].Name != "unknown" {
		t.Errorf("Name: got %q, want unknown", res.Dropped[0].Name)
	}

	// The next attempt waits for the repeat interval.
	st, _ := reg.Get(17)
	if !st.Alerted {
		t.Error("expected Alerted=true after dropped alert")
	}
	res = s.Scan(start.Add(testThreshold + time.Second))
	if len(res.Queued)+len(res.Dropped) != 0 {
		t.Error("expected no alert before repeat interval")
	}
}

func TestHeartbeatDisabledWithZeroInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(start)

	if hb := h.Check(start.Add(time.Hour), 0, EventCounts{}); hb != nil {
		t.Error("expected nil heartbeat with zero interval")
	}
}

func TestHeartbeatAtInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(start)
	interval := 15 * time.Minute

	if hb := h.Check(start.Add(interval-time.Second), interval, EventCounts{}); hb != nil {
		t.Error("expected nil heartbeat before interval")
	}

	hb := h.Check(start.Add(interval), interval, EventCounts{Presses: 3})
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if hb.Uptime != interval {
		t.Errorf("Uptime: got %v, want %v", hb.Uptime, interval)
	}
	if hb.Counts.Presses != 3 {
		t.Errorf("Counts.Presses: got %d, want 3", hb.Counts.Presses)
	}

	if hb := h.Check(start.Add(interval+time.Minute), interval, EventCounts{}); hb != nil {
		t.Error("expected nil heartbeat right after previous one")
	}
	if hb := h.Check(start.Add(2*interval), interval, EventCounts{}); hb == nil {
		t.Error("expected second heartbeat")
	}
}
