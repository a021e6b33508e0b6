package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/silence-sensor/internal/history"
	"github.com/sweeney/silence-sensor/internal/logic"
	"github.com/sweeney/silence-sensor/internal/status"
)

type fakeRecent struct {
	entries   []history.Entry
	err       error
	lastLimit int
}

func (f *fakeRecent) Recent(_ context.Context, limit int) ([]history.Entry, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func newTestServer(t *testing.T, recent Recent) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		ThresholdMs: 10000,
		RepeatMs:    60000,
		DebounceMs:  50,
		HeartbeatMs: 900000,
		QueueSize:   100,
		Recipient:   "desk@example.org",
		Broker:      "tcp://192.168.1.200:1883",
		HTTPPort:    ":80",
	}
	if recent != nil {
		cfg.HistoryDB = "/var/lib/silence-sensor/history.db"
	}
	inputs := []status.Input{{Pin: 17, Name: "room 1"}, {Pin: 27, Name: "room 2"}}
	tr := status.NewTracker(start, cfg, inputs)
	srv := New(":0", tr, recent)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update(
		[]logic.Silence{{Pin: 27, Name: "room 2", State: logic.PressState{Started: time.Now().Add(-time.Minute)}}},
		logic.EventCounts{Presses: 5, Releases: 4},
		status.QueueStats{Sent: 2},
	)
	tr.SetMQTTConnected(true)

	resp, body := get(t, ts.URL+"/index.json")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal([]byte(body), &sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Silent != 1 {
		t.Errorf("Silent: got %d, want 1", sj.Status.Silent)
	}
	if len(sj.Status.Inputs) != 2 || !sj.Status.Inputs[1].Held {
		t.Errorf("Inputs: got %+v", sj.Status.Inputs)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if sj.Status.Counts.Presses != 5 || sj.Status.Counts.Releases != 4 {
		t.Errorf("Counts: got %+v", sj.Status.Counts)
	}
	if sj.Status.Queue.Sent != 2 {
		t.Errorf("Queue.Sent: got %d, want 2", sj.Status.Queue.Sent)
	}
	if sj.Status.Config.ThresholdMs != 10000 {
		t.Errorf("Config.ThresholdMs: got %d, want 10000", sj.Status.Config.ThresholdMs)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	_, body := get(t, ts.URL+"/index.json")

	var sj status.StatusJSON
	json.Unmarshal([]byte(body), &sj)

	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update(
		[]logic.Silence{{Pin: 17, Name: "room 1", State: logic.PressState{Started: time.Now().Add(-90 * time.Second), Alerts: 1}}},
		logic.EventCounts{Presses: 1, Alerts: 1},
		status.QueueStats{},
	)

	resp, body := get(t, ts.URL+"/")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	for _, want := range []string{"room 1 (pin 17)", "SILENT for 1 minute", "1 alert sent", "room 2 (pin 27)", "idle"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, _ := get(t, ts.URL+"/index.html")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestHTMLLivePage(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := status.NewTracker(start, status.Config{WSBroker: "ws://192.168.1.200:9001"}, []status.Input{{Pin: 17, Name: "room 1"}})
	ts := httptest.NewServer(New(":0", tr, nil).httpServer.Handler)
	t.Cleanup(ts.Close)

	_, body := get(t, ts.URL+"/")
	for _, want := range []string{`id="live-dot"`, `id="input-17"`, "mqtt.connect", "192.168.1.200:9001", "events", "system"} {
		if !strings.Contains(body, want) {
			t.Errorf("live page missing %q", want)
		}
	}
	if strings.Contains(body, `http-equiv="refresh"`) {
		t.Error("live page should not auto-refresh")
	}

	_, jsonBody := get(t, ts.URL+"/index.json")
	if !strings.Contains(jsonBody, `"ws_broker": "ws://192.168.1.200:9001"`) {
		t.Errorf("JSON should report ws_broker: %s", jsonBody)
	}
}

func TestHTMLWithoutLivePage(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	_, body := get(t, ts.URL+"/")
	if strings.Contains(body, "mqtt.connect") || strings.Contains(body, `id="live-dot"`) {
		t.Error("live script rendered without a websocket broker")
	}
	if !strings.Contains(body, `http-equiv="refresh"`) {
		t.Error("static page should auto-refresh")
	}
}

func TestHTMLListsRecentNotifications(t *testing.T) {
	recent := &fakeRecent{entries: []history.Entry{
		{At: time.Now().Add(-2 * time.Minute), Kind: logic.KindSilence, Subject: "room 1 SILENCE"},
	}}
	ts, _ := newTestServer(t, recent)

	_, body := get(t, ts.URL+"/")
	if !strings.Contains(body, "room 1 SILENCE") {
		t.Error("page missing recent notification")
	}
	if !strings.Contains(body, "2 minutes ago") {
		t.Error("page missing humanized time")
	}
	if recent.lastLimit != defaultRecent {
		t.Errorf("limit: got %d, want %d", recent.lastLimit, defaultRecent)
	}
}

func TestHTMLHistoryError(t *testing.T) {
	ts, _ := newTestServer(t, &fakeRecent{err: errors.New("database is locked")})

	resp, body := get(t, ts.URL+"/")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "history unavailable: database is locked") {
		t.Error("page should report the history error")
	}
}

func TestHistoryEndpoint(t *testing.T) {
	started := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	recent := &fakeRecent{entries: []history.Entry{
		{At: started.Add(75 * time.Second), Kind: logic.KindEndedSilence, Pin: 17, Name: "room 1", Started: started, Duration: 75 * time.Second, Alerts: 2, Subject: "room 1 ENDED SILENCE"},
		{At: started.Add(70 * time.Second), Kind: logic.KindSilence, Pin: 17, Name: "room 1", Started: started, Duration: 70 * time.Second, Alerts: 2, Subject: "room 1 SILENCE"},
	}}
	ts, _ := newTestServer(t, recent)

	resp, body := get(t, ts.URL+"/history.json?limit=1")
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}

	var hj HistoryJSON
	if err := json.Unmarshal([]byte(body), &hj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(hj.Notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(hj.Notifications))
	}
	n := hj.Notifications[0]
	if n.Kind != "ENDED_SILENCE" || n.DurationSeconds != 75 || n.Started != "2026-01-01T12:00:00Z" {
		t.Errorf("unexpected entry: %+v", n)
	}
}

func TestHistoryEndpointLimits(t *testing.T) {
	recent := &fakeRecent{}
	ts, _ := newTestServer(t, recent)

	if resp, _ := get(t, ts.URL+"/history.json?limit=abc"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit: got %d, want 400", resp.StatusCode)
	}
	get(t, ts.URL+"/history.json?limit=100000")
	if recent.lastLimit != maxRecent {
		t.Errorf("limit should be capped at %d, got %d", maxRecent, recent.lastLimit)
	}
}

func TestHistoryEndpointDisabled(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, _ := get(t, ts.URL+"/history.json")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestHistoryEndpointError(t *testing.T) {
	ts, _ := newTestServer(t, &fakeRecent{err: errors.New("boom")})

	resp, _ := get(t, ts.URL+"/history.json")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, _ := get(t, ts.URL+"/nonexistent")
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t, nil)

	var sj1 status.StatusJSON
	_, body := get(t, ts.URL+"/index.json")
	json.Unmarshal([]byte(body), &sj1)
	if sj1.Status.Silent != 0 {
		t.Error("expected no silences initially")
	}

	tr.Update([]logic.Silence{{Pin: 17, Name: "room 1", State: logic.PressState{Started: time.Now()}}}, logic.EventCounts{Presses: 1}, status.QueueStats{})
	tr.SetMQTTConnected(true)

	var sj2 status.StatusJSON
	_, body = get(t, ts.URL+"/index.json")
	json.Unmarshal([]byte(body), &sj2)

	if sj2.Status.Silent != 1 {
		t.Errorf("Silent: got %d, want 1", sj2.Status.Silent)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
