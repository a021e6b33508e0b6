// Package web provides an HTTP status server for the silence-sensor daemon.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sweeney/silence-sensor/internal/history"
	"github.com/sweeney/silence-sensor/internal/status"
)

const (
	defaultRecent = 20
	maxRecent     = 500
	recentTimeout = 2 * time.Second
)

// Recent lists the most recent notifications, newest first.
type Recent interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	recent     Recent
}

// New creates a Server that reads state from the given tracker. recent may
// be nil when no history database is configured.
func New(addr string, tracker *status.Tracker, recent Recent) *Server {
	s := &Server{tracker: tracker, recent: recent}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/history.json", s.handleHistory)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	entries, histErr := s.listRecent(r.Context(), defaultRecent)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, entries, histErr)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.recent == nil {
		http.Error(w, "history not enabled", http.StatusNotFound)
		return
	}

	limit := defaultRecent
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxRecent)
	}

	entries, err := s.listRecent(r.Context(), limit)
	if err != nil {
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	out := make([]EntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryJSON(e))
	}
	w.Header().Set("Content-Type", "application/json")
	data, _ := json.MarshalIndent(HistoryJSON{Notifications: out}, "", "  ")
	w.Write(data)
}

func (s *Server) listRecent(ctx context.Context, limit int) ([]history.Entry, error) {
	if s.recent == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, recentTimeout)
	defer cancel()
	return s.recent.Recent(ctx, limit)
}

// HistoryJSON is the /history.json envelope.
type HistoryJSON struct {
	Notifications []EntryJSON `json:"notifications"`
}

// EntryJSON is one recorded notification.
type EntryJSON struct {
	At              string `json:"at"`
	Kind            string `json:"kind"`
	Pin             int    `json:"pin"`
	Name            string `json:"name"`
	Started         string `json:"started"`
	DurationSeconds int64  `json:"duration_seconds"`
	Alerts          int    `json:"alerts"`
	Subject         string `json:"subject"`
}

func entryJSON(e history.Entry) EntryJSON {
	return EntryJSON{
		At:              e.At.UTC().Format(time.RFC3339),
		Kind:            string(e.Kind),
		Pin:             e.Pin,
		Name:            e.Name,
		Started:         e.Started.UTC().Format(time.RFC3339),
		DurationSeconds: int64(e.Duration.Truncate(time.Second).Seconds()),
		Alerts:          e.Alerts,
		Subject:         e.Subject,
	}
}
