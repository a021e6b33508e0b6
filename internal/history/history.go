// Package history keeps a SQLite log of sent notifications for the status page.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sweeney/silence-sensor/internal/logic"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

const (
	// DefaultKeep is the number of rows retained after pruning.
	DefaultKeep = 5000
	pruneEvery  = 100
)

// Entry is one recorded notification.
type Entry struct {
	ID       int64
	At       time.Time
	Kind     logic.NotificationKind
	Pin      int
	Name     string
	Started  time.Time
	Duration time.Duration
	Alerts   int
	Subject  string
	Body     string
}

// Store records notifications. It satisfies dispatch.Transport so it can sit
// behind the dispatcher next to the mail sender.
type Store struct {
	db   *sql.DB
	keep int

	inserts atomic.Uint64
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA busy_timeout = 2000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")

	s := &Store{db: db, keep: DefaultKeep}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Send records n.
func (s *Store) Send(ctx context.Context, n logic.Notification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications(at, kind, pin, name, started, duration_ms, alerts, subject, body)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		n.At.UnixMilli(), string(n.Kind), n.Pin, n.Name, n.Started.UnixMilli(),
		n.Duration.Milliseconds(), n.Alerts, n.Subject, n.Body,
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	if s.inserts.Add(1)%pruneEvery == 0 {
		if err := s.prune(ctx); err != nil {
			return fmt.Errorf("history: prune: %w", err)
		}
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, kind, pin, name, started, duration_ms, alerts, subject, body
		 FROM notifications ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                  Entry
			at, started, durMs int64
			kind               string
		)
		if err := rows.Scan(&e.ID, &at, &kind, &e.Pin, &e.Name, &started, &durMs, &e.Alerts, &e.Subject, &e.Body); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.At = time.UnixMilli(at)
		e.Started = time.UnixMilli(started)
		e.Duration = time.Duration(durMs) * time.Millisecond
		e.Kind = logic.NotificationKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) prune(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id <= (SELECT MAX(id) FROM notifications) - ?`, s.keep)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
