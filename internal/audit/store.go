// Package audit keeps a local SQLite journal of what the monitor did:
// policy changes, failed reconciliations, health alerts and recovered
// panics. It backs `opnwatch history`.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"grimm.is/opnwatch/internal/clock"

	_ "modernc.org/sqlite"
)

// Actions recorded by the monitor.
const (
	ActionPolicyApplied = "policy.applied"
	ActionPolicyFailed  = "policy.failed"
	ActionHealthAlert   = "health.alert"
	ActionPanic         = "loop.panic"
)

// Event represents a single journal entry.
type Event struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Instance  string         `json:"instance,omitempty"`
	Action    string         `json:"action"`
	Outcome   string         `json:"outcome,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Filter narrows Query. Zero values match everything.
type Filter struct {
	Since    time.Time
	Until    time.Time
	Instance string
	Action   string
	Limit    int
}

// Store provides persistent storage for journal events.
type Store struct {
	mu            sync.Mutex
	db            *sql.DB
	clock         clock.Clock
	retentionDays int
}

// NewStore opens (creating if needed) the journal at dbPath.
func NewStore(dbPath string, retentionDays int, clk clock.Clock) (*Store, error) {
	if clk == nil {
		clk = &clock.RealClock{}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// One writer; the loop is sequential anyway.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			instance TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			outcome TEXT NOT NULL DEFAULT '',
			details TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
		CREATE INDEX IF NOT EXISTS idx_events_instance ON events(instance);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}

	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Store{db: db, clock: clk, retentionDays: retentionDays}, nil
}

// Write persists an event. A zero timestamp is stamped with the store clock.
func (s *Store) Write(ctx context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.clock.Now()
	}
	var details []byte
	if len(evt.Details) > 0 {
		var err error
		if details, err = json.Marshal(evt.Details); err != nil {
			details = []byte("{}")
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (ts, instance, action, outcome, details) VALUES (?, ?, ?, ?, ?)`,
		evt.Timestamp.UnixNano(), evt.Instance, evt.Action, evt.Outcome, string(details))
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Query returns matching events, newest first.
func (s *Store) Query(ctx context.Context, f Filter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, ts, instance, action, outcome, details FROM events WHERE 1=1`
	var args []any
	if !f.Since.IsZero() {
		query += " AND ts >= ?"
		args = append(args, f.Since.UnixNano())
	}
	if !f.Until.IsZero() {
		query += " AND ts <= ?"
		args = append(args, f.Until.UnixNano())
	}
	if f.Instance != "" {
		query += " AND instance = ?"
		args = append(args, f.Instance)
	}
	if f.Action != "" {
		query += " AND action = ?"
		args = append(args, f.Action)
	}
	query += " ORDER BY ts DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			evt     Event
			ts      int64
			details sql.NullString
		)
		if err := rows.Scan(&evt.ID, &ts, &evt.Instance, &evt.Action, &evt.Outcome, &details); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		evt.Timestamp = time.Unix(0, ts)
		if details.Valid && details.String != "" {
			json.Unmarshal([]byte(details.String), &evt.Details)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// Prune removes events older than the retention period.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().AddDate(0, 0, -s.retentionDays)
	result, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE ts < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}
	return result.RowsAffected()
}

// Count returns the total number of events in the store.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
