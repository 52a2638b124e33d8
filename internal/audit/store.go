// Package audit persists discrete session events (handshake completion,
// station moves, flow installs, backpressure drops) to a local sqlite
// database, so an operator can reconstruct a session's history after the
// fact without needing the live monitor feed.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"grimm.is/lswitch/internal/clock"
)

// Event is a single recorded session event.
type Event struct {
	ID         int64          `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	DatapathID string         `json:"datapath_id,omitempty"`
	Kind       string         `json:"kind"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// Store provides persistent storage for session events.
type Store struct {
	mu            sync.RWMutex
	db            *sql.DB
	clock         clock.Clock
	retentionDays int
}

// NewStore creates or opens an audit store at dbPath. A non-positive
// retentionDays falls back to 90.
func NewStore(dbPath string, retentionDays int, clk clock.Clock) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS session_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			datapath_id TEXT,
			kind TEXT NOT NULL,
			fields TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON session_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_datapath ON session_events(datapath_id);
		CREATE INDEX IF NOT EXISTS idx_audit_kind ON session_events(kind);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create session_events table: %w", err)
	}

	if retentionDays <= 0 {
		retentionDays = 90
	}
	if clk == nil {
		clk = &clock.RealClock{}
	}

	return &Store{db: db, clock: clk, retentionDays: retentionDays}, nil
}

// Write persists one event.
func (s *Store) Write(evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fieldsJSON []byte
	if evt.Fields != nil {
		var err error
		fieldsJSON, err = json.Marshal(evt.Fields)
		if err != nil {
			fieldsJSON = []byte("{}")
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO session_events (timestamp, datapath_id, kind, fields)
		VALUES (?, ?, ?, ?)
	`, evt.Timestamp, evt.DatapathID, evt.Kind, string(fieldsJSON))
	if err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

// ForDatapath returns a Notifier that stamps every notification with the
// given datapath id string before writing it, so callers wiring up
// internal/lswitch don't need to track that association themselves.
func (s *Store) ForDatapath(datapathID string) *DatapathNotifier {
	return &DatapathNotifier{store: s, datapathID: datapathID}
}

// DatapathNotifier implements lswitch.Notifier against a single Store,
// tagging every event with the datapath id it was constructed for.
type DatapathNotifier struct {
	store      *Store
	datapathID string
}

// Notify implements lswitch.Notifier. Write errors are swallowed: a
// failing audit trail must never interfere with packet processing.
func (n *DatapathNotifier) Notify(kind string, fields map[string]any) {
	_ = n.store.Write(Event{
		Timestamp:  n.store.clock.Now(),
		DatapathID: n.datapathID,
		Kind:       kind,
		Fields:     fields,
	})
}

// Query returns events in [start, end], optionally filtered by kind
// and/or datapath id, most recent first. limit <= 0 means unbounded.
func (s *Store) Query(start, end time.Time, kind, datapathID string, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, timestamp, datapath_id, kind, fields
		FROM session_events WHERE timestamp >= ? AND timestamp <= ?`
	args := []any{start, end}

	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	if datapathID != "" {
		query += " AND datapath_id = ?"
		args = append(args, datapathID)
	}

	query += " ORDER BY timestamp DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var evt Event
		var datapathID sql.NullString
		var fieldsJSON sql.NullString

		if err := rows.Scan(&evt.ID, &evt.Timestamp, &datapathID, &evt.Kind, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		if datapathID.Valid {
			evt.DatapathID = datapathID.String
		}
		if fieldsJSON.Valid && fieldsJSON.String != "" {
			json.Unmarshal([]byte(fieldsJSON.String), &evt.Fields)
		}
		events = append(events, evt)
	}
	return events, nil
}

// Prune removes events older than the retention period.
func (s *Store) Prune() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().AddDate(0, 0, -s.retentionDays)
	result, err := s.db.Exec("DELETE FROM session_events WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune session events: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Count returns the total number of events in the store.
func (s *Store) Count() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM session_events").Scan(&count)
	return count, err
}
