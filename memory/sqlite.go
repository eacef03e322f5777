// Package memory contains MemoryStore implementations: a durable SQLite
// store for production use and a process-local store for tests. The store
// interface lives in the core package; snapshot export/import helpers in
// this package work against any implementation.
package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/debatemesh/core"
)

const defaultListLimit = 50

// SQLiteStore persists debate metadata and event logs in a SQLite database.
// Debates are stored as JSON payloads keyed by id; events as an ordered,
// append-only index per debate.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS debates (
			debate_id TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT '',
			payload_json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS debate_events (
			debate_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			event_json TEXT NOT NULL,
			PRIMARY KEY (debate_id, idx)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init memory schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// UpsertDebate implements core.MemoryStore.
func (s *SQLiteStore) UpsertDebate(d core.Debate) error {
	if d.ID == "" {
		return fmt.Errorf("debate id must not be empty")
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode debate %s: %w", d.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO debates (debate_id, status, payload_json, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(debate_id)
		 DO UPDATE SET status=excluded.status, payload_json=excluded.payload_json, updated_at=excluded.updated_at`,
		d.ID, string(d.Status), string(payload), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert debate %s: %w", d.ID, err)
	}
	return nil
}

// GetDebate implements core.MemoryStore.
func (s *SQLiteStore) GetDebate(debateID string) (core.Debate, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload string
	err := s.db.QueryRow(`SELECT payload_json FROM debates WHERE debate_id = ?`, debateID).Scan(&payload)
	if err == sql.ErrNoRows {
		return core.Debate{}, false, nil
	}
	if err != nil {
		return core.Debate{}, false, fmt.Errorf("get debate %s: %w", debateID, err)
	}

	var d core.Debate
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return core.Debate{}, false, fmt.Errorf("decode debate %s: %w", debateID, err)
	}
	return d, true, nil
}

// ListDebates implements core.MemoryStore.
func (s *SQLiteStore) ListDebates(filter core.DebateFilter) ([]core.Debate, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		rows *sql.Rows
		err  error
	)
	if filter.Status != "" {
		rows, err = s.db.Query(
			`SELECT payload_json FROM debates WHERE status = ? ORDER BY updated_at DESC LIMIT ?`,
			string(filter.Status), limit,
		)
	} else {
		rows, err = s.db.Query(
			`SELECT payload_json FROM debates ORDER BY updated_at DESC LIMIT ?`, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list debates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var debates []core.Debate
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan debate row: %w", err)
		}
		var d core.Debate
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			continue
		}
		debates = append(debates, d)
	}
	return debates, rows.Err()
}

// AppendEvent implements core.MemoryStore.
func (s *SQLiteStore) AppendEvent(ev core.Event) error {
	if ev.DebateID == "" {
		return fmt.Errorf("event debate id must not be empty")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(idx), -1) + 1 FROM debate_events WHERE debate_id = ?`, ev.DebateID,
	).Scan(&next); err != nil {
		return fmt.Errorf("next event index: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO debate_events (debate_id, idx, event_json) VALUES (?, ?, ?)`,
		ev.DebateID, next, string(raw),
	); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return tx.Commit()
}

// GetEvents implements core.MemoryStore.
func (s *SQLiteStore) GetEvents(debateID string, limit int) ([]core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT event_json FROM debate_events WHERE debate_id = ? ORDER BY idx ASC`, debateID,
	)
	if err != nil {
		return nil, fmt.Errorf("get events %s: %w", debateID, err)
	}
	defer func() { _ = rows.Close() }()

	var events []core.Event
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// ReplaceEvents implements core.MemoryStore.
func (s *SQLiteStore) ReplaceEvents(debateID string, events []core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM debate_events WHERE debate_id = ?`, debateID); err != nil {
		return fmt.Errorf("clear events %s: %w", debateID, err)
	}
	for idx, ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %d: %w", idx, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO debate_events (debate_id, idx, event_json) VALUES (?, ?, ?)`,
			debateID, idx, string(raw),
		); err != nil {
			return fmt.Errorf("insert event %d: %w", idx, err)
		}
	}
	return tx.Commit()
}

var _ core.MemoryStore = (*SQLiteStore)(nil)
