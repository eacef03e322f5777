// Package inbox contains InterventionQueue implementations: a durable SQLite
// queue for production use and a process-local queue for tests. The queue
// decouples remote command submission from in-process execution; the
// scheduler drains it at role boundaries.
package inbox

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/debatemesh/core"
)

// SQLiteQueue is a durable InterventionQueue. Pending commands survive
// process restarts; consumption flips a status column inside a transaction,
// so a command is applied at most once.
type SQLiteQueue struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteQueue opens (creating if necessary) the queue database at path.
func NewSQLiteQueue(path string) (*SQLiteQueue, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create queue dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	q := &SQLiteQueue{db: db}
	if err := q.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return q, nil
}

func (q *SQLiteQueue) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS interventions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			debate_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL,
			applied_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_interventions_pending
			ON interventions(debate_id, status, id);`,
	}
	for _, stmt := range stmts {
		if _, err := q.db.Exec(stmt); err != nil {
			return fmt.Errorf("init queue schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (q *SQLiteQueue) Close() error { return q.db.Close() }

// Enqueue appends a pending command. Malformed commands are rejected here,
// never partially applied.
func (q *SQLiteQueue) Enqueue(debateID string, kind core.InterventionKind, message string) error {
	if debateID == "" {
		return fmt.Errorf("debate id must not be empty")
	}
	if err := core.ValidateIntervention(kind, message); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	_, err := q.db.Exec(
		`INSERT INTO interventions (debate_id, kind, message, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		debateID, string(kind), message, string(core.InterventionPending),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("enqueue intervention: %w", err)
	}
	return nil
}

// DrainNext consumes the oldest pending command for the debate. Entries
// already applied are never returned again.
func (q *SQLiteQueue) DrainNext(debateID string) (core.Intervention, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tx, err := q.db.Begin()
	if err != nil {
		return core.Intervention{}, false, fmt.Errorf("begin drain: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		iv        core.Intervention
		kind      string
		createdAt string
	)
	row := tx.QueryRow(
		`SELECT id, kind, message, created_at FROM interventions
		 WHERE debate_id = ? AND status = ? ORDER BY id LIMIT 1`,
		debateID, string(core.InterventionPending),
	)
	if err := row.Scan(&iv.ID, &kind, &iv.Message, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return core.Intervention{}, false, nil
		}
		return core.Intervention{}, false, fmt.Errorf("read pending intervention: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE interventions SET status = ?, applied_at = ? WHERE id = ?`,
		string(core.InterventionApplied), time.Now().UTC().Format(time.RFC3339Nano), iv.ID,
	); err != nil {
		return core.Intervention{}, false, fmt.Errorf("mark intervention applied: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Intervention{}, false, fmt.Errorf("commit drain: %w", err)
	}

	iv.DebateID = debateID
	iv.Kind = core.InterventionKind(kind)
	iv.Status = core.InterventionApplied
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		iv.CreatedAt = ts
	}
	return iv, true, nil
}

var _ core.InterventionQueue = (*SQLiteQueue)(nil)
