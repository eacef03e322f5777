package core

import "time"

// MemoryStore is the durable record of debate metadata and event history.
// Implementations must be safe for concurrent use.
type MemoryStore interface {
	// UpsertDebate inserts or replaces a debate metadata record.
	UpsertDebate(d Debate) error
	// GetDebate returns the stored record and whether it exists.
	GetDebate(debateID string) (Debate, bool, error)
	// ListDebates returns debates most recently updated first.
	ListDebates(filter DebateFilter) ([]Debate, error)
	// AppendEvent appends one immutable event to a debate's log.
	AppendEvent(ev Event) error
	// GetEvents returns up to limit of the latest events in emission order.
	// limit <= 0 returns all events.
	GetEvents(debateID string, limit int) ([]Event, error)
	// ReplaceEvents atomically replaces a debate's event log. Used only by
	// snapshot import; live debates never rewrite history.
	ReplaceEvents(debateID string, events []Event) error
}

// DebateFilter narrows ListDebates results.
type DebateFilter struct {
	Status Status // zero value matches all statuses
	Limit  int    // <= 0 means implementation default
}

// InterventionQueue is a durable, externally writable inbox of pending
// commands. Enqueue may be called concurrently with DrainNext; DrainNext is
// single-consumer per debate and idempotent with respect to already-applied
// entries.
type InterventionQueue interface {
	Enqueue(debateID string, kind InterventionKind, message string) error
	// DrainNext consumes the oldest pending intervention for the debate,
	// marking it applied. The boolean reports whether one was found.
	DrainNext(debateID string) (Intervention, bool, error)
}

// HandleStore persists backend session handles between runs. Keys are scoped
// by the registry (debate and role) so handles are never shared across roles
// or debates.
type HandleStore interface {
	Get(key string) (string, bool)
	Put(key, handle string) error
	Delete(key string) error
}

// EventSink receives lifecycle events as they are emitted. A write failure
// must be surfaced to the caller, never swallowed.
type EventSink interface {
	Record(ev Event) error
}

// SnapshotSchemaVersion is the schema version stamped on exported snapshots
// and validated on import.
const SnapshotSchemaVersion = "1.0"

// Snapshot is a point export of one debate: metadata plus, optionally, the
// full event log.
type Snapshot struct {
	SchemaVersion string    `json:"schema_version"`
	ExportedAt    time.Time `json:"exported_at"`
	Debate        Debate    `json:"debate"`
	Events        []Event   `json:"events,omitempty"`
}

// BulkSnapshot is a bulk export of many debates.
type BulkSnapshot struct {
	SchemaVersion string     `json:"schema_version"`
	ExportedAt    time.Time  `json:"exported_at"`
	Count         int        `json:"count"`
	Items         []Snapshot `json:"items"`
}
