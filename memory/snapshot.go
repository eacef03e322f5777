package memory

import (
	"fmt"
	"time"

	"github.com/hupe1980/debatemesh/core"
)

// ErrDebateExists is returned by Import when the snapshot's debate id is
// already present and overwrite was not requested.
var ErrDebateExists = fmt.Errorf("memory: debate already exists")

// ErrDebateNotFound is returned by Export for an unknown debate id.
var ErrDebateNotFound = fmt.Errorf("memory: debate not found")

// Export builds a point snapshot of one debate, optionally including its
// full event log.
func Export(store core.MemoryStore, debateID string, includeEvents bool) (core.Snapshot, error) {
	d, ok, err := store.GetDebate(debateID)
	if err != nil {
		return core.Snapshot{}, err
	}
	if !ok {
		return core.Snapshot{}, fmt.Errorf("%w: %s", ErrDebateNotFound, debateID)
	}

	snap := core.Snapshot{
		SchemaVersion: core.SnapshotSchemaVersion,
		ExportedAt:    time.Now().UTC(),
		Debate:        d,
	}
	if includeEvents {
		events, err := store.GetEvents(debateID, 0)
		if err != nil {
			return core.Snapshot{}, err
		}
		snap.Events = events
	}
	return snap, nil
}

// ExportAll builds a bulk snapshot of up to limit debates, most recently
// updated first.
func ExportAll(store core.MemoryStore, limit int, includeEvents bool) (core.BulkSnapshot, error) {
	debates, err := store.ListDebates(core.DebateFilter{Limit: limit})
	if err != nil {
		return core.BulkSnapshot{}, err
	}

	bulk := core.BulkSnapshot{
		SchemaVersion: core.SnapshotSchemaVersion,
		ExportedAt:    time.Now().UTC(),
	}
	for _, d := range debates {
		snap, err := Export(store, d.ID, includeEvents)
		if err != nil {
			return core.BulkSnapshot{}, err
		}
		bulk.Items = append(bulk.Items, snap)
	}
	bulk.Count = len(bulk.Items)
	return bulk, nil
}

// Import applies a snapshot to the store. The schema version is validated and
// an id collision is rejected unless overwrite is explicit; a rejected import
// leaves the store untouched.
func Import(store core.MemoryStore, snap core.Snapshot, overwrite bool) error {
	if snap.SchemaVersion != core.SnapshotSchemaVersion {
		return fmt.Errorf("unsupported snapshot schema version %q (want %s)",
			snap.SchemaVersion, core.SnapshotSchemaVersion)
	}
	if snap.Debate.ID == "" {
		return fmt.Errorf("snapshot debate id must not be empty")
	}

	_, exists, err := store.GetDebate(snap.Debate.ID)
	if err != nil {
		return err
	}
	if exists && !overwrite {
		return fmt.Errorf("%w: %s", ErrDebateExists, snap.Debate.ID)
	}

	if err := store.UpsertDebate(snap.Debate); err != nil {
		return err
	}
	if len(snap.Events) > 0 {
		if err := store.ReplaceEvents(snap.Debate.ID, snap.Events); err != nil {
			return err
		}
	}
	return nil
}

// ImportAll applies a bulk snapshot item by item. The first failure aborts
// the remaining items and is returned with the offending debate id.
func ImportAll(store core.MemoryStore, bulk core.BulkSnapshot, overwrite bool) (int, error) {
	if bulk.SchemaVersion != core.SnapshotSchemaVersion {
		return 0, fmt.Errorf("unsupported snapshot schema version %q (want %s)",
			bulk.SchemaVersion, core.SnapshotSchemaVersion)
	}
	imported := 0
	for _, snap := range bulk.Items {
		if err := Import(store, snap, overwrite); err != nil {
			return imported, fmt.Errorf("import %s: %w", snap.Debate.ID, err)
		}
		imported++
	}
	return imported, nil
}
