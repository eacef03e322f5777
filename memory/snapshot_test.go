package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/debatemesh/core"
)

func TestSnapshotExportImport(t *testing.T) {
	source := NewInMemoryStore()
	require.NoError(t, source.UpsertDebate(sampleDebate("debate-1", core.StatusCompleted)))
	require.NoError(t, source.AppendEvent(core.NewEvent("debate-1", core.EventDebateStarted, nil)))
	require.NoError(t, source.AppendEvent(core.NewEvent("debate-1", core.EventDebateFinished, nil)))

	t.Run("round-trips a debate with its events", func(t *testing.T) {
		snap, err := Export(source, "debate-1", true)
		require.NoError(t, err)
		assert.Equal(t, core.SnapshotSchemaVersion, snap.SchemaVersion)
		assert.False(t, snap.ExportedAt.IsZero())
		require.Len(t, snap.Events, 2)

		target := NewInMemoryStore()
		require.NoError(t, Import(target, snap, false))

		got, found, err := target.GetDebate("debate-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Evaluate the storage layer", got.Task)

		events, err := target.GetEvents("debate-1", 0)
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("export without events omits the log", func(t *testing.T) {
		snap, err := Export(source, "debate-1", false)
		require.NoError(t, err)
		assert.Empty(t, snap.Events)
	})

	t.Run("export of an unknown debate fails", func(t *testing.T) {
		_, err := Export(source, "debate-missing", true)
		assert.ErrorIs(t, err, ErrDebateNotFound)
	})

	t.Run("import rejects a colliding debate without overwrite", func(t *testing.T) {
		snap, err := Export(source, "debate-1", true)
		require.NoError(t, err)

		target := NewInMemoryStore()
		require.NoError(t, Import(target, snap, false))
		assert.ErrorIs(t, Import(target, snap, false), ErrDebateExists)
		assert.NoError(t, Import(target, snap, true))
	})

	t.Run("import rejects an unknown schema version", func(t *testing.T) {
		snap, err := Export(source, "debate-1", true)
		require.NoError(t, err)
		snap.SchemaVersion = "2.0"

		assert.Error(t, Import(NewInMemoryStore(), snap, false))
	})
}

func TestSnapshotBulk(t *testing.T) {
	source := NewInMemoryStore()
	require.NoError(t, source.UpsertDebate(sampleDebate("debate-a", core.StatusCompleted)))
	require.NoError(t, source.UpsertDebate(sampleDebate("debate-b", core.StatusStopped)))

	bulk, err := ExportAll(source, 0, true)
	require.NoError(t, err)
	assert.Equal(t, core.SnapshotSchemaVersion, bulk.SchemaVersion)
	assert.Equal(t, 2, bulk.Count)
	require.Len(t, bulk.Items, 2)

	t.Run("imports every item", func(t *testing.T) {
		target := NewInMemoryStore()
		n, err := ImportAll(target, bulk, false)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		out, err := target.ListDebates(core.DebateFilter{})
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})

	t.Run("stops at the first collision and reports progress", func(t *testing.T) {
		target := NewInMemoryStore()
		// pre-seed the second item to force a collision mid-import
		require.NoError(t, Import(target, bulk.Items[1], false))

		n, err := ImportAll(target, bulk, false)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDebateExists)
		assert.Equal(t, 1, n)
	})
}
