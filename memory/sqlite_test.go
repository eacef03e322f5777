package memory

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/debatemesh/core"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "debates.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleDebate(id string, status core.Status) core.Debate {
	return core.Debate{
		ID:       id,
		Task:     "Evaluate the storage layer",
		Status:   status,
		Roles:    []core.Role{{Name: "Architect"}, {Name: "Critic"}},
		Sequence: []string{"Architect", "Critic"},
		Rounds:   2,
		CostEUR:  0.0042,
		Turns: []core.Turn{
			{Role: "Architect", Round: 0, Response: "use sqlite", Timestamp: time.Now().UTC()},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestSQLiteStoreDebates(t *testing.T) {
	store := newTestStore(t)

	t.Run("upsert and get round-trip", func(t *testing.T) {
		d := sampleDebate("debate-1", core.StatusCompleted)
		require.NoError(t, store.UpsertDebate(d))

		got, found, err := store.GetDebate("debate-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, d.Task, got.Task)
		assert.Equal(t, core.StatusCompleted, got.Status)
		assert.Equal(t, d.Sequence, got.Sequence)
		require.Len(t, got.Turns, 1)
		assert.Equal(t, "use sqlite", got.Turns[0].Response)
	})

	t.Run("upsert replaces the existing record", func(t *testing.T) {
		d := sampleDebate("debate-1", core.StatusCompleted)
		d.Rounds = 7
		require.NoError(t, store.UpsertDebate(d))

		got, found, err := store.GetDebate("debate-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 7, got.Rounds)
	})

	t.Run("missing debate reports not found", func(t *testing.T) {
		_, found, err := store.GetDebate("debate-missing")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestSQLiteStoreListDebates(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertDebate(sampleDebate("debate-a", core.StatusCompleted)))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, store.UpsertDebate(sampleDebate("debate-b", core.StatusRunning)))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, store.UpsertDebate(sampleDebate("debate-c", core.StatusCompleted)))

	t.Run("filters by status", func(t *testing.T) {
		out, err := store.ListDebates(core.DebateFilter{Status: core.StatusRunning})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "debate-b", out[0].ID)
	})

	t.Run("orders most recently updated first", func(t *testing.T) {
		out, err := store.ListDebates(core.DebateFilter{})
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, "debate-c", out[0].ID)
	})

	t.Run("honors the limit", func(t *testing.T) {
		out, err := store.ListDebates(core.DebateFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})
}

func TestSQLiteStoreEvents(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		ev := core.NewEvent("debate-1", core.EventRoundResponse, map[string]any{"round_num": i})
		require.NoError(t, store.AppendEvent(ev))
	}

	t.Run("returns events in append order", func(t *testing.T) {
		events, err := store.GetEvents("debate-1", 0)
		require.NoError(t, err)
		require.Len(t, events, 5)
		for i, ev := range events {
			assert.Equal(t, float64(i), ev.Payload["round_num"])
		}
	})

	t.Run("limit returns the latest events", func(t *testing.T) {
		events, err := store.GetEvents("debate-1", 2)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, float64(3), events[0].Payload["round_num"])
		assert.Equal(t, float64(4), events[1].Payload["round_num"])
	})

	t.Run("replace events rewrites the log", func(t *testing.T) {
		replacement := []core.Event{
			core.NewEvent("debate-1", core.EventDebateFinished, map[string]any{"status": "completed"}),
		}
		require.NoError(t, store.ReplaceEvents("debate-1", replacement))

		events, err := store.GetEvents("debate-1", 0)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, core.EventDebateFinished, events[0].Kind)
	})
}

func TestSQLiteStoreDurability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debates.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.UpsertDebate(sampleDebate("debate-1", core.StatusFailed)))
	require.NoError(t, store.AppendEvent(core.NewEvent("debate-1", core.EventDebateStarted, nil)))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, found, err := reopened.GetDebate("debate-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, core.StatusFailed, got.Status)

	events, err := reopened.GetEvents("debate-1", 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestInMemoryStore(t *testing.T) {
	store := NewInMemoryStore()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.UpsertDebate(sampleDebate(fmt.Sprintf("debate-%d", i), core.StatusCompleted)))
	}
	require.NoError(t, store.AppendEvent(core.NewEvent("debate-0", core.EventDebateStarted, nil)))

	got, found, err := store.GetDebate("debate-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "debate-1", got.ID)

	out, err := store.ListDebates(core.DebateFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	events, err := store.GetEvents("debate-0", 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
