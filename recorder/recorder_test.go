package recorder

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/memory"
)

func TestStoreRecorder(t *testing.T) {
	t.Run("mirrors events into the store", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		rec := NewStoreRecorder(store)

		require.NoError(t, rec.Record(core.NewEvent("debate-1", core.EventDebateStarted, map[string]any{"task": "t"})))
		require.NoError(t, rec.Record(core.NewEvent("debate-1", core.EventDebateFinished, nil)))

		events, err := store.GetEvents("debate-1", 0)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, core.EventDebateStarted, events[0].Kind)
	})

	t.Run("clips oversized text payload fields", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		rec := NewStoreRecorder(store, func(o *Options) { o.MaxTextChars = 50 })

		long := strings.Repeat("a", 200)
		require.NoError(t, rec.Record(core.NewEvent("debate-1", core.EventRoundResponse, map[string]any{
			"response": long,
			"round_num": 3,
		})))

		events, err := store.GetEvents("debate-1", 0)
		require.NoError(t, err)
		require.Len(t, events, 1)

		clipped, _ := events[0].Payload["response"].(string)
		assert.Contains(t, clipped, "[truncated 150 chars]")
		assert.Less(t, len(clipped), 200)
	})
}

type failingSink struct{ err error }

func (f *failingSink) Record(core.Event) error { return f.err }

func TestMulti(t *testing.T) {
	t.Run("fans out to every sink", func(t *testing.T) {
		a, b := NewCollector(), NewCollector()
		multi := NewMulti(a, b)

		require.NoError(t, multi.Record(core.NewEvent("debate-1", core.EventRoundStarted, nil)))
		assert.Len(t, a.Events(), 1)
		assert.Len(t, b.Events(), 1)
	})

	t.Run("attempts every sink and returns the first error", func(t *testing.T) {
		boom := errors.New("disk full")
		late := NewCollector()
		multi := NewMulti(&failingSink{err: boom}, late)

		err := multi.Record(core.NewEvent("debate-1", core.EventRoundStarted, nil))
		assert.ErrorIs(t, err, boom)
		assert.Len(t, late.Events(), 1, "a failing sink must not starve the others")
	})
}

func TestJSONLRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	rec := NewJSONLRecorder(path)

	require.NoError(t, rec.Record(core.NewEvent("debate-1", core.EventDebateStarted, map[string]any{"task": "t"})))
	require.NoError(t, rec.Record(core.NewEvent("debate-1", core.EventDebateFinished, nil)))
	require.NoError(t, rec.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var kinds []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev core.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		kinds = append(kinds, string(ev.Kind))
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"debate_started", "debate_finished"}, kinds)
}
