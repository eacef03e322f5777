package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClipText(t *testing.T) {
	t.Run("short text passes through", func(t *testing.T) {
		assert.Equal(t, "hello", ClipText("hello", 10))
		assert.Equal(t, "hello", ClipText("hello", 5))
	})

	t.Run("long text is clipped with a truncation note", func(t *testing.T) {
		clipped := ClipText(strings.Repeat("x", 120), 100)
		assert.True(t, strings.HasPrefix(clipped, strings.Repeat("x", 100)))
		assert.True(t, strings.HasSuffix(clipped, "... [truncated 20 chars]"))
	})

	t.Run("non-positive max disables clipping", func(t *testing.T) {
		long := strings.Repeat("y", 5000)
		assert.Equal(t, long, ClipText(long, 0))
		assert.Equal(t, long, ClipText(long, -1))
	})
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent("debate-1", EventRoundResponse, map[string]any{"role": "Critic"})

	require.NotEmpty(t, ev.ID)
	assert.Equal(t, "debate-1", ev.DebateID)
	assert.Equal(t, EventRoundResponse, ev.Kind)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, "Critic", ev.Payload["role"])

	other := NewEvent("debate-1", EventRoundResponse, nil)
	assert.NotEqual(t, ev.ID, other.ID)
}
