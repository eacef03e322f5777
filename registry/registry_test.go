package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/debatemesh/backend"
	"github.com/hupe1980/debatemesh/core"
)

func TestRegistryAcquire(t *testing.T) {
	ctx := context.Background()
	role := core.Role{Name: "Architect", Model: "test-model", SystemPrompt: "You are the architect."}

	t.Run("creates a session once and reuses it", func(t *testing.T) {
		b := backend.NewMockBackend()
		reg := New(b)

		first, err := reg.Acquire(ctx, role)
		require.NoError(t, err)
		require.NotEmpty(t, first)

		second, err := reg.Acquire(ctx, role)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, b.SessionCount())
	})

	t.Run("recreates a stale session transparently", func(t *testing.T) {
		b := backend.NewMockBackend()
		reg := New(b)

		first, err := reg.Acquire(ctx, role)
		require.NoError(t, err)

		b.Invalidate(first)

		second, err := reg.Acquire(ctx, role)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("distinct roles get distinct sessions", func(t *testing.T) {
		b := backend.NewMockBackend()
		reg := New(b)

		h1, err := reg.Acquire(ctx, core.Role{Name: "Architect"})
		require.NoError(t, err)
		h2, err := reg.Acquire(ctx, core.Role{Name: "Critic"})
		require.NoError(t, err)
		assert.NotEqual(t, h1, h2)
	})

	t.Run("creation failure propagates without retry", func(t *testing.T) {
		b := backend.NewMockBackend()
		b.FailCreate(errors.New("backend unreachable"))
		reg := New(b)

		_, err := reg.Acquire(ctx, role)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create session for role Architect")
	})
}

func TestRegistryInvalidate(t *testing.T) {
	ctx := context.Background()
	role := core.Role{Name: "Critic"}

	b := backend.NewMockBackend()
	reg := New(b)

	first, err := reg.Acquire(ctx, role)
	require.NoError(t, err)

	require.NoError(t, reg.Invalidate(role.Name))

	second, err := reg.Acquire(ctx, role)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, b.SessionCount())
}

func TestRegistryNamespaceScopesHandles(t *testing.T) {
	ctx := context.Background()
	role := core.Role{Name: "Architect"}
	b := backend.NewMockBackend()
	store := NewInMemoryHandleStore()

	regA := New(b, func(o *Options) { o.HandleStore = store; o.Namespace = "debate-a" })
	regB := New(b, func(o *Options) { o.HandleStore = store; o.Namespace = "debate-b" })

	hA, err := regA.Acquire(ctx, role)
	require.NoError(t, err)
	hB, err := regB.Acquire(ctx, role)
	require.NoError(t, err)
	assert.NotEqual(t, hA, hB)
}

func TestFileHandleStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handles.json")

	store, err := NewFileHandleStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Put("debate-1/Architect", "sess-1"))
	require.NoError(t, store.Put("debate-1/Critic", "sess-2"))
	require.NoError(t, store.Delete("debate-1/Critic"))

	// reopen and verify persisted state
	reopened, err := NewFileHandleStore(path)
	require.NoError(t, err)

	handle, ok := reopened.Get("debate-1/Architect")
	assert.True(t, ok)
	assert.Equal(t, "sess-1", handle)

	_, ok = reopened.Get("debate-1/Critic")
	assert.False(t, ok)
}
