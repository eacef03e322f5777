package registry

import (
	"sync"

	"github.com/hupe1980/debatemesh/core"
)

// InMemoryHandleStore is a volatile HandleStore backed by a process-local
// map. Safe for concurrent access; best suited for tests or single-run
// debates where handle reuse across restarts is not needed.
type InMemoryHandleStore struct {
	mu      sync.RWMutex
	handles map[string]string
}

// NewInMemoryHandleStore constructs an empty in-memory handle store.
func NewInMemoryHandleStore() *InMemoryHandleStore {
	return &InMemoryHandleStore{handles: make(map[string]string)}
}

// Get returns the stored handle for a key.
func (s *InMemoryHandleStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[key]
	return h, ok
}

// Put stores a handle under a key.
func (s *InMemoryHandleStore) Put(key, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[key] = handle
	return nil
}

// Delete removes a key.
func (s *InMemoryHandleStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, key)
	return nil
}

var _ core.HandleStore = (*InMemoryHandleStore)(nil)
