package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/debatemesh/core"
)

// InMemoryStore is a volatile MemoryStore backed by process-local maps. Safe
// for concurrent access and best suited for tests or ephemeral runs; swap in
// SQLiteStore for durability.
type InMemoryStore struct {
	mu      sync.RWMutex
	debates map[string]core.Debate
	updated map[string]time.Time
	events  map[string][]core.Event
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		debates: make(map[string]core.Debate),
		updated: make(map[string]time.Time),
		events:  make(map[string][]core.Event),
	}
}

// UpsertDebate implements core.MemoryStore.
func (s *InMemoryStore) UpsertDebate(d core.Debate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debates[d.ID] = d
	s.updated[d.ID] = time.Now()
	return nil
}

// GetDebate implements core.MemoryStore.
func (s *InMemoryStore) GetDebate(debateID string) (core.Debate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.debates[debateID]
	return d, ok, nil
}

// ListDebates implements core.MemoryStore.
func (s *InMemoryStore) ListDebates(filter core.DebateFilter) ([]core.Debate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.debates))
	for id := range s.debates {
		if filter.Status != "" && s.debates[id].Status != filter.Status {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.updated[ids[i]].After(s.updated[ids[j]])
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]core.Debate, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.debates[id])
	}
	return out, nil
}

// AppendEvent implements core.MemoryStore.
func (s *InMemoryStore) AppendEvent(ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.DebateID] = append(s.events[ev.DebateID], ev)
	return nil
}

// GetEvents implements core.MemoryStore.
func (s *InMemoryStore) GetEvents(debateID string, limit int) ([]core.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events[debateID]
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	out := make([]core.Event, len(events))
	copy(out, events)
	return out, nil
}

// ReplaceEvents implements core.MemoryStore.
func (s *InMemoryStore) ReplaceEvents(debateID string, events []core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	replacement := make([]core.Event, len(events))
	copy(replacement, events)
	s.events[debateID] = replacement
	return nil
}

var _ core.MemoryStore = (*InMemoryStore)(nil)
