package inbox

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/debatemesh/core"
)

// InMemoryQueue is a volatile InterventionQueue for tests and demos.
type InMemoryQueue struct {
	mu    sync.Mutex
	seq   int64
	items []core.Intervention
}

// NewInMemoryQueue constructs an empty queue.
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{}
}

// Enqueue appends a pending command.
func (q *InMemoryQueue) Enqueue(debateID string, kind core.InterventionKind, message string) error {
	if debateID == "" {
		return fmt.Errorf("debate id must not be empty")
	}
	if err := core.ValidateIntervention(kind, message); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	q.items = append(q.items, core.Intervention{
		ID:        q.seq,
		DebateID:  debateID,
		Kind:      kind,
		Message:   message,
		Status:    core.InterventionPending,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// DrainNext consumes the oldest pending command for the debate.
func (q *InMemoryQueue) DrainNext(debateID string) (core.Intervention, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].DebateID != debateID || q.items[i].Status != core.InterventionPending {
			continue
		}
		q.items[i].Status = core.InterventionApplied
		return q.items[i], true, nil
	}
	return core.Intervention{}, false, nil
}

var _ core.InterventionQueue = (*InMemoryQueue)(nil)
