// Package recorder contains EventSink implementations for the append-only
// audit trail: a memory-store mirror, a JSONL file log and a fan-out
// combinator. Long text payload fields are clipped before recording so the
// trail stays bounded.
package recorder

import (
	"fmt"
	"sync"

	"github.com/hupe1980/debatemesh/core"
)

const defaultMaxTextChars = 4000

// Options configure payload clipping.
type Options struct {
	// MaxTextChars caps string payload fields. <= 0 keeps the default.
	MaxTextChars int
}

// StoreRecorder mirrors events into a MemoryStore, clipping long text fields
// first. Write failures are returned to the caller; losing audit data
// silently is unacceptable.
type StoreRecorder struct {
	store core.MemoryStore
	max   int
}

// NewStoreRecorder constructs a recorder over a memory store.
func NewStoreRecorder(store core.MemoryStore, optFns ...func(o *Options)) *StoreRecorder {
	opts := Options{MaxTextChars: defaultMaxTextChars}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxTextChars <= 0 {
		opts.MaxTextChars = defaultMaxTextChars
	}
	return &StoreRecorder{store: store, max: opts.MaxTextChars}
}

// Record implements core.EventSink.
func (r *StoreRecorder) Record(ev core.Event) error {
	ev.Payload = clipPayload(ev.Payload, r.max)
	if err := r.store.AppendEvent(ev); err != nil {
		return fmt.Errorf("record %s event: %w", ev.Kind, err)
	}
	return nil
}

// Multi fans an event out to several sinks. All sinks are attempted; the
// first error is returned so durability faults still surface.
type Multi struct {
	sinks []core.EventSink
}

// NewMulti combines sinks into one.
func NewMulti(sinks ...core.EventSink) *Multi {
	return &Multi{sinks: sinks}
}

// Record implements core.EventSink.
func (m *Multi) Record(ev core.Event) error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Record(ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Collector buffers events in memory, for tests and programmatic inspection.
type Collector struct {
	mu     sync.Mutex
	events []core.Event
}

// NewCollector constructs an empty collector.
func NewCollector() *Collector { return &Collector{} }

// Record implements core.EventSink.
func (c *Collector) Record(ev core.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

// Events returns a copy of everything recorded so far.
func (c *Collector) Events() []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Event, len(c.events))
	copy(out, c.events)
	return out
}

// clipPayload returns a copy of the payload with string values capped. Nested
// string maps (parallel results) are clipped one level deep.
func clipPayload(payload map[string]any, max int) map[string]any {
	if len(payload) == 0 {
		return payload
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch tv := v.(type) {
		case string:
			out[k] = core.ClipText(tv, max)
		case map[string]string:
			clipped := make(map[string]string, len(tv))
			for ck, cv := range tv {
				clipped[ck] = core.ClipText(cv, max)
			}
			out[k] = clipped
		default:
			out[k] = v
		}
	}
	return out
}

var (
	_ core.EventSink = (*StoreRecorder)(nil)
	_ core.EventSink = (*Multi)(nil)
	_ core.EventSink = (*Collector)(nil)
)
