// Package debatemesh provides a high-level façade over the round scheduler
// and the service abstractions (backends, session registry, memory store,
// intervention queue & logging) for running moderated multi-agent debates.
// Most applications interact with this package by:
//  1. Creating a DebateMesh via New() with a backend (optionally overriding
//     the default in-memory services)
//  2. Starting debates asynchronously (StartDebate) and awaiting them (Wait)
//  3. Steering running debates with SubmitIntervention and inspecting them
//     through GetDebate, GetEvents and the snapshot helpers
//
// The façade delegates orchestration to scheduler.Scheduler while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply the
// SQLite-backed store and queue plus a structured logger.
package debatemesh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/debatemesh/backend"
	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/inbox"
	"github.com/hupe1980/debatemesh/logging"
	"github.com/hupe1980/debatemesh/memory"
	"github.com/hupe1980/debatemesh/registry"
	"github.com/hupe1980/debatemesh/scheduler"
)

// Options configures the DebateMesh instance.
type Options struct {
	// Scheduler configuration (ceilings, rates, polling, error policy)
	SchedulerConfig []func(o *scheduler.Options)

	// Stores (defaults to in-memory implementations if not provided)
	Store       core.MemoryStore
	Inbox       core.InterventionQueue
	HandleStore core.HandleStore

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// DebateMesh is the high-level façade aggregating the scheduler and services.
type DebateMesh struct {
	opts    Options
	backend backend.Backend

	mu   sync.Mutex
	done map[string]chan struct{}
}

// New creates a new DebateMesh instance over a backend with optional
// overrides. Any unset service is initialized with an in-memory
// implementation.
func New(b backend.Backend, optFns ...func(o *Options)) *DebateMesh {
	opts := Options{
		Store:       memory.NewInMemoryStore(),
		Inbox:       inbox.NewInMemoryQueue(),
		HandleStore: registry.NewInMemoryHandleStore(),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &DebateMesh{
		opts:    opts,
		backend: b,
		done:    make(map[string]chan struct{}),
	}
}

// StartDebate validates the request, persists it as pending and launches the
// round scheduler in the background. It returns immediately with the debate
// ID; use Wait or GetDebate to observe progress.
func (m *DebateMesh) StartDebate(ctx context.Context, req core.StartRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	debateID := core.NewDebateID()
	sched := m.newScheduler()

	m.mu.Lock()
	doneCh := make(chan struct{})
	m.done[debateID] = doneCh
	m.mu.Unlock()

	// the debate outlives the caller's request scope
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(doneCh)
		if _, err := sched.Run(runCtx, debateID, req); err != nil {
			m.opts.Logger.Error("debate run failed", "debate_id", debateID, "error", err.Error())
		}
	}()

	return debateID, nil
}

// RunDebate is the synchronous variant of StartDebate: it drives the debate
// to a terminal status on the calling goroutine and returns the final record.
func (m *DebateMesh) RunDebate(ctx context.Context, req core.StartRequest) (core.Debate, error) {
	return m.newScheduler().Run(ctx, core.NewDebateID(), req)
}

// Wait blocks until the debate started by this instance reaches a terminal
// status or the context is done, then returns the final record.
func (m *DebateMesh) Wait(ctx context.Context, debateID string) (core.Debate, error) {
	m.mu.Lock()
	doneCh, ok := m.done[debateID]
	m.mu.Unlock()
	if !ok {
		return core.Debate{}, fmt.Errorf("unknown debate %q", debateID)
	}

	select {
	case <-ctx.Done():
		return core.Debate{}, ctx.Err()
	case <-doneCh:
	}

	d, found, err := m.opts.Store.GetDebate(debateID)
	if err != nil {
		return core.Debate{}, err
	}
	if !found {
		return core.Debate{}, fmt.Errorf("debate %q finished but is not in the store", debateID)
	}
	return d, nil
}

// GetDebate returns the current record of a debate.
func (m *DebateMesh) GetDebate(debateID string) (core.Debate, bool, error) {
	return m.opts.Store.GetDebate(debateID)
}

// ListDebates returns debate summaries matching the filter, most recently
// updated first.
func (m *DebateMesh) ListDebates(filter core.DebateFilter) ([]core.Debate, error) {
	return m.opts.Store.ListDebates(filter)
}

// SubmitIntervention enqueues a command for a running debate. Feedback is
// injected into the shared context at the next role boundary; stop ends the
// debate there.
func (m *DebateMesh) SubmitIntervention(debateID string, kind core.InterventionKind, message string) error {
	if err := core.ValidateIntervention(kind, message); err != nil {
		return err
	}
	d, found, err := m.opts.Store.GetDebate(debateID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("unknown debate %q", debateID)
	}
	if d.Status.Terminal() {
		return fmt.Errorf("debate %q already %s", debateID, d.Status)
	}
	return m.opts.Inbox.Enqueue(debateID, kind, message)
}

// Stop requests the debate to end at the next role boundary.
func (m *DebateMesh) Stop(debateID string) error {
	return m.SubmitIntervention(debateID, core.InterventionStop, "")
}

// GetEvents returns the debate's audit trail in append order. A limit > 0
// returns only the most recent events.
func (m *DebateMesh) GetEvents(debateID string, limit int) ([]core.Event, error) {
	return m.opts.Store.GetEvents(debateID, limit)
}

// ExportSnapshot packages one debate (optionally with its events) into a
// versioned snapshot for transfer between stores.
func (m *DebateMesh) ExportSnapshot(debateID string, includeEvents bool) (core.Snapshot, error) {
	return memory.Export(m.opts.Store, debateID, includeEvents)
}

// ExportAll packages the most recent debates into one bulk snapshot.
func (m *DebateMesh) ExportAll(limit int, includeEvents bool) (core.BulkSnapshot, error) {
	return memory.ExportAll(m.opts.Store, limit, includeEvents)
}

// ImportSnapshot restores a snapshot into this instance's store. Without
// overwrite, an existing debate with the same ID is rejected.
func (m *DebateMesh) ImportSnapshot(snap core.Snapshot, overwrite bool) error {
	return memory.Import(m.opts.Store, snap, overwrite)
}

// ImportAll restores a bulk snapshot, returning how many debates were
// imported before the first failure.
func (m *DebateMesh) ImportAll(bulk core.BulkSnapshot, overwrite bool) (int, error) {
	return memory.ImportAll(m.opts.Store, bulk, overwrite)
}

func (m *DebateMesh) newScheduler() *scheduler.Scheduler {
	fns := append([]func(o *scheduler.Options){func(o *scheduler.Options) {
		o.Store = m.opts.Store
		o.Inbox = m.opts.Inbox
		o.HandleStore = m.opts.HandleStore
		o.Logger = m.opts.Logger
	}}, m.opts.SchedulerConfig...)
	return scheduler.New(m.backend, fns...)
}

// WaitTimeout is a small helper for callers that want a bounded Wait without
// managing a context themselves.
func (m *DebateMesh) WaitTimeout(debateID string, d time.Duration) (core.Debate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return m.Wait(ctx, debateID)
}
