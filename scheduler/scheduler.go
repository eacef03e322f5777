// Package scheduler drives one debate through its lifecycle: it executes
// sequential and parallel rounds against a backend, enforces the round,
// budget and context ceilings, applies queued human interventions at role
// boundaries and produces the final minutes on termination.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/debatemesh/backend"
	"github.com/hupe1980/debatemesh/compact"
	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/executor"
	"github.com/hupe1980/debatemesh/inbox"
	"github.com/hupe1980/debatemesh/logging"
	"github.com/hupe1980/debatemesh/memory"
	"github.com/hupe1980/debatemesh/recorder"
	"github.com/hupe1980/debatemesh/registry"
)

// ErrorPolicy decides what a turn-level backend failure does to the debate.
type ErrorPolicy string

const (
	// ErrorPolicySkip records the error and continues with the next role.
	ErrorPolicySkip ErrorPolicy = "skip"
	// ErrorPolicyFail fails the whole debate on the first turn error.
	ErrorPolicyFail ErrorPolicy = "fail"
	// ErrorPolicyRetryOnce retries the failed turn once, then skips the role.
	ErrorPolicyRetryOnce ErrorPolicy = "retry_once"
)

// Options configure a Scheduler.
type Options struct {
	// MaxRounds caps the number of sequence positions executed.
	MaxRounds int
	// BudgetEUR is the cost ceiling; 0 means unlimited.
	BudgetEUR float64
	// Rates convert estimated usage into money.
	Rates core.Rates
	// MaxContextChars triggers compaction when the shared context grows past it.
	MaxContextChars int
	// MaxWait bounds the wall-clock wait for one turn's response.
	MaxWait time.Duration
	// PollInterval is the delay between response polls.
	PollInterval time.Duration
	// ErrorPolicy decides how turn errors are handled. Defaults to skip.
	ErrorPolicy ErrorPolicy
	// MaxParallelWorkers bounds concurrent turns in a parallel group.
	MaxParallelWorkers int
	// MinutesRole names the role asked to author the final minutes.
	// Defaults to the first role of the sequence.
	MinutesRole string
	// SummarizerRole authors context summaries on its own session.
	SummarizerRole core.Role

	// Store persists debate metadata and mirrors the event log.
	Store core.MemoryStore
	// Inbox is the intervention queue drained at role boundaries.
	Inbox core.InterventionQueue
	// HandleStore persists backend session handles.
	HandleStore core.HandleStore
	// ExtraSinks receive every event in addition to the store mirror.
	ExtraSinks []core.EventSink
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Scheduler owns one debate's mutable state for its lifetime. One instance
// may run debates one after another but never the same debate twice.
type Scheduler struct {
	backend backend.Backend
	opts    Options
	sink    core.EventSink
}

// New constructs a Scheduler with optional overrides. Defaults are safe for
// tests: in-memory stores, no logging.
func New(b backend.Backend, optFns ...func(o *Options)) *Scheduler {
	opts := Options{
		MaxRounds:          15,
		BudgetEUR:          0.50,
		Rates:              core.DefaultRates(),
		MaxContextChars:    12000,
		MaxWait:            60 * time.Second,
		PollInterval:       1500 * time.Millisecond,
		ErrorPolicy:        ErrorPolicySkip,
		MaxParallelWorkers: 5,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = memory.NewInMemoryStore()
	}
	if opts.Inbox == nil {
		opts.Inbox = inbox.NewInMemoryQueue()
	}
	if opts.HandleStore == nil {
		opts.HandleStore = registry.NewInMemoryHandleStore()
	}

	sinks := append([]core.EventSink{recorder.NewStoreRecorder(opts.Store)}, opts.ExtraSinks...)
	return &Scheduler{backend: b, opts: opts, sink: recorder.NewMulti(sinks...)}
}

// Store returns the memory store the scheduler writes through.
func (s *Scheduler) Store() core.MemoryStore { return s.opts.Store }

// Inbox returns the intervention queue the scheduler drains.
func (s *Scheduler) Inbox() core.InterventionQueue { return s.opts.Inbox }

// run bundles the per-debate mutable state.
type run struct {
	d       *core.Debate
	req     core.StartRequest
	roster  map[string]core.Role
	context string
	turns   []core.Turn
	chief   []chiefNote
	tracker *core.BudgetTracker
	reg     *registry.Registry
	exec    *executor.Executor
	comp    *compact.Compactor
	// first durability failure seen mid-debate; surfaced from Run after
	// termination without rolling back executed turns
	recordErr error
	started   time.Time
}

type chiefNote struct {
	action   string
	feedback string
}

// outcome is the terminal disposition decided inside the round loop.
type outcome struct {
	status core.Status
	reason string
	err    error
}

// Run drives the debate to a terminal status and returns the final record.
// The returned error reports validation failures, context cancellation or a
// durability fault; it is nil for every normal termination path including
// ceilings and stop interventions.
func (s *Scheduler) Run(ctx context.Context, debateID string, req core.StartRequest) (core.Debate, error) {
	if err := req.Validate(); err != nil {
		return core.Debate{}, fmt.Errorf("invalid start request: %w", err)
	}
	if debateID == "" {
		debateID = core.NewDebateID()
	}

	// the persisted debate keeps the raw role prompts; the roster carries
	// the composed per-session prompts
	roster := make(map[string]core.Role, len(req.Roles))
	roles := make([]core.Role, 0, len(req.Roles))
	for _, role := range req.Roles {
		roles = append(roles, role)
		role.SystemPrompt = composeSystemPrompt(role, req)
		roster[role.Name] = role
	}

	d := &core.Debate{
		ID:             debateID,
		Task:           strings.TrimSpace(req.Task),
		Status:         core.StatusPending,
		Roles:          roles,
		Sequence:       req.Sequence,
		ParallelGroups: req.ParallelGroups,
		MinutesMode:    req.MinutesMode,
		CreatedAt:      time.Now().UTC(),
	}
	if d.MinutesMode == "" {
		d.MinutesMode = core.MinutesAuto
	}
	if err := s.opts.Store.UpsertDebate(*d); err != nil {
		return core.Debate{}, fmt.Errorf("persist pending debate: %w", err)
	}

	reg := registry.New(s.backend, func(o *registry.Options) {
		o.HandleStore = s.opts.HandleStore
		o.Namespace = debateID
		o.Logger = s.opts.Logger
	})
	exec := executor.New(s.backend, func(o *executor.Options) {
		o.MaxWait = s.opts.MaxWait
		o.PollInterval = s.opts.PollInterval
		o.Logger = s.opts.Logger
	})
	comp := compact.New(reg, exec, func(o *compact.Options) {
		o.MaxChars = s.opts.MaxContextChars
		if s.opts.SummarizerRole.Name != "" {
			o.SummarizerRole = s.opts.SummarizerRole
		}
		o.Logger = s.opts.Logger
	})

	r := &run{
		d:       d,
		req:     req,
		roster:  roster,
		context: d.Task,
		tracker: core.NewBudgetTracker(s.opts.BudgetEUR, s.opts.Rates),
		reg:     reg,
		exec:    exec,
		comp:    comp,
		started: time.Now(),
	}

	// running is entered exactly once
	d.Status = core.StatusRunning
	d.StartedAt = time.Now().UTC()
	s.record(r, core.EventDebateStarted, map[string]any{
		"task":            d.Task,
		"sequence":        req.Sequence,
		"parallel_groups": req.ParallelGroups,
		"budget_eur":      s.opts.BudgetEUR,
		"max_rounds":      s.opts.MaxRounds,
	})
	if err := s.opts.Store.UpsertDebate(*d); err != nil {
		return core.Debate{}, fmt.Errorf("persist running debate: %w", err)
	}

	out := s.rounds(ctx, r)
	s.finish(ctx, r, out)

	if err := s.opts.Store.UpsertDebate(*d); err != nil {
		return *d, fmt.Errorf("persist final debate: %w", err)
	}
	if r.recordErr != nil {
		return *d, fmt.Errorf("event log write failed during debate: %w", r.recordErr)
	}
	return *d, ctx.Err()
}

// rounds is the per-round cycle: ceilings, turn dispatch/collect,
// intervention check, advance.
func (s *Scheduler) rounds(ctx context.Context, r *run) outcome {
	for pos, roleName := range r.req.Sequence {
		if err := ctx.Err(); err != nil {
			return outcome{status: core.StatusStopped, reason: "context_canceled"}
		}
		if pos >= s.opts.MaxRounds {
			return outcome{status: core.StatusCompleted, reason: "max_rounds_reached"}
		}
		if r.tracker.Exceeded() {
			return outcome{status: core.StatusCompleted, reason: "budget_exceeded"}
		}
		if len(r.context) > s.opts.MaxContextChars {
			if err := s.compactContext(ctx, r); err != nil {
				return outcome{status: core.StatusFailed, reason: "context_overflow", err: err}
			}
		}

		role := r.roster[roleName]
		s.opts.Logger.Info("round started", "debate_id", r.d.ID, "round", pos, "role", roleName)
		s.record(r, core.EventRoundStarted, map[string]any{
			"round_num":     pos,
			"role":          roleName,
			"context_chars": len(r.context),
			"context":       r.context,
		})

		response, err := s.turnWithPolicy(ctx, r, pos, role, r.context)
		if err != nil {
			s.record(r, core.EventRoundError, map[string]any{
				"round_num": pos,
				"role":      roleName,
				"error":     err.Error(),
			})
			r.turns = append(r.turns, core.Turn{
				Role: roleName, Round: pos, Context: core.ClipText(r.context, 2000),
				Error: err.Error(), Timestamp: time.Now().UTC(),
			})
			if s.opts.ErrorPolicy == ErrorPolicyFail {
				return outcome{status: core.StatusFailed, reason: "role_error", err: fmt.Errorf("turn failed for role %s: %w", roleName, err)}
			}
			// skip the role, shared context unchanged
		} else {
			s.record(r, core.EventRoundResponse, map[string]any{
				"round_num":      pos,
				"role":           roleName,
				"response_chars": len(response),
				"response":       response,
			})
			r.turns = append(r.turns, core.Turn{
				Role: roleName, Round: pos, Context: core.ClipText(r.context, 2000),
				Response: response, CostEUR: r.tracker.CostEUR(), Timestamp: time.Now().UTC(),
			})
			r.d.Rounds++
			r.context += fmt.Sprintf("\n\nResponse from %s: %s\nNext turn.", roleName, response)
		}

		if s.applyInterventions(r, pos, roleName) {
			return outcome{status: core.StatusStopped, reason: "queued_stop"}
		}

		if pos < len(r.req.ParallelGroups) {
			group := core.NormalizeRoles(r.req.ParallelGroups[pos])
			if len(group) > 0 {
				s.runParallel(ctx, r, pos, group)
				if s.applyInterventions(r, pos, "") {
					return outcome{status: core.StatusStopped, reason: "queued_stop"}
				}
			}
		}
	}
	return outcome{status: core.StatusCompleted, reason: "sequence_exhausted"}
}

// turnWithPolicy performs one turn, retrying once when the policy allows it.
func (s *Scheduler) turnWithPolicy(ctx context.Context, r *run, round int, role core.Role, prompt string) (string, error) {
	start := time.Now()
	response, err := s.performTurn(ctx, r, role, prompt)
	if err != nil && s.opts.ErrorPolicy == ErrorPolicyRetryOnce && ctx.Err() == nil {
		s.opts.Logger.Warn("turn failed, retrying once", "debate_id", r.d.ID, "round", round, "role", role.Name, "error", err.Error())
		s.record(r, core.EventRoundError, map[string]any{
			"round_num": round,
			"role":      role.Name,
			"error":     err.Error(),
			"retrying":  true,
		})
		response, err = s.performTurn(ctx, r, role, prompt)
	}
	if lt, ok := s.opts.Logger.(*logging.DebateLogger); ok {
		lt.LogTurn(role.Name, round, time.Since(start), err)
	}
	return response, err
}

// performTurn acquires the role's session, executes the turn and charges the
// budget. A session invalidated between the registry probe and the send is
// recovered once, transparently.
func (s *Scheduler) performTurn(ctx context.Context, r *run, role core.Role, prompt string) (string, error) {
	handle, err := r.reg.Acquire(ctx, role)
	if err != nil {
		return "", err
	}
	response, err := r.exec.Execute(ctx, handle, prompt)
	if errors.Is(err, backend.ErrSessionNotFound) {
		if ierr := r.reg.Invalidate(role.Name); ierr != nil {
			return "", ierr
		}
		handle, err = r.reg.Acquire(ctx, role)
		if err != nil {
			return "", err
		}
		response, err = r.exec.Execute(ctx, handle, prompt)
	}
	if err != nil {
		return "", err
	}

	cost, exceeded := r.tracker.Charge(len(prompt), len(response))
	if exceeded {
		s.opts.Logger.Warn("budget ceiling exceeded", "debate_id", r.d.ID, "cost_eur", cost)
	}
	return response, nil
}

// runParallel dispatches the group's turns concurrently against the same
// context snapshot, joins all of them and merges responses into the shared
// context in the group's declared order so the merged context is
// deterministic regardless of arrival order. A member's failure never
// cancels its siblings.
func (s *Scheduler) runParallel(ctx context.Context, r *run, round int, group []string) {
	s.record(r, core.EventParallelStarted, map[string]any{
		"round_num": round,
		"roles":     group,
	})

	snapshot := r.context
	type result struct {
		response string
		err      error
	}
	results := make([]result, len(group))

	sem := make(chan struct{}, s.opts.MaxParallelWorkers)
	var wg sync.WaitGroup
	for i, name := range group {
		wg.Add(1)
		go func(i int, role core.Role) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			response, err := s.performTurn(ctx, r, role, snapshot)
			results[i] = result{response: response, err: err}
		}(i, r.roster[name])
	}
	wg.Wait()

	lines := make([]string, 0, len(group))
	recorded := make(map[string]string, len(group))
	for i, name := range group {
		if results[i].err != nil {
			s.record(r, core.EventRoundError, map[string]any{
				"round_num": round,
				"role":      name,
				"error":     results[i].err.Error(),
				"parallel":  true,
			})
			r.turns = append(r.turns, core.Turn{
				Role: name, Round: round, Context: core.ClipText(snapshot, 2000),
				Error: results[i].err.Error(), Timestamp: time.Now().UTC(),
			})
			recorded[name] = "Error: " + results[i].err.Error()
			continue
		}
		s.record(r, core.EventRoundResponse, map[string]any{
			"round_num":      round,
			"role":           name,
			"response_chars": len(results[i].response),
			"response":       results[i].response,
			"parallel":       true,
		})
		r.turns = append(r.turns, core.Turn{
			Role: name, Round: round, Context: core.ClipText(snapshot, 2000),
			Response: results[i].response, CostEUR: r.tracker.CostEUR(), Timestamp: time.Now().UTC(),
		})
		recorded[name] = results[i].response
		lines = append(lines, fmt.Sprintf("%s: %s", name, results[i].response))
	}

	r.context += "\n\n[PARALLEL RESPONSES]\n" + strings.Join(lines, "\n") + "\n[/PARALLEL RESPONSES]\n"
	s.record(r, core.EventParallelCompleted, map[string]any{
		"round_num": round,
		"results":   recorded,
	})
}

// applyInterventions drains every pending command for the debate. Feedback is
// appended to the shared context as a delimited block; a stop ends the debate
// at this boundary. Reports whether a stop was consumed.
func (s *Scheduler) applyInterventions(r *run, round int, role string) bool {
	for {
		iv, ok, err := s.opts.Inbox.DrainNext(r.d.ID)
		if err != nil {
			s.opts.Logger.Error("intervention queue read failed", "debate_id", r.d.ID, "error", err.Error())
			return false
		}
		if !ok {
			return false
		}

		switch iv.Kind {
		case core.InterventionStop:
			r.chief = append(r.chief, chiefNote{action: "queued_stop"})
			s.record(r, core.EventChiefAction, map[string]any{
				"round_num": round,
				"role":      role,
				"action":    "queued_stop",
			})
			return true
		case core.InterventionFeedback:
			r.context += "\n\n[CHIEF INTERVENES]\n" + iv.Message + "\n[/CHIEF INTERVENES]\n"
			r.chief = append(r.chief, chiefNote{action: "queued_feedback", feedback: iv.Message})
			s.record(r, core.EventChiefAction, map[string]any{
				"round_num": round,
				"role":      role,
				"action":    "queued_feedback",
				"feedback":  iv.Message,
			})
		}
	}
}

// compactContext replaces the oversized shared context with a bounded
// summary. When even the truncation path cannot help, the error fails the
// debate with a descriptive cause.
func (s *Scheduler) compactContext(ctx context.Context, r *run) error {
	res, err := r.comp.Compact(ctx, r.context)
	if err != nil {
		return fmt.Errorf("compaction exhausted: %w", err)
	}
	if res.Refused {
		// Already a summary and still oversized: hard truncation is the
		// last resort before failing.
		truncated := compact.Truncate(r.context, s.opts.MaxContextChars)
		if len(truncated) > s.opts.MaxContextChars {
			return fmt.Errorf("context of %d chars cannot be reduced below %d", len(r.context), s.opts.MaxContextChars)
		}
		r.context = truncated
		return nil
	}
	r.context = res.Text
	return nil
}

// finish applies the terminal status, produces the final minutes and emits
// the closing events. It is the single termination path, so at most one
// authoritative minutes record exists per debate.
func (s *Scheduler) finish(ctx context.Context, r *run, out outcome) {
	d := r.d
	d.Status = out.status
	d.Reason = out.reason
	if out.err != nil {
		d.Error = out.err.Error()
	}
	d.FinishedAt = time.Now().UTC()
	d.Turns = r.turns

	if out.status != core.StatusCompleted || out.reason != "sequence_exhausted" {
		s.record(r, core.EventDebateStopped, map[string]any{
			"reason": out.reason,
			"status": string(out.status),
		})
	}

	d.Minutes, d.MinutesProvenance = s.produceMinutes(ctx, r)
	// the minutes turn, if any, is charged too
	d.CostEUR = r.tracker.CostEUR()

	inputTokens, outputTokens := r.tracker.Tokens()
	s.record(r, core.EventDebateFinished, map[string]any{
		"status":           string(out.status),
		"reason":           out.reason,
		"duration_seconds": time.Since(r.started).Seconds(),
		"cost_eur":         d.CostEUR,
		"input_tokens":     inputTokens,
		"output_tokens":    outputTokens,
	})
	s.opts.Logger.Info("debate finished",
		"debate_id", d.ID, "status", string(out.status), "reason", out.reason, "cost_eur", d.CostEUR)
}

// record emits an event to every sink. A write failure is remembered and
// surfaced from Run after termination; it never aborts an in-progress turn.
func (s *Scheduler) record(r *run, kind core.EventKind, payload map[string]any) {
	ev := core.NewEvent(r.d.ID, kind, payload)
	if err := s.sink.Record(ev); err != nil {
		s.opts.Logger.Error("event record failed", "debate_id", r.d.ID, "kind", string(kind), "error", err.Error())
		if r.recordErr == nil {
			r.recordErr = err
		}
	}
}
