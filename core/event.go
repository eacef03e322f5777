package core

import (
	"fmt"
	"time"
)

// EventKind names a lifecycle occurrence recorded in a debate's audit trail.
type EventKind string

const (
	// EventDebateStarted is emitted once when the scheduler enters running.
	EventDebateStarted EventKind = "debate_started"
	// EventRoundStarted is emitted before a role's turn is dispatched.
	EventRoundStarted EventKind = "round_started"
	// EventRoundResponse records a successful turn response.
	EventRoundResponse EventKind = "round_response"
	// EventChiefAction records an applied human intervention (or its absence).
	EventChiefAction EventKind = "chief_action"
	// EventParallelStarted is emitted before a parallel group fan-out.
	EventParallelStarted EventKind = "parallel_started"
	// EventParallelCompleted is emitted after a parallel group joins.
	EventParallelCompleted EventKind = "parallel_completed"
	// EventRoundError records a turn-level failure.
	EventRoundError EventKind = "round_error"
	// EventDebateStopped records an early termination (stop, ceiling).
	EventDebateStopped EventKind = "debate_stopped"
	// EventDebateFinished is the last event of every debate.
	EventDebateFinished EventKind = "debate_finished"
)

// Event is an append-only record of a lifecycle occurrence. After emission it
// is immutable; events for a debate are totally ordered by emission time.
type Event struct {
	ID        string         `json:"id"`
	DebateID  string         `json:"debate_id"`
	Kind      EventKind      `json:"event"`
	Timestamp time.Time      `json:"ts"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewEvent creates an event bound to a debate with a fresh ID and UTC
// timestamp. The payload map is taken as-is; callers should not mutate it
// after emission.
func NewEvent(debateID string, kind EventKind, payload map[string]any) Event {
	return Event{
		ID:        NewID(),
		DebateID:  debateID,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// ClipText caps a text field at max characters, appending a truncation note
// so readers can tell content was dropped. max <= 0 disables clipping.
func ClipText(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	clipped := s[:max]
	return fmt.Sprintf("%s... [truncated %d chars]", clipped, len(s)-len(clipped))
}
