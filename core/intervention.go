package core

import (
	"fmt"
	"time"
)

// InterventionKind is the type of a queued human command.
type InterventionKind string

const (
	// InterventionFeedback injects text into the shared context before the
	// next turn.
	InterventionFeedback InterventionKind = "feedback"
	// InterventionStop ends the debate at the next role boundary.
	InterventionStop InterventionKind = "stop"
)

// InterventionStatus tracks whether a queued command has been consumed.
type InterventionStatus string

const (
	// InterventionPending means the command has not been applied yet.
	InterventionPending InterventionStatus = "pending"
	// InterventionApplied means the command was consumed exactly once.
	InterventionApplied InterventionStatus = "applied"
)

// Intervention is a pending command targeted at a debate. Created by an
// external caller, consumed exactly once by the scheduler at the next role
// boundary.
type Intervention struct {
	ID        int64              `json:"id"`
	DebateID  string             `json:"debate_id"`
	Kind      InterventionKind   `json:"kind"`
	Message   string             `json:"message,omitempty"`
	Status    InterventionStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// ValidateIntervention rejects malformed commands at the boundary: unknown
// kinds and feedback without text.
func ValidateIntervention(kind InterventionKind, message string) error {
	switch kind {
	case InterventionFeedback:
		if message == "" {
			return fmt.Errorf("feedback intervention requires a message")
		}
	case InterventionStop:
	default:
		return fmt.Errorf("unknown intervention kind %q", kind)
	}
	return nil
}
