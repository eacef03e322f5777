package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a debate. Transitions are monotonic:
// running is entered exactly once and the three terminal states are mutually
// exclusive.
type Status string

const (
	// StatusPending means the debate has been accepted but not started.
	StatusPending Status = "pending"
	// StatusRunning means the scheduler is driving rounds.
	StatusRunning Status = "running"
	// StatusCompleted means the debate reached a normal termination path
	// (sequence exhausted, round ceiling, budget ceiling).
	StatusCompleted Status = "completed"
	// StatusStopped means a stop intervention ended the debate early.
	StatusStopped Status = "stopped"
	// StatusFailed means an unrecoverable error ended the debate.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is one of the final states.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusFailed
}

// MinutesMode selects how the final minutes of a debate are produced.
type MinutesMode string

const (
	// MinutesAuto attempts agent-authored minutes and falls back to the
	// programmatic builder on failure.
	MinutesAuto MinutesMode = "auto"
	// MinutesAgent forces agent-authored minutes; a failure is still
	// recovered by the programmatic builder but tagged as a fallback.
	MinutesAgent MinutesMode = "agent"
	// MinutesProgrammatic always builds deterministic minutes without an
	// extra backend call.
	MinutesProgrammatic MinutesMode = "programmatic"
)

// Provenance identifies how a minutes record was produced.
type Provenance string

const (
	// ProvenanceAgent marks minutes authored by a backend role.
	ProvenanceAgent Provenance = "agent"
	// ProvenanceProgrammatic marks minutes built deterministically by request.
	ProvenanceProgrammatic Provenance = "programmatic"
	// ProvenanceProgrammaticFallback marks deterministic minutes produced
	// because the agent-authored attempt failed.
	ProvenanceProgrammaticFallback Provenance = "programmatic_fallback"
)

// Role is one named participant in a debate. Roles are resolved once at
// debate start and are immutable for the debate's lifetime; the session
// handle bound to a role lives in the registry, not here.
type Role struct {
	Name         string `json:"name"`
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// Turn is one role's contribution within one round. Immutable once recorded.
type Turn struct {
	Role      string    `json:"role"`
	Round     int       `json:"round"`
	Context   string    `json:"context"`
	Response  string    `json:"response,omitempty"`
	Error     string    `json:"error,omitempty"`
	CostEUR   float64   `json:"cost_eur"`
	Timestamp time.Time `json:"timestamp"`
}

// Debate is the unit of work driven by the scheduler. It is mutated only by
// the scheduler and persisted through a MemoryStore.
type Debate struct {
	ID                string     `json:"debate_id"`
	Task              string     `json:"task"`
	Status            Status     `json:"status"`
	Reason            string     `json:"reason,omitempty"`
	Error             string     `json:"error,omitempty"`
	Roles             []Role     `json:"roles"`
	Sequence          []string   `json:"sequence"`
	ParallelGroups    [][]string `json:"parallel_groups,omitempty"`
	Rounds            int        `json:"rounds"`
	CostEUR           float64    `json:"cost_eur"`
	Turns             []Turn     `json:"turns,omitempty"`
	Minutes           string     `json:"final_minutes,omitempty"`
	MinutesProvenance Provenance `json:"minutes_provenance,omitempty"`
	MinutesMode       MinutesMode `json:"minutes_mode,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	StartedAt         time.Time  `json:"started_at,omitempty"`
	FinishedAt        time.Time  `json:"finished_at,omitempty"`
}

// RoleByName returns the resolved role record for a name.
func (d *Debate) RoleByName(name string) (Role, bool) {
	for _, r := range d.Roles {
		if r.Name == name {
			return r, true
		}
	}
	return Role{}, false
}

// StartRequest is the caller-supplied description of a debate: the task, the
// role roster, the ordering plan and global steering text composed into every
// role's system prompt.
type StartRequest struct {
	Task           string      `json:"task"`
	Roles          []Role      `json:"roles"`
	Sequence       []string    `json:"sequence"`
	ParallelGroups [][]string  `json:"parallel_groups,omitempty"`
	Instructions   string      `json:"instructions,omitempty"`
	Rules          []string    `json:"rules,omitempty"`
	MinutesMode    MinutesMode `json:"minutes_mode,omitempty"`
}

// Validate checks the request for structural problems: empty task, empty or
// unknown sequence entries, duplicate role names.
func (r StartRequest) Validate() error {
	if r.Task == "" {
		return fmt.Errorf("task must not be empty")
	}
	if len(r.Sequence) == 0 {
		return fmt.Errorf("sequence must not be empty")
	}
	seen := map[string]bool{}
	for _, role := range r.Roles {
		if role.Name == "" {
			return fmt.Errorf("role name must not be empty")
		}
		if seen[role.Name] {
			return fmt.Errorf("duplicate role %q", role.Name)
		}
		seen[role.Name] = true
	}
	for _, name := range r.Sequence {
		if !seen[name] {
			return fmt.Errorf("sequence references unknown role %q", name)
		}
	}
	for _, group := range r.ParallelGroups {
		for _, name := range group {
			if !seen[name] {
				return fmt.Errorf("parallel group references unknown role %q", name)
			}
		}
	}
	switch r.MinutesMode {
	case "", MinutesAuto, MinutesAgent, MinutesProgrammatic:
	default:
		return fmt.Errorf("unknown minutes mode %q", r.MinutesMode)
	}
	return nil
}

// NormalizeRoles deduplicates a role name list preserving first-seen order
// and dropping empty entries.
func NormalizeRoles(names []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// NewID generates a new unique identifier for events.
func NewID() string { return uuid.NewString() }

// NewDebateID generates a unique debate identifier.
func NewDebateID() string { return "debate-" + uuid.NewString() }
