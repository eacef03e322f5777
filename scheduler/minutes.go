package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/debatemesh/core"
)

const defaultRolePrompt = "You are %s in a small software team. Answer only in your role, stay concise and concrete, and build on what the other participants said."

// composeSystemPrompt wraps the role's own prompt with the run-wide
// instructions and rules so every participant shares the same framing.
func composeSystemPrompt(role core.Role, req core.StartRequest) string {
	var b strings.Builder
	b.WriteString("GLOBAL TABLE CONTEXT:\n")
	if strings.TrimSpace(req.Instructions) != "" {
		b.WriteString("- Global instructions for this run: ")
		b.WriteString(strings.TrimSpace(req.Instructions))
		b.WriteString("\n")
	}
	if len(req.Rules) > 0 {
		b.WriteString("- Mandatory global rules:\n")
		for i, rule := range req.Rules {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, strings.TrimSpace(rule))
		}
	}
	fmt.Fprintf(&b, "- Current participant: %s\n", role.Name)
	b.WriteString("- Stay in role for the whole debate and never speak for other participants.\n\n")
	b.WriteString("INSTRUCTIONS FOR THE ROLE:\n")
	if strings.TrimSpace(role.SystemPrompt) != "" {
		b.WriteString(role.SystemPrompt)
	} else {
		fmt.Fprintf(&b, defaultRolePrompt, role.Name)
	}
	return b.String()
}

// produceMinutes resolves the minutes mode into a text and its provenance.
// Programmatic mode never touches the backend; the other modes ask a role
// first and degrade to the deterministic build when the turn fails.
func (s *Scheduler) produceMinutes(ctx context.Context, r *run) (string, core.Provenance) {
	if r.d.MinutesMode == core.MinutesProgrammatic {
		return buildMinutes(r), core.ProvenanceProgrammatic
	}

	text, err := s.agentMinutes(ctx, r)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, core.ProvenanceAgent
	}
	if err != nil {
		s.opts.Logger.Warn("agent minutes failed, building programmatic minutes",
			"debate_id", r.d.ID, "error", err.Error())
	}
	return buildMinutes(r), core.ProvenanceProgrammaticFallback
}

// agentMinutes asks the configured minutes role (default: first role of the
// sequence) to write the closing summary on its existing session.
func (s *Scheduler) agentMinutes(ctx context.Context, r *run) (string, error) {
	name := s.opts.MinutesRole
	if name == "" && len(r.req.Sequence) > 0 {
		name = r.req.Sequence[0]
	}
	role, ok := r.roster[name]
	if !ok {
		return "", fmt.Errorf("minutes role %q not in roster", name)
	}

	prompt := fmt.Sprintf(
		"The debate is over. Write the final minutes: the task, the key points each participant made, open disagreements and the concluding recommendation. Be complete but compact.\n\nTask: %s\n\nFinal shared context:\n%s",
		r.d.Task, core.ClipText(r.context, 6000),
	)
	return s.performTurn(ctx, r, role, prompt)
}

// buildMinutes deterministically summarizes the recorded run: headline
// metadata, a clipped key point per successful turn and the conductor's
// interventions. It needs no backend and cannot fail.
func buildMinutes(r *run) string {
	var b strings.Builder
	b.WriteString("FINAL DEBATE MINUTES\n\n")
	fmt.Fprintf(&b, "Task: %s\n", r.d.Task)
	fmt.Fprintf(&b, "Status: %s\n", r.d.Status)
	if r.d.Reason != "" {
		fmt.Fprintf(&b, "Close reason: %s\n", r.d.Reason)
	}
	fmt.Fprintf(&b, "Rounds with responses: %d\n", r.d.Rounds)
	fmt.Fprintf(&b, "Estimated cost EUR: %.4f\n", r.tracker.CostEUR())

	b.WriteString("\nKey points per turn:\n")
	responses := 0
	for _, turn := range r.turns {
		if turn.Response == "" {
			continue
		}
		responses++
		fmt.Fprintf(&b, "- %s: %s\n", turn.Role, core.ClipText(oneLine(turn.Response), 280))
	}
	if responses == 0 {
		b.WriteString("- No responses recorded.\n")
	}

	b.WriteString("\nConductor interventions:\n")
	if len(r.chief) == 0 {
		b.WriteString("- No conductor interventions.\n")
	}
	for _, note := range r.chief {
		if note.feedback != "" {
			fmt.Fprintf(&b, "- %s: %s\n", note.action, core.ClipText(oneLine(note.feedback), 180))
		} else {
			fmt.Fprintf(&b, "- %s\n", note.action)
		}
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
