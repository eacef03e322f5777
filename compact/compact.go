// Package compact bounds the growth of a debate's shared context. When the
// running transcript exceeds a configured ceiling it is replaced by a
// backend-authored summary, or by simple truncation when summarization fails.
// Summaries carry a recognizable marker so a summary is never summarized
// again.
package compact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/executor"
	"github.com/hupe1980/debatemesh/logging"
	"github.com/hupe1980/debatemesh/registry"
)

// Marker tags compactor output. Input already carrying the marker is refused
// rather than compressed again, preventing runaway passes that erase content.
const Marker = "[context auto-summarized]"

// ErrExhausted is returned when even the truncation fallback cannot fit the
// configured ceiling.
var ErrExhausted = errors.New("compact: ceiling too small for any summary")

// Options configure a Compactor.
type Options struct {
	// MaxChars is the target length of compacted output.
	MaxChars int
	// SummarizerRole is the dedicated role whose session authors summaries.
	SummarizerRole core.Role
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Result is the outcome of one compaction pass.
type Result struct {
	Text string
	// Refused is set when the input was already compactor output and was
	// returned unchanged.
	Refused bool
	// Truncated is set when the truncation fallback produced the text.
	Truncated bool
}

// Compactor produces bounded summaries of oversized transcripts.
type Compactor struct {
	reg  *registry.Registry
	exec *executor.Executor
	opts Options
}

// New constructs a Compactor. The registry and executor address the same
// backend the debate runs on; the summarizer gets its own session so role
// transcripts stay untouched.
func New(reg *registry.Registry, exec *executor.Executor, optFns ...func(o *Options)) *Compactor {
	opts := Options{
		MaxChars: 12000,
		SummarizerRole: core.Role{
			Name: "Summarizer",
			SystemPrompt: "You are a professional summarizer. Summarize the text " +
				"keeping key points, decisions and important arguments.",
		},
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Compactor{reg: reg, exec: exec, opts: opts}
}

// Compact returns a bounded version of the transcript. Output always fits
// MaxChars and never exceeds the input length. Already-compacted input is
// returned unchanged with Refused set.
func (c *Compactor) Compact(ctx context.Context, transcript string) (Result, error) {
	if strings.Contains(transcript, Marker) {
		return Result{Text: transcript, Refused: true}, nil
	}
	if c.opts.MaxChars <= len(Marker)+1 {
		return Result{}, fmt.Errorf("max %d chars: %w", c.opts.MaxChars, ErrExhausted)
	}

	summary, err := c.summarize(ctx, transcript)
	if err != nil {
		c.opts.Logger.Warn("summarization failed, falling back to truncation", "error", err.Error())
		return Result{Text: c.withMarker(Truncate(transcript, c.budget())), Truncated: true}, nil
	}

	// A summary longer than the budget (or the input) defeats the purpose;
	// truncate it down rather than failing the round.
	if len(summary) > c.budget() || len(summary) >= len(transcript) {
		summary = Truncate(summary, c.budget())
	}
	return Result{Text: c.withMarker(summary)}, nil
}

func (c *Compactor) summarize(ctx context.Context, transcript string) (string, error) {
	handle, err := c.reg.Acquire(ctx, c.opts.SummarizerRole)
	if err != nil {
		return "", err
	}
	return c.exec.Execute(ctx, handle, transcript)
}

// budget is the character budget left for content once the marker and its
// separating newline are accounted for.
func (c *Compactor) budget() int {
	return c.opts.MaxChars - len(Marker) - 1
}

func (c *Compactor) withMarker(text string) string {
	return text + "\n" + Marker
}

// Truncate shortens s to at most max characters keeping the head and tail of
// the text, which preserves the task statement and the latest exchanges.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	const ellipsis = "\n...\n"
	if max <= len(ellipsis) {
		return s[:max]
	}
	head := (max - len(ellipsis)) * 2 / 3
	tail := max - len(ellipsis) - head
	return s[:head] + ellipsis + s[len(s)-tail:]
}
