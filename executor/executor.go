// Package executor performs one role's turn: it sends the accumulated
// context to the role's session and polls the session history until a new
// assistant message appears, a wall-clock timeout elapses or the backend
// reports an error.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/debatemesh/backend"
	"github.com/hupe1980/debatemesh/logging"
)

// ErrTimeout is returned when no response appeared before the deadline.
var ErrTimeout = errors.New("executor: no response before deadline")

// Options configure an Executor.
type Options struct {
	// MaxWait bounds the wall-clock wait for one response.
	MaxWait time.Duration
	// PollInterval is the delay between history reads while waiting.
	PollInterval time.Duration
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Executor drives single turns against a backend. Safe for concurrent use;
// concurrently executing turns address distinct sessions.
type Executor struct {
	backend backend.Backend
	opts    Options
}

// New constructs an Executor with optional overrides.
func New(b backend.Backend, optFns ...func(o *Options)) *Executor {
	opts := Options{
		MaxWait:      60 * time.Second,
		PollInterval: 1500 * time.Millisecond,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{backend: b, opts: opts}
}

// Execute sends content to the session and returns the first assistant
// message that appears after the send. The message history length is read
// before sending so responses already present can never be mistaken for the
// new one, even when a stale response arrives late.
func (e *Executor) Execute(ctx context.Context, sessionID, content string) (string, error) {
	baseline, err := e.backend.ListMessages(ctx, sessionID, 0)
	if err != nil {
		return "", fmt.Errorf("read baseline history: %w", err)
	}
	cursor := len(baseline)

	if err := e.backend.SendMessage(ctx, sessionID, content); err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	deadline := time.Now().Add(e.opts.MaxWait)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(e.opts.PollInterval):
		}

		msgs, err := e.backend.ListMessages(ctx, sessionID, cursor)
		if err != nil {
			return "", fmt.Errorf("poll history: %w", err)
		}
		for _, m := range msgs {
			if m.Role != "assistant" {
				continue
			}
			e.opts.Logger.Debug("turn response received", "session_id", sessionID, "chars", len(m.Content))
			return strings.TrimSpace(m.Content), nil
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("no response within %s: %w", e.opts.MaxWait, ErrTimeout)
		}
	}
}
