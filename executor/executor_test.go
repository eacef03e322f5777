package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/debatemesh/backend"
)

func fastOptions(o *Options) {
	o.MaxWait = 500 * time.Millisecond
	o.PollInterval = 5 * time.Millisecond
}

func TestExecutorExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the assistant response", func(t *testing.T) {
		b := backend.NewMockBackend()
		sessionID, err := b.CreateSession(ctx, backend.SessionConfig{})
		require.NoError(t, err)

		exec := New(b, fastOptions)
		response, err := exec.Execute(ctx, sessionID, "state your position")
		require.NoError(t, err)
		assert.Equal(t, "echo: state your position", response)
	})

	t.Run("never returns a response from before the send", func(t *testing.T) {
		b := backend.NewMockBackend()
		sessionID, err := b.CreateSession(ctx, backend.SessionConfig{})
		require.NoError(t, err)

		exec := New(b, fastOptions)

		// seed history with an earlier exchange
		_, err = exec.Execute(ctx, sessionID, "first")
		require.NoError(t, err)

		response, err := exec.Execute(ctx, sessionID, "second")
		require.NoError(t, err)
		assert.Equal(t, "echo: second", response)
	})

	t.Run("unknown session fails the send", func(t *testing.T) {
		b := backend.NewMockBackend()
		exec := New(b, fastOptions)

		_, err := exec.Execute(ctx, "no-such-session", "hello")
		require.Error(t, err)
		assert.ErrorIs(t, err, backend.ErrSessionNotFound)
	})
}

// silentBackend accepts messages but never produces an assistant reply.
type silentBackend struct {
	sent []string
}

func (s *silentBackend) CreateSession(context.Context, backend.SessionConfig) (string, error) {
	return "silent-session", nil
}

func (s *silentBackend) SendMessage(_ context.Context, _ string, content string) error {
	s.sent = append(s.sent, content)
	return nil
}

func (s *silentBackend) ListMessages(context.Context, string, int) ([]backend.Message, error) {
	return []backend.Message{}, nil
}

func TestExecutorTimeout(t *testing.T) {
	b := &silentBackend{}
	exec := New(b, func(o *Options) {
		o.MaxWait = 30 * time.Millisecond
		o.PollInterval = 5 * time.Millisecond
	})

	_, err := exec.Execute(context.Background(), "silent-session", "anyone there?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Len(t, b.sent, 1)
}

func TestExecutorContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := New(&silentBackend{}, func(o *Options) {
		o.MaxWait = time.Second
		o.PollInterval = 5 * time.Millisecond
	})

	_, err := exec.Execute(ctx, "silent-session", "hello")
	assert.ErrorIs(t, err, context.Canceled)
}
