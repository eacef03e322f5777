package compact

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/debatemesh/backend"
	"github.com/hupe1980/debatemesh/executor"
	"github.com/hupe1980/debatemesh/registry"
)

func newCompactor(b *backend.MockBackend, maxChars int) *Compactor {
	reg := registry.New(b)
	exec := executor.New(b, func(o *executor.Options) {
		o.MaxWait = time.Second
		o.PollInterval = 5 * time.Millisecond
	})
	return New(reg, exec, func(o *Options) { o.MaxChars = maxChars })
}

func TestCompactorCompact(t *testing.T) {
	ctx := context.Background()

	t.Run("summarizes via the backend and appends the marker", func(t *testing.T) {
		b := backend.NewMockBackend()
		b.SetResponder(func(_ backend.SessionConfig, _ string) (string, error) {
			return "short summary", nil
		})
		c := newCompactor(b, 400)

		transcript := strings.Repeat("argument. ", 100)
		res, err := c.Compact(ctx, transcript)
		require.NoError(t, err)

		assert.False(t, res.Refused)
		assert.False(t, res.Truncated)
		assert.Contains(t, res.Text, "short summary")
		assert.True(t, strings.HasSuffix(res.Text, Marker))
		assert.LessOrEqual(t, len(res.Text), 400)
	})

	t.Run("refuses input that already carries the marker", func(t *testing.T) {
		b := backend.NewMockBackend()
		c := newCompactor(b, 400)

		already := "earlier summary\n" + Marker
		res, err := c.Compact(ctx, already)
		require.NoError(t, err)

		assert.True(t, res.Refused)
		assert.Equal(t, already, res.Text)
		assert.Equal(t, 0, b.SessionCount(), "refusal must not touch the backend")
	})

	t.Run("falls back to truncation when summarization fails", func(t *testing.T) {
		b := backend.NewMockBackend()
		b.SetResponder(func(_ backend.SessionConfig, _ string) (string, error) {
			return "", errors.New("model overloaded")
		})
		c := newCompactor(b, 400)

		transcript := strings.Repeat("argument. ", 200)
		res, err := c.Compact(ctx, transcript)
		require.NoError(t, err)

		assert.True(t, res.Truncated)
		assert.True(t, strings.HasSuffix(res.Text, Marker))
		assert.LessOrEqual(t, len(res.Text), 400)
	})

	t.Run("never expands the input", func(t *testing.T) {
		b := backend.NewMockBackend()
		b.SetResponder(func(_ backend.SessionConfig, prompt string) (string, error) {
			// a summarizer that rambles longer than its input
			return prompt + prompt, nil
		})
		c := newCompactor(b, 400)

		transcript := strings.Repeat("point. ", 100)
		res, err := c.Compact(ctx, transcript)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(res.Text), 400)
		assert.LessOrEqual(t, len(res.Text), len(transcript))
	})

	t.Run("errors when the ceiling cannot even hold the marker", func(t *testing.T) {
		b := backend.NewMockBackend()
		c := newCompactor(b, 10)

		_, err := c.Compact(ctx, strings.Repeat("x", 1000))
		assert.ErrorIs(t, err, ErrExhausted)
	})
}

func TestTruncate(t *testing.T) {
	t.Run("keeps head and tail", func(t *testing.T) {
		s := "HEAD" + strings.Repeat("m", 1000) + "TAIL"
		out := Truncate(s, 100)

		assert.LessOrEqual(t, len(out), 100)
		assert.True(t, strings.HasPrefix(out, "HEAD"))
		assert.True(t, strings.HasSuffix(out, "TAIL"))
		assert.Contains(t, out, "\n...\n")
	})

	t.Run("short input passes through", func(t *testing.T) {
		assert.Equal(t, "short", Truncate("short", 100))
	})

	t.Run("non-positive max yields empty", func(t *testing.T) {
		assert.Equal(t, "", Truncate("anything", 0))
	})
}
