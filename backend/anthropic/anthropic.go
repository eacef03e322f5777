// Package anthropic adapts the Anthropic Messages API to the session-based
// backend.Backend contract. Like the openai adapter it holds each session's
// transcript locally, replaying it on every send.
package anthropic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/hupe1980/debatemesh/backend"
)

// Options configure the Anthropic backend adapter.
type Options struct {
	// Model used when a session config does not name one.
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Compile-time check.
var _ backend.Backend = (*Backend)(nil)

// Backend wraps the Anthropic Messages API behind backend.Backend.
type Backend struct {
	client   *anthropic.Client
	opts     Options
	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu   sync.Mutex
	cfg  backend.SessionConfig
	msgs []backend.Message
}

// New creates a backend using the official client.
func New(optFns ...func(o *Options)) *Backend {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Backend{client: &client, opts: opts, sessions: make(map[string]*session)}
}

// NewFromClient creates a backend from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Backend {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts, sessions: make(map[string]*session)}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// CreateSession implements backend.Backend.
func (b *Backend) CreateSession(_ context.Context, cfg backend.SessionConfig) (string, error) {
	id := "anthropic-" + uuid.NewString()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[id] = &session{cfg: cfg}
	return id, nil
}

// SendMessage implements backend.Backend.
func (b *Backend) SendMessage(ctx context.Context, sessionID, content string) error {
	s, err := b.session(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, backend.Message{Role: "user", Content: content, CreatedAt: time.Now().UTC()})

	params := anthropic.MessageNewParams{
		Model:       b.modelFor(s.cfg),
		Messages:    b.buildMessages(s),
		MaxTokens:   b.opts.MaxTokens,
		Temperature: anthropic.Float(b.opts.Temperature),
	}
	if s.cfg.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: s.cfg.SystemPrompt}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return fmt.Errorf("anthropic api error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}

	s.msgs = append(s.msgs, backend.Message{Role: "assistant", Content: text, CreatedAt: time.Now().UTC()})
	return nil
}

// ListMessages implements backend.Backend.
func (b *Backend) ListMessages(_ context.Context, sessionID string, since int) ([]backend.Message, error) {
	s, err := b.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if since < 0 {
		since = 0
	}
	if since >= len(s.msgs) {
		return []backend.Message{}, nil
	}
	out := make([]backend.Message, len(s.msgs)-since)
	copy(out, s.msgs[since:])
	return out, nil
}

func (b *Backend) session(id string) (*session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.sessions[id]
	if !ok {
		return nil, backend.ErrSessionNotFound
	}
	return s, nil
}

func (b *Backend) modelFor(cfg backend.SessionConfig) anthropic.Model {
	if cfg.Model != "" {
		return anthropic.Model(cfg.Model)
	}
	return b.opts.Model
}

// buildMessages converts the session transcript into Messages API params.
// Caller holds the session lock.
func (b *Backend) buildMessages(s *session) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(s.msgs))
	for _, m := range s.msgs {
		switch m.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return messages
}
