// Package openai adapts the OpenAI Chat Completions API to the session-based
// backend.Backend contract. The Chat Completions API is stateless, so the
// adapter keeps each session's transcript locally and replays it on every
// send; ListMessages serves from the local transcript.
package openai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"

	"github.com/hupe1980/debatemesh/backend"
)

// Options configure the OpenAI backend adapter.
type Options struct {
	// Model used when a session config does not name one.
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Compile-time check.
var _ backend.Backend = (*Backend)(nil)

// Backend wraps the OpenAI Chat Completions API behind backend.Backend.
type Backend struct {
	client   *openai.Client
	opts     Options
	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu   sync.Mutex
	cfg  backend.SessionConfig
	msgs []backend.Message
}

// New creates a backend using the default OpenAI client (API key from the
// environment).
func New(optFns ...func(o *Options)) *Backend {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a backend from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts, sessions: make(map[string]*session)}
}

// CreateSession implements backend.Backend.
func (b *Backend) CreateSession(_ context.Context, cfg backend.SessionConfig) (string, error) {
	id := "oai-" + uuid.NewString()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[id] = &session{cfg: cfg}
	return id, nil
}

// SendMessage implements backend.Backend. The user message is appended first
// so a failed completion still leaves the send on record; the assistant reply
// is appended once the API returns.
func (b *Backend) SendMessage(ctx context.Context, sessionID, content string) error {
	s, err := b.session(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, backend.Message{Role: "user", Content: content, CreatedAt: time.Now().UTC()})

	params := openai.ChatCompletionNewParams{
		Messages:            b.buildMessages(s),
		Model:               b.modelFor(s.cfg),
		Temperature:         openai.Float(b.opts.Temperature),
		MaxCompletionTokens: openai.Int(b.opts.MaxCompletionTokens),
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("openai api error: no choices returned")
	}

	s.msgs = append(s.msgs, backend.Message{
		Role:      "assistant",
		Content:   resp.Choices[0].Message.Content,
		CreatedAt: time.Now().UTC(),
	})
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

func (b *Backend) modelFor(cfg backend.SessionConfig) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return b.opts.Model
}

// buildMessages converts the session transcript into chat messages, with the
// system prompt first. Caller holds the session lock.
func (b *Backend) buildMessages(s *session) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(s.msgs)+1)
	if s.cfg.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(s.cfg.SystemPrompt))
	}
	for _, m := range s.msgs {
		switch m.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	return messages
}
