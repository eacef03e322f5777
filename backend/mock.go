package backend

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Responder computes a canned assistant reply for a mock session. The session
// config identifies which role's session is answering.
type Responder func(cfg SessionConfig, prompt string) (string, error)

// MockBackend is a lightweight in-memory Backend useful for tests and
// examples. Responses are computed synchronously inside SendMessage by the
// configured Responder (default: an echo). Sessions can be invalidated to
// exercise stale-handle recovery.
type MockBackend struct {
	mu        sync.Mutex
	sessions  map[string]*mockSession
	respond   Responder
	createErr error
	seq       int
}

type mockSession struct {
	cfg  SessionConfig
	msgs []Message
	gone bool
}

// NewMockBackend constructs a MockBackend with an echo responder.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		sessions: make(map[string]*mockSession),
		respond: func(_ SessionConfig, prompt string) (string, error) {
			return "echo: " + prompt, nil
		},
	}
}

// SetResponder replaces the canned response function. The responder may sleep
// to simulate latency or return an error to simulate a backend failure.
func (b *MockBackend) SetResponder(fn Responder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.respond = fn
}

// FailCreate makes subsequent CreateSession calls return err (nil restores
// normal behavior).
func (b *MockBackend) FailCreate(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createErr = err
}

// Invalidate marks a session as gone; further operations on it return
// ErrSessionNotFound.
func (b *MockBackend) Invalidate(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[sessionID]; ok {
		s.gone = true
	}
}

// SessionCount returns the number of live sessions ever created.
func (b *MockBackend) SessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// CreateSession implements Backend.
func (b *MockBackend) CreateSession(_ context.Context, cfg SessionConfig) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return "", b.createErr
	}
	b.seq++
	id := fmt.Sprintf("mock-session-%d", b.seq)
	b.sessions[id] = &mockSession{cfg: cfg}
	return id, nil
}

// SendMessage implements Backend. The user message and the responder's
// assistant reply are both appended before returning; a responder error
// leaves only the user message in the history.
func (b *MockBackend) SendMessage(_ context.Context, sessionID, content string) error {
	b.mu.Lock()
	s, ok := b.sessions[sessionID]
	if !ok || s.gone {
		b.mu.Unlock()
		return ErrSessionNotFound
	}
	cfg := s.cfg
	respond := b.respond
	s.msgs = append(s.msgs, Message{Role: "user", Content: content, CreatedAt: time.Now().UTC()})
	b.mu.Unlock()

	// Responder runs unlocked so it may sleep without serializing sessions.
	reply, err := respond(cfg, content)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s.gone {
		return ErrSessionNotFound
	}
	s.msgs = append(s.msgs, Message{Role: "assistant", Content: reply, CreatedAt: time.Now().UTC()})
	return nil
}

// Compile-time check.
var _ Backend = (*MockBackend)(nil)

// ListMessages implements Backend.
func (b *MockBackend) ListMessages(_ context.Context, sessionID string, since int) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok || s.gone {
		return nil, ErrSessionNotFound
	}
	if since < 0 {
		since = 0
	}
	if since >= len(s.msgs) {
		return []Message{}, nil
	}
	out := make([]Message, len(s.msgs)-since)
	copy(out, s.msgs[since:])
	return out, nil
}
