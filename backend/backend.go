// Package backend defines the minimal contract DebateMesh requires from a
// text-generation backend: opaque per-role sessions that accept messages and
// expose an ordered message history. Provider implementations live in
// subpackages (opencode, openai, anthropic); a MockBackend is provided here
// for tests and examples.
package backend

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound marks a session handle the backend no longer recognizes.
// The registry treats it as stale and recreates the session; any other error
// is propagated as-is.
var ErrSessionNotFound = errors.New("backend: session not found")

// Message is one entry of a session's conversation history.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"` // "user", "assistant", "system"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// SessionConfig describes a session to create: the model serving it and the
// system prompt fixing the participant's role.
type SessionConfig struct {
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// Backend is the request/response surface consumed by the engine. All
// operations are addressed by the opaque session identifier returned from
// CreateSession. Implementations must be safe for concurrent use; sessions
// themselves are never shared across roles, so per-session serialization is
// sufficient.
type Backend interface {
	// CreateSession opens a new conversational session and returns its handle.
	CreateSession(ctx context.Context, cfg SessionConfig) (string, error)

	// SendMessage appends a user message to the session. The assistant
	// response appears in the message history once generated; callers poll
	// ListMessages for it.
	SendMessage(ctx context.Context, sessionID, content string) error

	// ListMessages returns the session history starting at message index
	// since. ListMessages(ctx, id, 0) returns the full history and doubles
	// as the cheap idempotent validation probe.
	ListMessages(ctx context.Context, sessionID string, since int) ([]Message, error)
}
