// Package registry maps debate roles to opaque backend session handles.
// Handles are created lazily, validated with a cheap probe before reuse and
// transparently recreated when the backend no longer recognizes them.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/debatemesh/backend"
	"github.com/hupe1980/debatemesh/core"
	"github.com/hupe1980/debatemesh/logging"
)

// Options configure a Registry.
type Options struct {
	// HandleStore persists role handles between runs. Defaults to in-memory.
	HandleStore core.HandleStore
	// Namespace scopes handle keys, usually the debate ID, so handles are
	// never shared across debates.
	Namespace string
	// Logger receives recovery notices. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Registry acquires and invalidates session handles for roles. Safe for
// concurrent use across roles; each role's handle is owned by that role.
type Registry struct {
	backend backend.Backend
	handles core.HandleStore
	ns      string
	logger  logging.Logger
}

// New constructs a Registry over a backend with optional overrides.
func New(b backend.Backend, optFns ...func(o *Options)) *Registry {
	opts := Options{
		HandleStore: NewInMemoryHandleStore(),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{backend: b, handles: opts.HandleStore, ns: opts.Namespace, logger: opts.Logger}
}

// Acquire returns a valid session handle for the role, reusing a persisted
// handle when it passes the validation probe and creating a fresh session
// otherwise. A creation failure after invalidation is returned to the caller
// rather than retried, to avoid request loops against an unreachable backend.
func (r *Registry) Acquire(ctx context.Context, role core.Role) (string, error) {
	key := r.key(role.Name)

	if handle, ok := r.handles.Get(key); ok {
		valid, err := r.probe(ctx, handle)
		if err != nil {
			return "", fmt.Errorf("validate session for role %s: %w", role.Name, err)
		}
		if valid {
			return handle, nil
		}
		r.logger.Warn("stale session for role, recreating", "role", role.Name, "handle", handle)
		if err := r.handles.Delete(key); err != nil {
			return "", fmt.Errorf("discard stale handle for role %s: %w", role.Name, err)
		}
	}

	handle, err := r.backend.CreateSession(ctx, backend.SessionConfig{
		Model:        role.Model,
		SystemPrompt: role.SystemPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("create session for role %s: %w", role.Name, err)
	}
	if err := r.handles.Put(key, handle); err != nil {
		return "", fmt.Errorf("persist handle for role %s: %w", role.Name, err)
	}
	r.logger.Info("session created", "role", role.Name, "handle", handle)
	return handle, nil
}

// Invalidate discards the persisted handle for a role so the next Acquire
// creates a fresh session.
func (r *Registry) Invalidate(roleName string) error {
	return r.handles.Delete(r.key(roleName))
}

// probe performs the cheap idempotent staleness check: a zero-cursor history
// read. A session-not-found error marks the handle stale; any other error is
// a backend fault and propagates.
func (r *Registry) probe(ctx context.Context, handle string) (bool, error) {
	_, err := r.backend.ListMessages(ctx, handle, 0)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, backend.ErrSessionNotFound) {
		return false, nil
	}
	return false, err
}

func (r *Registry) key(roleName string) string {
	if r.ns == "" {
		return roleName
	}
	return r.ns + "/" + roleName
}
