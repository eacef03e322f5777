// Package opencode implements backend.Backend against an OpenCode-style
// session server: POST /sessions creates a session, POST
// /sessions/{id}/messages appends a user message and GET
// /sessions/{id}/messages returns the full ordered history. Responses are
// generated server-side and show up in the history asynchronously.
package opencode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/debatemesh/backend"
)

// Options configure the OpenCode client.
type Options struct {
	// HTTPClient overrides the default client (timeouts, transport).
	HTTPClient *http.Client
	// RequestTimeout bounds each individual request.
	RequestTimeout time.Duration
}

// Compile-time check.
var _ backend.Backend = (*Client)(nil)

// Client talks to one OpenCode server.
type Client struct {
	baseURL string
	client  *http.Client
	opts    Options
}

// New creates a client for the server at baseURL.
func New(baseURL string, optFns ...func(o *Options)) *Client {
	opts := Options{
		RequestTimeout: 20 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), client: client, opts: opts}
}

// CreateSession implements backend.Backend.
func (c *Client) CreateSession(ctx context.Context, cfg backend.SessionConfig) (string, error) {
	payload := map[string]string{}
	if cfg.Model != "" {
		payload["model"] = cfg.Model
	}
	if cfg.SystemPrompt != "" {
		payload["system_prompt"] = cfg.SystemPrompt
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/sessions", payload, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("opencode: create session returned no id")
	}
	return created.ID, nil
}

// SendMessage implements backend.Backend.
func (c *Client) SendMessage(ctx context.Context, sessionID, content string) error {
	payload := map[string]string{"role": "user", "content": content}
	return c.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/messages", payload, nil)
}

// ListMessages implements backend.Backend. The server returns the full
// history; the since cursor is applied client-side.
func (c *Client) ListMessages(ctx context.Context, sessionID string, since int) ([]backend.Message, error) {
	var msgs []backend.Message
	if err := c.do(ctx, http.MethodGet, "/sessions/"+sessionID+"/messages", nil, &msgs); err != nil {
		return nil, err
	}
	if since < 0 {
		since = 0
	}
	if since >= len(msgs) {
		return []backend.Message{}, nil
	}
	return msgs[since:], nil
}

// do performs one request, decoding a JSON response into out when non-nil.
// 404 and 410 map to backend.ErrSessionNotFound so the registry can recover.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if c.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("opencode: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("opencode: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("opencode: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("opencode: %s %s: status %d: %w", method, path, resp.StatusCode, backend.ErrSessionNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("opencode: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("opencode: decode response: %w", err)
	}
	return nil
}
