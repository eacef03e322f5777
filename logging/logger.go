// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer DebateLogger with contextual
// helpers (debate, component) and domain specific logging helpers for turns
// and rounds.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger defines the minimal logging interface for DebateMesh.
// This allows users to provide their own logger implementation or use the
// built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// NewJSONLogger creates a Logger emitting JSON records to w at the given level.
func NewJSONLogger(w io.Writer, level slog.Level) Logger {
	if w == nil {
		w = os.Stdout
	}
	return NewSlogAdapter(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// NoOpLogger discards all log messages. Useful for testing or when logging is
// disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// DebateLogger wraps slog.Logger adding contextual cloning helpers and domain
// convenience methods. It is cheap to copy via the With* methods.
type DebateLogger struct {
	logger    *slog.Logger
	component string
	debateID  string
}

// NewDebateLogger builds a DebateLogger over an slog handler (JSON to stdout
// when logger is nil).
func NewDebateLogger(logger *slog.Logger) *DebateLogger {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return &DebateLogger{logger: logger}
}

// WithComponent sets the logical component (scheduler, registry, executor...).
func (l *DebateLogger) WithComponent(c string) *DebateLogger {
	nl := *l
	nl.component = c
	return &nl
}

// WithDebate attaches a debate identifier to every entry.
func (l *DebateLogger) WithDebate(debateID string) *DebateLogger {
	nl := *l
	nl.debateID = debateID
	return &nl
}

func (l *DebateLogger) attrs(extra ...slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(extra)+2)
	if l.component != "" {
		out = append(out, slog.String("component", l.component))
	}
	if l.debateID != "" {
		out = append(out, slog.String("debate_id", l.debateID))
	}
	return append(out, extra...)
}

func (l *DebateLogger) log(level slog.Level, msg string, extra ...slog.Attr) {
	l.logger.LogAttrs(context.Background(), level, msg, l.attrs(extra...)...)
}

// Debug logs at debug level.
func (l *DebateLogger) Debug(msg string, args ...any) {
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, msg, append(l.attrs(), slog.Group("args", args...))...)
}

// Info logs at info level.
func (l *DebateLogger) Info(msg string, args ...any) {
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, msg, append(l.attrs(), slog.Group("args", args...))...)
}

// Warn logs at warn level.
func (l *DebateLogger) Warn(msg string, args ...any) {
	l.logger.LogAttrs(context.Background(), slog.LevelWarn, msg, append(l.attrs(), slog.Group("args", args...))...)
}

// Error logs at error level.
func (l *DebateLogger) Error(msg string, args ...any) {
	l.logger.LogAttrs(context.Background(), slog.LevelError, msg, append(l.attrs(), slog.Group("args", args...))...)
}

// LogTurn records execution details for one role's turn.
func (l *DebateLogger) LogTurn(role string, round int, dur time.Duration, err error) {
	attrs := []slog.Attr{
		slog.String("role", role),
		slog.Int("round", round),
		slog.Duration("duration", dur),
		slog.Bool("success", err == nil),
	}
	level := slog.LevelInfo
	msg := "Turn completed"
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelError
		msg = "Turn failed"
	}
	l.log(level, msg, attrs...)
}

// LogRound records aggregate round metrics.
func (l *DebateLogger) LogRound(round int, role string, contextChars int) {
	l.log(slog.LevelInfo, "Round started",
		slog.Int("round", round),
		slog.String("role", role),
		slog.Int("context_chars", contextChars),
	)
}
