// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer StructuredLogger with contextual
// helpers (component, session, run) and domain specific logging helpers for
// capability calls, reasoner calls and research runs.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a case-insensitive level name. Unknown names map to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}

// StructuredLogger writes leveled slog records. Component, session and run
// identifiers are attached with the With* methods, which return copies.
type StructuredLogger struct {
	logger *slog.Logger
}

// LoggerConfig configures construction of a StructuredLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stderr}
}

// NewLogger builds a StructuredLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *StructuredLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	l := &StructuredLogger{logger: slog.New(handler)}
	if cfg.Component != "" {
		return l.WithComponent(cfg.Component)
	}
	return l
}

// NewSlogLogger creates a new StructuredLogger with the given level and format.
func NewSlogLogger(level LogLevel, format string, addSource bool) *StructuredLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent tags entries with the logical component (coordinator,
// worker, api, ...). A later call replaces the tag.
func (l *StructuredLogger) WithComponent(c string) *StructuredLogger {
	return &StructuredLogger{logger: l.logger.With(slog.String("component", c))}
}

// WithSession attaches session and research run identifiers.
func (l *StructuredLogger) WithSession(sessionID, runID string) *StructuredLogger {
	return &StructuredLogger{logger: l.logger.With(slog.String("session_id", sessionID), slog.String("run_id", runID))}
}

// Debug logs at debug level.
func (l *StructuredLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// Info logs at info level.
func (l *StructuredLogger) Info(msg string, args ...any) { l.logger.Info(msg, args...) }

// Warn logs at warn level.
func (l *StructuredLogger) Warn(msg string, args ...any) { l.logger.Warn(msg, args...) }

// Error logs at error level.
func (l *StructuredLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// ForComponent tags l with a component when it is a *StructuredLogger and
// returns other loggers unchanged.
func ForComponent(l Logger, component string) Logger {
	if sl, ok := l.(*StructuredLogger); ok {
		return sl.WithComponent(component)
	}
	return OrNoOp(l)
}

// ForRun attaches session and run identifiers to every entry of l. Loggers
// other than *StructuredLogger receive them as leading key/value pairs.
func ForRun(l Logger, sessionID, runID string) Logger {
	switch v := l.(type) {
	case *StructuredLogger:
		return v.WithSession(sessionID, runID)
	case nil, NoOpLogger:
		return NoOpLogger{}
	default:
		return fieldLogger{next: l, fields: []any{"session_id", sessionID, "run_id", runID}}
	}
}

type fieldLogger struct {
	next   Logger
	fields []any
}

func (f fieldLogger) with(args []any) []any {
	return append(append(make([]any, 0, len(f.fields)+len(args)), f.fields...), args...)
}

func (f fieldLogger) Debug(msg string, args ...any) { f.next.Debug(msg, f.with(args)...) }
func (f fieldLogger) Info(msg string, args ...any)  { f.next.Info(msg, f.with(args)...) }
func (f fieldLogger) Warn(msg string, args ...any)  { f.next.Warn(msg, f.with(args)...) }
func (f fieldLogger) Error(msg string, args ...any) { f.next.Error(msg, f.with(args)...) }

// LogCapabilityCall emits the capability call event.
func LogCapabilityCall(l Logger, capability, action string, attempt int, dur time.Duration, err error) {
	args := []any{"capability", capability, "action", action, "attempt", attempt, "duration_ms", dur.Milliseconds()}
	if err != nil {
		l.Warn("capability.call.failed", append(args, "error", err.Error())...)
		return
	}
	l.Debug("capability.call.completed", args...)
}

// LogReasonerCall emits the reasoner call event.
func LogReasonerCall(l Logger, model string, tokens int, dur time.Duration, err error) {
	args := []any{"model", model, "token_count", tokens, "duration_ms", dur.Milliseconds()}
	if err != nil {
		l.Error("reasoner.call.failed", append(args, "error", err.Error())...)
		return
	}
	l.Debug("reasoner.call.completed", args...)
}

// LogResearchRun emits the research run summary.
func LogResearchRun(l Logger, subject string, sections int, status string, dur time.Duration) {
	l.Info("research.run.completed", "subject", subject, "sections", sections, "overall_status", status, "duration_ms", dur.Milliseconds())
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
