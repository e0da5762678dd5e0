// Package logging provides structured JSON logging with trace ID support
// for the analytics engine.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger is the structured logging interface shared by every component.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})

	// Context-aware logging that picks up trace IDs from the request context
	DebugContext(ctx context.Context, msg string, fields ...interface{})
	InfoContext(ctx context.Context, msg string, fields ...interface{})
	WarnContext(ctx context.Context, msg string, fields ...interface{})
	ErrorContext(ctx context.Context, msg string, fields ...interface{})

	WithComponent(component string) Logger
	WithTraceID(traceID string) Logger
}

// Level represents logging severity levels
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts a level name to a Level, defaulting to info.
func ParseLevel(name string) Level {
	switch strings.ToLower(name) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Entry is the wire shape of a single log line.
type Entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// contextKey is the private type for context values owned by this package.
type contextKey string

const traceIDKey contextKey = "trace_id"

// JSONLogger writes one JSON entry per line to the configured writer.
type JSONLogger struct {
	level     Level
	component string
	traceID   string
	out       io.Writer
	mu        *sync.Mutex
}

// New creates a JSON logger writing to stdout.
func New(level Level) Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter creates a JSON logger writing to the given writer.
func NewWithWriter(level Level, out io.Writer) Logger {
	return &JSONLogger{
		level: level,
		out:   out,
		mu:    &sync.Mutex{},
	}
}

// WithComponent returns a child logger tagged with a component name.
func (l *JSONLogger) WithComponent(component string) Logger {
	clone := *l
	clone.component = component
	return &clone
}

// WithTraceID returns a child logger carrying a fixed trace ID.
func (l *JSONLogger) WithTraceID(traceID string) Logger {
	clone := *l
	clone.traceID = traceID
	return &clone
}

func (l *JSONLogger) Debug(msg string, fields ...interface{}) {
	l.log(LevelDebug, "", msg, fields...)
}

func (l *JSONLogger) Info(msg string, fields ...interface{}) {
	l.log(LevelInfo, "", msg, fields...)
}

func (l *JSONLogger) Warn(msg string, fields ...interface{}) {
	l.log(LevelWarn, "", msg, fields...)
}

func (l *JSONLogger) Error(msg string, fields ...interface{}) {
	l.log(LevelError, "", msg, fields...)
}

func (l *JSONLogger) DebugContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(LevelDebug, TraceID(ctx), msg, fields...)
}

func (l *JSONLogger) InfoContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(LevelInfo, TraceID(ctx), msg, fields...)
}

func (l *JSONLogger) WarnContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(LevelWarn, TraceID(ctx), msg, fields...)
}

func (l *JSONLogger) ErrorContext(ctx context.Context, msg string, fields ...interface{}) {
	l.log(LevelError, TraceID(ctx), msg, fields...)
}

func (l *JSONLogger) log(level Level, contextTraceID, msg string, fields ...interface{}) {
	if level < l.level {
		return
	}

	// Context trace ID wins over the logger's own
	traceID := l.traceID
	if contextTraceID != "" {
		traceID = contextTraceID
	}

	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		Component: l.component,
		TraceID:   traceID,
		Fields:    pairFields(fields),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: marshal entry: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))
}

// pairFields converts a variadic key/value list into a field map. Odd
// trailing values are kept under a positional key rather than dropped.
func pairFields(fields []interface{}) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]interface{}, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			m[fmt.Sprintf("%v", fields[i])] = fields[i+1]
		} else {
			m[fmt.Sprintf("field_%d", i)] = fields[i]
		}
	}
	return m
}

// NewTraceID generates a fresh trace ID.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTrace stores a trace ID in the context, generating one if empty.
func WithTrace(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = NewTraceID()
	}
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace ID from the context, if any.
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}
