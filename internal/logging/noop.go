package logging

import "context"

// NoopLogger discards all log output. Used by tests and as a safe default
// when callers do not supply a logger.
type NoopLogger struct{}

// NewNoop creates a logger that discards everything.
func NewNoop() Logger {
	return &NoopLogger{}
}

func (n *NoopLogger) Debug(msg string, fields ...interface{}) {}
func (n *NoopLogger) Info(msg string, fields ...interface{})  {}
func (n *NoopLogger) Warn(msg string, fields ...interface{})  {}
func (n *NoopLogger) Error(msg string, fields ...interface{}) {}

func (n *NoopLogger) DebugContext(ctx context.Context, msg string, fields ...interface{}) {}
func (n *NoopLogger) InfoContext(ctx context.Context, msg string, fields ...interface{})  {}
func (n *NoopLogger) WarnContext(ctx context.Context, msg string, fields ...interface{})  {}
func (n *NoopLogger) ErrorContext(ctx context.Context, msg string, fields ...interface{}) {}

func (n *NoopLogger) WithComponent(component string) Logger { return n }
func (n *NoopLogger) WithTraceID(traceID string) Logger     { return n }
