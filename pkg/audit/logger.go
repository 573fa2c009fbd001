package audit

import (
	"context"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log persists one audit event
	Log(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered events
	Close() error
}

// NoopLogger discards every event. Used in tests and when auditing is
// disabled.
type NoopLogger struct{}

func (NoopLogger) Log(ctx context.Context, event *Event) error { return nil }
func (NoopLogger) Close() error                                { return nil }
