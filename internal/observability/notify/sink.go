// Package notify holds helpers shared by the notification mirror sinks.
package notify

import (
	"context"
	"log/slog"

	"github.com/target/promptopt-client/internal/domain/notification"
	"github.com/target/promptopt-client/internal/ports"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Severity maps a notification onto a sink severity. Server and network failures are critical.
func Severity(n notification.Notification) string {
	switch n.Type {
	case notification.TypeError:
		if n.ErrorKind == "server" || n.ErrorKind == "network" {
			return SeverityCritical
		}
		return SeverityError
	case notification.TypeWarning:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// SinkFunc adapts a function to ports.NotificationSink (useful for tests).
type SinkFunc func(ctx context.Context, n notification.Notification) error

// Name implements ports.NotificationSink.
func (f SinkFunc) Name() string { return "func" }

// Send implements ports.NotificationSink.
func (f SinkFunc) Send(ctx context.Context, n notification.Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

// LogSink writes notifications to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// Name implements ports.NotificationSink.
func (LogSink) Name() string { return "log" }

// Send implements ports.NotificationSink.
func (s LogSink) Send(ctx context.Context, n notification.Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch Severity(n) {
	case SeverityCritical, SeverityError:
		level = slog.LevelError
	case SeverityWarning:
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "notification",
		"id", n.ID,
		"type", n.Type,
		"title", n.Title,
		"message", n.Message,
		"error_kind", n.ErrorKind,
		"status", n.Status,
	)
	return nil
}

var (
	_ ports.NotificationSink = SinkFunc(nil)
	_ ports.NotificationSink = LogSink{}
)
