// Package failurenotifier mirrors failure notifications to external sinks.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/target/promptopt-client/internal/domain/notification"
	"github.com/target/promptopt-client/internal/ports"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink ports.NotificationSink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
}

// Service dispatches failure notifications to all registered sinks.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
}

// NewService constructs a failure notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = entry.Sink.Name()
		}
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{
			Name: name,
			Sink: entry.Sink,
		})
	}

	return &Service{
		logger: logger.With("component", "failure_notifier"),
		sinks:  sinks,
	}
}

// Relevant reports whether n is mirrored. Only error and warning notifications leave the process.
func Relevant(n notification.Notification) bool {
	return n.Type == notification.TypeError || n.Type == notification.TypeWarning
}

// Notify fans n out to all sinks and waits for them. Delivery failures are logged only.
func (s *Service) Notify(ctx context.Context, n notification.Notification) {
	if len(s.sinks) == 0 {
		return
	}

	if !Relevant(n) {
		s.logger.DebugContext(ctx, "skipping notification",
			"notification_id", n.ID,
			"type", n.Type,
		)
		return
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.Send(ctx, n); err != nil {
				s.logger.Error("failure notifier delivery error",
					"sink", entry.Name,
					"notification_id", n.ID,
					"error_kind", n.ErrorKind,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}
