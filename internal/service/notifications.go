package service

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/target/promptopt-client/internal/data"
	"github.com/target/promptopt-client/internal/domain/notification"
	apperrors "github.com/target/promptopt-client/internal/errors"
	"github.com/target/promptopt-client/internal/observability/metrics"
	"github.com/target/promptopt-client/internal/observability/statsd"
	"github.com/target/promptopt-client/internal/ports"
	"github.com/target/promptopt-client/internal/service/failurenotifier"
	"github.com/target/promptopt-client/internal/store"
)

// Loading keys used by the optimizer service.
const (
	LoadingOptimize = "optimize"
	LoadingEvaluate = "evaluate"
	LoadingHistory  = "load"
)

// UIState is everything the notification center publishes to subscribers.
type UIState struct {
	Notifications []notification.Notification
	Loading       map[string]bool
	LastError     *apperrors.APIError
}

// NotificationCenterOptions groups dependencies for NotificationCenter.
type NotificationCenterOptions struct {
	Clock           ports.Clock
	Logger          *slog.Logger
	Metrics         statsd.Sink
	DefaultDuration time.Duration
	// Mirror receives error and warning notifications asynchronously. Optional.
	Mirror *failurenotifier.Service
	NewID  func() string
}

// NotificationCenter owns the transient notification queue. Any component may add
// notifications; only the center removes them, on expiry or on request.
type NotificationCenter struct {
	clock    ports.Clock
	logger   *slog.Logger
	metrics  statsd.Sink
	duration time.Duration
	mirror   *failurenotifier.Service
	newID    func() string

	state *store.Store[UIState]

	timersMu sync.Mutex
	timers   map[string]ports.Timer

	inflight sync.WaitGroup
}

// NewNotificationCenter constructs an empty NotificationCenter.
func NewNotificationCenter(opts NotificationCenterOptions) *NotificationCenter {
	clock := opts.Clock
	if clock == nil {
		clock = data.SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := opts.Metrics
	if sink == nil {
		sink = statsd.Nop{}
	}
	duration := opts.DefaultDuration
	if duration <= 0 {
		duration = notification.DefaultDuration
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &NotificationCenter{
		clock:    clock,
		logger:   logger.With("component", "notification_center"),
		metrics:  sink,
		duration: duration,
		mirror:   opts.Mirror,
		newID:    newID,
		state:    store.New(UIState{Loading: map[string]bool{}}),
		timers:   make(map[string]ports.Timer),
	}
}

// Add enqueues a notification and schedules its removal. A zero duration selects the default;
// a negative duration keeps the notification until it is dismissed.
func (c *NotificationCenter) Add(in notification.Input) notification.Notification {
	duration := in.Duration
	if duration == 0 {
		duration = c.duration
	}
	typ := in.Type
	if typ == "" {
		typ = notification.TypeInfo
	}

	n := notification.Notification{
		ID:        c.newID(),
		Type:      typ,
		Title:     in.Title,
		Message:   in.Message,
		Duration:  duration,
		Timestamp: c.clock.Now(),
		ErrorKind: in.ErrorKind,
		Status:    in.Status,
	}

	next := c.state.Update(func(s UIState) UIState {
		s.Notifications = append(slices.Clone(s.Notifications), n)
		return s
	})
	if !n.Sticky() {
		id := n.ID
		c.timersMu.Lock()
		c.timers[id] = c.clock.AfterFunc(duration, func() { c.expire(id) })
		c.timersMu.Unlock()
	}

	metrics.EmitNotifications(c.metrics, len(next.Notifications))
	c.logger.Debug("notification added", "id", n.ID, "type", n.Type, "title", n.Title)
	c.forward(n)
	return n
}

// Success, Error, Warning and Info are shorthands for Add.
func (c *NotificationCenter) Success(title, message string) notification.Notification {
	return c.Add(notification.Input{Type: notification.TypeSuccess, Title: title, Message: message})
}

func (c *NotificationCenter) Error(title, message string) notification.Notification {
	return c.Add(notification.Input{Type: notification.TypeError, Title: title, Message: message})
}

func (c *NotificationCenter) Warning(title, message string) notification.Notification {
	return c.Add(notification.Input{Type: notification.TypeWarning, Title: title, Message: message})
}

func (c *NotificationCenter) Info(title, message string) notification.Notification {
	return c.Add(notification.Input{Type: notification.TypeInfo, Title: title, Message: message})
}

// Dismiss removes a notification before it expires. It reports whether it was present.
func (c *NotificationCenter) Dismiss(id string) bool {
	c.timersMu.Lock()
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	c.timersMu.Unlock()
	return c.remove(id)
}

// Clear removes every notification and cancels their timers.
func (c *NotificationCenter) Clear() {
	c.timersMu.Lock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.timersMu.Unlock()

	c.state.UpdateIf(func(s UIState) (UIState, bool) {
		if len(s.Notifications) == 0 {
			return s, false
		}
		s.Notifications = nil
		return s, true
	})
	metrics.EmitNotifications(c.metrics, 0)
}

// List returns the visible notifications in insertion order.
func (c *NotificationCenter) List() []notification.Notification {
	return slices.Clone(c.state.Get().Notifications)
}

// State returns the full published state.
func (c *NotificationCenter) State() UIState {
	return c.state.Get()
}

// Subscribe registers fn to receive every committed state and returns an unsubscribe func.
func (c *NotificationCenter) Subscribe(fn func(UIState)) func() {
	return c.state.Subscribe(fn)
}

// SetLastError records the most recent request failure.
func (c *NotificationCenter) SetLastError(err *apperrors.APIError) {
	c.state.Update(func(s UIState) UIState {
		s.LastError = err
		return s
	})
}

// LastError returns the most recent request failure, if any.
func (c *NotificationCenter) LastError() *apperrors.APIError {
	return c.state.Get().LastError
}

// ClearLastError empties the last-error slot.
func (c *NotificationCenter) ClearLastError() {
	c.SetLastError(nil)
}

// SetLoading marks key as busy or idle.
func (c *NotificationCenter) SetLoading(key string, loading bool) {
	c.state.UpdateIf(func(s UIState) (UIState, bool) {
		if s.Loading[key] == loading {
			return s, false
		}
		next := maps.Clone(s.Loading)
		if next == nil {
			next = map[string]bool{}
		}
		if loading {
			next[key] = true
		} else {
			delete(next, key)
		}
		s.Loading = next
		return s, true
	})
}

// Loading reports whether key is busy.
func (c *NotificationCenter) Loading(key string) bool {
	return c.state.Get().Loading[key]
}

// Wait blocks until every pending mirror delivery finished.
func (c *NotificationCenter) Wait() {
	c.inflight.Wait()
}

func (c *NotificationCenter) expire(id string) {
	c.timersMu.Lock()
	delete(c.timers, id)
	c.timersMu.Unlock()
	c.remove(id)
}

func (c *NotificationCenter) remove(id string) bool {
	next, removed := c.state.UpdateIf(func(s UIState) (UIState, bool) {
		i := slices.IndexFunc(s.Notifications, func(n notification.Notification) bool { return n.ID == id })
		if i < 0 {
			return s, false
		}
		s.Notifications = slices.Delete(slices.Clone(s.Notifications), i, i+1)
		return s, true
	})
	if removed {
		metrics.EmitNotifications(c.metrics, len(next.Notifications))
	}
	return removed
}

func (c *NotificationCenter) forward(n notification.Notification) {
	if c.mirror == nil || !c.mirror.Enabled() || !failurenotifier.Relevant(n) {
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.mirror.Notify(context.Background(), n)
	}()
}
