// Package notification defines the transient user-facing notification record.
package notification

import "time"

// Type is the severity of a notification.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// DefaultDuration is how long a notification stays visible when no duration is given.
const DefaultDuration = 4000 * time.Millisecond

// Notification is a queued, auto-expiring message.
// A non-positive Duration means the notification stays until dismissed.
type Notification struct {
	ID        string        `json:"id"`
	Type      Type          `json:"type"`
	Title     string        `json:"title"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`

	// ErrorKind and Status are set when the notification reports a failed request.
	ErrorKind string `json:"error_kind,omitempty"`
	Status    int    `json:"status,omitempty"`
}

// Sticky reports whether the notification never expires on its own.
func (n Notification) Sticky() bool { return n.Duration <= 0 }

// ExpiresAt returns the time the notification is removed, or zero when sticky.
func (n Notification) ExpiresAt() time.Time {
	if n.Sticky() {
		return time.Time{}
	}
	return n.Timestamp.Add(n.Duration)
}

// Input describes a notification to enqueue. Zero Duration selects the default;
// a negative Duration makes the notification sticky.
type Input struct {
	Type     Type
	Title    string
	Message  string
	Duration time.Duration

	ErrorKind string
	Status    int
}
