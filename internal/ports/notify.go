package ports

import (
	"context"
	"time"

	"github.com/target/promptopt-client/internal/domain/notification"
)

// NotificationSink mirrors notifications to an external channel (chat webhook, log).
type NotificationSink interface {
	Name() string
	Send(ctx context.Context, n notification.Notification) error
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the callback, reporting whether it was still pending.
	Stop() bool
}

// Clock supplies time and scheduled callbacks so expiry logic can be driven in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}
