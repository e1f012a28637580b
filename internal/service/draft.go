package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/target/promptopt-client/internal/data"
	"github.com/target/promptopt-client/internal/ports"
)

// DefaultDraftDebounce is the quiet period before a draft edit is written.
const DefaultDraftDebounce = 500 * time.Millisecond

// DraftAutosaverOptions groups dependencies for DraftAutosaver.
type DraftAutosaverOptions struct {
	Repo     *data.DraftRepo
	Clock    ports.Clock
	Debounce time.Duration
	Logger   *slog.Logger
}

// DraftAutosaver writes the optimizer draft behind the caller. Rapid edits collapse into a
// single write once the debounce period passes without another edit.
type DraftAutosaver struct {
	repo     *data.DraftRepo
	clock    ports.Clock
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending *data.Draft
	timer   ports.Timer
}

// NewDraftAutosaver constructs a DraftAutosaver.
func NewDraftAutosaver(opts DraftAutosaverOptions) (*DraftAutosaver, error) {
	if opts.Repo == nil {
		return nil, errors.New("draft repository is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = data.SystemClock{}
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDraftDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftAutosaver{
		repo:     opts.Repo,
		clock:    clock,
		debounce: debounce,
		logger:   logger.With("component", "draft_autosaver"),
	}, nil
}

// Update records d as the latest draft and (re)starts the debounce timer.
func (a *DraftAutosaver) Update(d data.Draft) {
	d.UpdatedAt = a.clock.Now()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = &d
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = a.clock.AfterFunc(a.debounce, func() {
		if err := a.Flush(context.Background()); err != nil {
			a.logger.Warn("autosave failed", "error", err)
		}
	})
}

// Pending reports whether an edit is waiting to be written.
func (a *DraftAutosaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

// Flush writes the pending draft now, if any.
func (a *DraftAutosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	d := a.pending
	a.pending = nil
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	if d == nil {
		return nil
	}
	if err := a.repo.Save(ctx, *d); err != nil {
		a.mu.Lock()
		if a.pending == nil {
			a.pending = d
		}
		a.mu.Unlock()
		return err
	}
	a.logger.DebugContext(ctx, "draft saved", "prompt_length", len(d.Prompt))
	return nil
}

// Load returns the pending draft if there is one, else the stored draft.
func (a *DraftAutosaver) Load(ctx context.Context) (data.Draft, bool, error) {
	a.mu.Lock()
	if a.pending != nil {
		d := *a.pending
		a.mu.Unlock()
		return d, true, nil
	}
	a.mu.Unlock()
	return a.repo.Load(ctx)
}

// Discard drops the pending edit and deletes the stored draft.
func (a *DraftAutosaver) Discard(ctx context.Context) error {
	a.mu.Lock()
	a.pending = nil
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	return a.repo.Delete(ctx)
}
