package data

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/promptopt-client/internal/domain/model"
	"github.com/target/promptopt-client/internal/ports"
)

// KeyDraft is the persisted key of the optimizer draft.
const KeyDraft = "optimizer_draft"

// DraftVersion is the current persisted draft layout.
const DraftVersion = 1

// Draft is an unsent optimization request kept across restarts.
type Draft struct {
	Version          int                    `json:"version"`
	Prompt           string                 `json:"prompt"`
	OptimizationType model.OptimizationType `json:"optimization_type,omitempty"`
	UserContext      string                 `json:"user_context,omitempty"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// Request converts the draft into an optimization request.
func (d Draft) Request() model.OptimizationRequest {
	t := d.OptimizationType
	if t == "" {
		t = model.OptimizationGeneral
	}
	return model.OptimizationRequest{
		OriginalPrompt:   d.Prompt,
		OptimizationType: t,
		UserContext:      d.UserContext,
	}
}

// DraftRepo persists the optimizer draft.
type DraftRepo struct {
	store  ports.StateStore
	logger *slog.Logger
}

// NewDraftRepo creates a DraftRepo over store.
func NewDraftRepo(store ports.StateStore, logger *slog.Logger) (*DraftRepo, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftRepo{store: store, logger: logger.With("component", "draft_repo")}, nil
}

// Save writes the draft.
func (r *DraftRepo) Save(ctx context.Context, d Draft) error {
	d.Version = DraftVersion
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := r.store.Set(ctx, KeyDraft, payload); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Load returns the stored draft. ok is false when none is stored or it cannot be read.
func (r *DraftRepo) Load(ctx context.Context) (Draft, bool, error) {
	raw, err := r.store.Get(ctx, KeyDraft)
	if err != nil {
		return Draft{}, false, fmt.Errorf("load draft: %w", err)
	}
	if len(raw) == 0 {
		return Draft{}, false, nil
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil || d.Version != DraftVersion {
		r.logger.WarnContext(ctx, "ignoring unreadable draft", "error", err, "version", d.Version)
		return Draft{}, false, nil
	}
	return d, true, nil
}

// Delete removes the stored draft.
func (r *DraftRepo) Delete(ctx context.Context) error {
	if err := r.store.Delete(ctx, KeyDraft); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
