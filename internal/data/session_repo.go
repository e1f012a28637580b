package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	domainauth "github.com/target/promptopt-client/internal/domain/auth"
	"github.com/target/promptopt-client/internal/ports"
)

// Persisted key names.
const (
	KeyAccessToken = "access_token"
	KeyAuthStore   = "auth_store"
)

// ErrStoreRequired indicates a repository was constructed without a state store.
var ErrStoreRequired = errors.New("state store is required")

// SessionRepo persists the bearer token and the session snapshot.
type SessionRepo struct {
	store  ports.StateStore
	logger *slog.Logger
}

// NewSessionRepo creates a SessionRepo over store.
func NewSessionRepo(store ports.StateStore, logger *slog.Logger) (*SessionRepo, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRepo{store: store, logger: logger.With("component", "session_repo")}, nil
}

// SaveToken persists the raw bearer token.
func (r *SessionRepo) SaveToken(ctx context.Context, token string) error {
	if err := r.store.Set(ctx, KeyAccessToken, []byte(token)); err != nil {
		return fmt.Errorf("save access token: %w", err)
	}
	return nil
}

// Token returns the persisted bearer token, or "" when none is stored.
func (r *SessionRepo) Token(ctx context.Context) (string, error) {
	raw, err := r.store.Get(ctx, KeyAccessToken)
	if err != nil {
		return "", fmt.Errorf("load access token: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// SaveSnapshot persists the session snapshot at the current layout version.
func (r *SessionRepo) SaveSnapshot(ctx context.Context, snap domainauth.Snapshot) error {
	snap.Version = domainauth.SnapshotVersion
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}
	if err := r.store.Set(ctx, KeyAuthStore, payload); err != nil {
		return fmt.Errorf("save session snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the persisted snapshot. ok is false when nothing usable is stored.
// Undecodable snapshots and unknown versions are discarded.
func (r *SessionRepo) LoadSnapshot(ctx context.Context) (domainauth.Snapshot, bool, error) {
	raw, err := r.store.Get(ctx, KeyAuthStore)
	if err != nil {
		return domainauth.Snapshot{}, false, fmt.Errorf("load session snapshot: %w", err)
	}
	if len(raw) == 0 {
		return domainauth.Snapshot{}, false, nil
	}

	var snap domainauth.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		r.discard(ctx, "undecodable session snapshot", "error", err)
		return domainauth.Snapshot{}, false, nil
	}
	if snap.Version != domainauth.SnapshotVersion {
		r.discard(ctx, "unsupported session snapshot version", "version", snap.Version)
		return domainauth.Snapshot{}, false, nil
	}
	return snap, true, nil
}

// Clear removes both the token and the snapshot.
func (r *SessionRepo) Clear(ctx context.Context) error {
	if err := r.store.Delete(ctx, KeyAccessToken, KeyAuthStore); err != nil {
		return fmt.Errorf("clear persisted session: %w", err)
	}
	return nil
}

func (r *SessionRepo) discard(ctx context.Context, msg string, args ...any) {
	r.logger.WarnContext(ctx, msg, args...)
	if err := r.store.Delete(ctx, KeyAuthStore); err != nil {
		r.logger.WarnContext(ctx, "failed to delete discarded session snapshot", "error", err)
	}
}
