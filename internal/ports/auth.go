package ports

// Package ports defines interfaces (hexagonal ports) for session and persistence behavior.
// Implementations live in internal/adapters and internal/client; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/target/promptopt-client/internal/domain/auth"
)

// AuthGateway talks to the backend authentication endpoints.
type AuthGateway interface {
	// Login exchanges credentials for a bearer token.
	Login(ctx context.Context, creds domainauth.Credentials) (domainauth.TokenResponse, error)

	// Register creates an account. It does not authenticate.
	Register(ctx context.Context, reg domainauth.Registration) (domainauth.User, error)

	// Me returns the user owning the current bearer token.
	Me(ctx context.Context) (domainauth.User, error)

	// Logout notifies the backend that token is no longer used.
	Logout(ctx context.Context, token string) error
}

// StateStore persists small opaque values under string keys.
// Get of a missing key returns (nil, nil).
type StateStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}

// TokenProvider exposes the bearer token currently held by the session.
type TokenProvider interface {
	Token() string
}
