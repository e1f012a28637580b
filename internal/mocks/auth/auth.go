package auth

// Package auth contains simple hand-written test doubles for the session ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sync"
	"time"

	"github.com/target/promptopt-client/internal/adapters/memory"
	domainauth "github.com/target/promptopt-client/internal/domain/auth"
	"github.com/target/promptopt-client/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthGateway = (*MockAuthGateway)(nil)
	_ ports.StateStore  = (*MemoryStateStore)(nil)
)

// MockAuthGateway simulates the backend auth endpoints with deterministic defaults.
// Any Func field overrides the default behavior for that call.
type MockAuthGateway struct {
	LoginFunc    func(ctx context.Context, creds domainauth.Credentials) (domainauth.TokenResponse, error)
	RegisterFunc func(ctx context.Context, reg domainauth.Registration) (domainauth.User, error)
	MeFunc       func(ctx context.Context) (domainauth.User, error)
	LogoutFunc   func(ctx context.Context, token string) error

	// Deterministic values for predictable testing
	Token       string
	DefaultUser domainauth.User

	mu    sync.Mutex
	calls map[string]int
}

// NewMockAuthGateway creates a MockAuthGateway that logs in as alice with token tok-1.
func NewMockAuthGateway() *MockAuthGateway {
	return &MockAuthGateway{
		Token: "tok-1",
		DefaultUser: domainauth.User{
			ID:        1,
			Username:  "alice",
			Email:     "alice@example.com",
			FullName:  "Alice Example",
			IsActive:  true,
			CreatedAt: time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		},
	}
}

func (m *MockAuthGateway) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

// Calls returns how many times the named method ran.
func (m *MockAuthGateway) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockAuthGateway) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.TokenResponse, error) {
	m.record("Login")
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, creds)
	}
	token := m.Token
	if token == "" {
		token = "tok-1"
	}
	return domainauth.TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

func (m *MockAuthGateway) Register(ctx context.Context, reg domainauth.Registration) (domainauth.User, error) {
	m.record("Register")
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, reg)
	}
	return domainauth.User{
		ID:       2,
		Username: reg.Username,
		Email:    reg.Email,
		FullName: reg.FullName,
		IsActive: true,
	}, nil
}

func (m *MockAuthGateway) Me(ctx context.Context) (domainauth.User, error) {
	m.record("Me")
	if m.MeFunc != nil {
		return m.MeFunc(ctx)
	}
	return m.DefaultUser, nil
}

func (m *MockAuthGateway) Logout(ctx context.Context, token string) error {
	m.record("Logout")
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, token)
	}
	return nil
}

// MemoryStateStore is an in-memory state store with injectable failures for unit tests.
type MemoryStateStore struct {
	*memory.StateStore

	mu        sync.Mutex
	getErr    error
	setErr    error
	deleteErr error
}

// NewMemoryStateStore creates an empty store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{StateStore: memory.NewStateStore()}
}

// FailGet makes subsequent Get calls return err. Pass nil to restore normal behavior.
func (m *MemoryStateStore) FailGet(err error) { m.mu.Lock(); m.getErr = err; m.mu.Unlock() }

// FailSet makes subsequent Set calls return err.
func (m *MemoryStateStore) FailSet(err error) { m.mu.Lock(); m.setErr = err; m.mu.Unlock() }

// FailDelete makes subsequent Delete and Clear calls return err.
func (m *MemoryStateStore) FailDelete(err error) { m.mu.Lock(); m.deleteErr = err; m.mu.Unlock() }

func (m *MemoryStateStore) failure(which *error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *which
}

func (m *MemoryStateStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := m.failure(&m.getErr); err != nil {
		return nil, err
	}
	return m.StateStore.Get(ctx, key)
}

func (m *MemoryStateStore) Set(ctx context.Context, key string, value []byte) error {
	if err := m.failure(&m.setErr); err != nil {
		return err
	}
	return m.StateStore.Set(ctx, key, value)
}

func (m *MemoryStateStore) Delete(ctx context.Context, keys ...string) error {
	if err := m.failure(&m.deleteErr); err != nil {
		return err
	}
	return m.StateStore.Delete(ctx, keys...)
}

func (m *MemoryStateStore) Clear(ctx context.Context) error {
	if err := m.failure(&m.deleteErr); err != nil {
		return err
	}
	return m.StateStore.Clear(ctx)
}
