// Package mocks provides generated mocks for the persistence ports.
//
// This package uses go.uber.org/mock (gomock). Hand-written doubles for the auth gateway and
// an in-memory state store live in the auth subpackage.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockStateStore(ctrl)
//	store.EXPECT().Get(gomock.Any(), "access_token").Return(nil, errBoom)
package mocks

// Generate mock for StateStore interface from internal/ports package.
// This creates MockStateStore with methods for all StateStore interface methods:
// Get, Set, Delete, Clear
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=state_store_mock.go github.com/target/promptopt-client/internal/ports StateStore
