//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are run through `go run pkg@version` or installed via `go install`
// and are not tracked in go.mod since they are development tools, not runtime dependencies.
package tools

// Development tools:
//
// mockgen - regenerates internal/mocks from the ports interfaces
//   Run: go generate ./internal/mocks
//   Version: v0.6.0 (matches go.uber.org/mock in go.mod)
//   Docs: https://github.com/uber-go/mock
//
// goose - inspects or replays the embedded SQLite migrations by hand
//   Install: go install github.com/pressly/goose/v3/cmd/goose@v3.25.0
//   Usage: goose -dir internal/migrate/migrations sqlite3 promptopt.db status
//   Docs: https://github.com/pressly/goose
