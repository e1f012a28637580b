package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// User is the account record returned by the backend.
type User struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name,omitempty"`
	IsActive    bool       `json:"is_active"`
	IsSuperuser bool       `json:"is_superuser"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// DisplayName returns the full name when set, falling back to the username.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return u.Username
}

// Credentials are the username/password pair submitted on login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the payload submitted when creating an account.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// TokenResponse is the login endpoint response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// Status is the session lifecycle state.
type Status string

const (
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
	StatusRefreshing     Status = "refreshing"
)

// Session is the client-side authentication state.
// Invariants: IsAuthenticated implies Token != ""; User == nil implies !IsAuthenticated.
type Session struct {
	User            *User  `json:"user"`
	Token           string `json:"token"`
	IsAuthenticated bool   `json:"is_authenticated"`
	Loading         bool   `json:"loading"`
	Error           string `json:"error,omitempty"`
}

// Status derives the lifecycle state from the session fields.
func (s Session) Status() Status {
	switch {
	case s.IsAuthenticated && s.Loading:
		return StatusRefreshing
	case s.IsAuthenticated:
		return StatusAuthenticated
	case s.Loading:
		return StatusAuthenticating
	default:
		return StatusAnonymous
	}
}

// Valid reports whether the session satisfies its invariants.
func (s Session) Valid() bool {
	if s.IsAuthenticated && s.Token == "" {
		return false
	}
	if s.User == nil && s.IsAuthenticated {
		return false
	}
	return true
}

// Snapshot returns the persisted subset of the session.
func (s Session) Snapshot() Snapshot {
	return Snapshot{
		Version:         SnapshotVersion,
		User:            s.User,
		Token:           s.Token,
		IsAuthenticated: s.IsAuthenticated,
	}
}

// SnapshotVersion is the current persisted snapshot layout.
const SnapshotVersion = 1

// Snapshot is the persisted session subset restored on startup.
type Snapshot struct {
	Version         int    `json:"version"`
	User            *User  `json:"user"`
	Token           string `json:"token"`
	IsAuthenticated bool   `json:"is_authenticated"`
}

// Session rebuilds an idle session from the snapshot.
func (s Snapshot) Session() Session {
	return Session{
		User:            s.User,
		Token:           s.Token,
		IsAuthenticated: s.IsAuthenticated && s.Token != "" && s.User != nil,
	}
}
