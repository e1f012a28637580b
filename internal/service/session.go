package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/target/promptopt-client/internal/client"
	"github.com/target/promptopt-client/internal/data"
	domainauth "github.com/target/promptopt-client/internal/domain/auth"
	apperrors "github.com/target/promptopt-client/internal/errors"
	"github.com/target/promptopt-client/internal/observability/metrics"
	"github.com/target/promptopt-client/internal/observability/statsd"
	"github.com/target/promptopt-client/internal/ports"
	"github.com/target/promptopt-client/internal/store"
)

// ErrSessionBusy is returned when Login or Register is attempted while another
// session-mutating operation is still running.
var ErrSessionBusy = errors.New("another session operation is in progress")

// ErrMissingAccessToken is wrapped when the login response carries no token.
var ErrMissingAccessToken = errors.New("login response did not include an access token")

const msgSessionExpired = "your session has expired, please log in again"

// DefaultLogoutTimeout bounds the background backend logout.
const DefaultLogoutTimeout = 5 * time.Second

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Gateway ports.AuthGateway
	Repo    *data.SessionRepo
	Logger  *slog.Logger
	Metrics statsd.Sink
	Clock   ports.Clock
	// SilentStartupTeardown clears the error and suppresses notifications when the
	// persisted token turns out to be invalid during Restore.
	SilentStartupTeardown bool
	// LogoutTimeout bounds the best-effort backend logout. Zero selects DefaultLogoutTimeout.
	LogoutTimeout time.Duration
}

// SessionManager owns the authentication session. It is the only writer of the session
// state; everything else observes it through State and Subscribe.
type SessionManager struct {
	gateway ports.AuthGateway
	repo    *data.SessionRepo
	logger  *slog.Logger
	metrics statsd.Sink
	clock   ports.Clock
	silent  bool

	logoutTimeout time.Duration
	revocations   sync.WaitGroup

	state *store.Store[domainauth.Session]

	// opMu serializes Login, Register, Logout and GetCurrentUser.
	opMu sync.Mutex

	// pending holds a freshly persisted token between "persist token" and the final
	// commit of a Login, so the user fetch is authenticated.
	pendingMu sync.RWMutex
	pending   string
}

// NewSessionManager constructs a SessionManager in the anonymous state.
func NewSessionManager(opts SessionManagerOptions) (*SessionManager, error) {
	if opts.Gateway == nil {
		return nil, errors.New("auth gateway is required")
	}
	if opts.Repo == nil {
		return nil, errors.New("session repository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = data.SystemClock{}
	}
	sink := opts.Metrics
	if sink == nil {
		sink = statsd.Nop{}
	}
	logoutTimeout := opts.LogoutTimeout
	if logoutTimeout <= 0 {
		logoutTimeout = DefaultLogoutTimeout
	}

	return &SessionManager{
		gateway: opts.Gateway,
		repo:    opts.Repo,
		logger:  logger.With("component", "session_manager"),
		metrics: sink,
		clock:   clock,
		silent:  opts.SilentStartupTeardown,
		state:   store.New(domainauth.Session{}),

		logoutTimeout: logoutTimeout,
	}, nil
}

// State returns the current session.
func (m *SessionManager) State() domainauth.Session {
	return m.state.Get()
}

// Status returns the current lifecycle state.
func (m *SessionManager) Status() domainauth.Status {
	return m.state.Get().Status()
}

// Subscribe registers fn to receive every committed session and returns an unsubscribe func.
func (m *SessionManager) Subscribe(fn func(domainauth.Session)) func() {
	return m.state.Subscribe(fn)
}

// Token returns the bearer token for outgoing requests. It implements ports.TokenProvider.
func (m *SessionManager) Token() string {
	if tok := m.state.Get().Token; tok != "" {
		return tok
	}
	m.pendingMu.RLock()
	defer m.pendingMu.RUnlock()
	return m.pending
}

// ClearError removes the recorded error message.
func (m *SessionManager) ClearError() {
	m.state.Update(func(s domainauth.Session) domainauth.Session {
		s.Error = ""
		return s
	})
}

// Login authenticates with creds. The token is persisted before the user is fetched, and the
// session becomes authenticated in a single commit once both succeed. Any failure leaves the
// session anonymous with the failure message recorded, and is returned.
func (m *SessionManager) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.User, error) {
	if !m.opMu.TryLock() {
		m.emit("login", metrics.ResultBusy, 0, nil)
		return domainauth.User{}, ErrSessionBusy
	}
	defer m.opMu.Unlock()

	start := m.clock.Now()
	m.beginLoading()

	user, token, err := m.authenticate(ctx, creds)
	m.setPending("")
	if err != nil {
		m.clearPersisted(ctx)
		m.state.Set(domainauth.Session{Error: apperrors.MessageOf(err)})
		m.logger.InfoContext(ctx, "login failed", "username", creds.Username, "error", err)
		m.emit("login", metrics.ResultError, m.clock.Now().Sub(start), err)
		return domainauth.User{}, err
	}

	next := domainauth.Session{User: &user, Token: token, IsAuthenticated: true}
	if err := m.repo.SaveSnapshot(ctx, next.Snapshot()); err != nil {
		m.logger.WarnContext(ctx, "failed to persist session snapshot", "error", err)
	}
	m.state.Set(next)

	m.logger.InfoContext(ctx, "login succeeded", "username", user.Username, "user_id", user.ID)
	m.emit("login", metrics.ResultSuccess, m.clock.Now().Sub(start), nil)
	return user, nil
}

func (m *SessionManager) authenticate(ctx context.Context, creds domainauth.Credentials) (domainauth.User, string, error) {
	tok, err := m.gateway.Login(ctx, creds)
	if err != nil {
		return domainauth.User{}, "", err
	}
	token := strings.TrimSpace(tok.AccessToken)
	if token == "" {
		return domainauth.User{}, "", apperrors.Wrap(ErrMissingAccessToken, apperrors.KindUnknown, ErrMissingAccessToken.Error())
	}

	if err := m.repo.SaveToken(ctx, token); err != nil {
		return domainauth.User{}, "", apperrors.Wrap(err, apperrors.KindUnknown, "could not save credentials")
	}
	m.setPending(token)

	user, err := m.gateway.Me(ctx)
	if err != nil {
		return domainauth.User{}, "", err
	}
	return user, token, nil
}

// Register creates an account. It never authenticates the session.
func (m *SessionManager) Register(ctx context.Context, reg domainauth.Registration) (domainauth.User, error) {
	if !m.opMu.TryLock() {
		m.emit("register", metrics.ResultBusy, 0, nil)
		return domainauth.User{}, ErrSessionBusy
	}
	defer m.opMu.Unlock()

	start := m.clock.Now()
	m.beginLoading()

	user, err := m.gateway.Register(ctx, reg)
	m.state.Update(func(s domainauth.Session) domainauth.Session {
		s.Loading = false
		if err != nil {
			s.Error = apperrors.MessageOf(err)
		}
		return s
	})
	if err != nil {
		m.logger.InfoContext(ctx, "registration failed", "username", reg.Username, "error", err)
		m.emit("register", metrics.ResultError, m.clock.Now().Sub(start), err)
		return domainauth.User{}, err
	}

	m.logger.InfoContext(ctx, "account registered", "username", user.Username, "user_id", user.ID)
	m.emit("register", metrics.ResultSuccess, m.clock.Now().Sub(start), nil)
	return user, nil
}

// Logout ends the session. The backend call is best effort; persisted credentials are always
// cleared and the session always ends anonymous with no error. The returned error only reports
// a failure to clear persisted state.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	start := m.clock.Now()
	err := m.logoutLocked(ctx)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	m.emit("logout", result, m.clock.Now().Sub(start), err)
	return err
}

// logoutLocked clears the session locally, then tells the backend in the background.
func (m *SessionManager) logoutLocked(ctx context.Context) error {
	token := m.Token()

	m.setPending("")
	err := m.repo.Clear(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to clear persisted session", "error", err)
	}
	m.state.Set(domainauth.Session{})
	m.logger.InfoContext(ctx, "logged out")

	if token != "" {
		m.revoke(ctx, token)
	}
	return err
}

// revoke sends the backend logout for token. Failures are logged only.
func (m *SessionManager) revoke(ctx context.Context, token string) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.logoutTimeout)
	m.revocations.Add(1)
	go func() {
		defer m.revocations.Done()
		defer cancel()
		if err := m.gateway.Logout(callCtx, token); err != nil {
			m.logger.InfoContext(callCtx, "backend logout failed", "error", err)
		}
	}()
}

// Wait blocks until every background backend logout has finished.
func (m *SessionManager) Wait() {
	m.revocations.Wait()
}

// GetCurrentUser fetches the user owning the current token. On failure the session is logged
// out and the failure message recorded.
func (m *SessionManager) GetCurrentUser(ctx context.Context) (domainauth.User, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.currentUserLocked(ctx)
}

func (m *SessionManager) currentUserLocked(ctx context.Context) (domainauth.User, error) {
	start := m.clock.Now()
	m.beginLoading()

	user, err := m.gateway.Me(ctx)
	if err != nil {
		if logoutErr := m.logoutLocked(ctx); logoutErr != nil {
			m.logger.WarnContext(ctx, "logout after failed user fetch", "error", logoutErr)
		}
		m.state.Update(func(s domainauth.Session) domainauth.Session {
			s.Error = apperrors.MessageOf(err)
			s.Loading = false
			return s
		})
		m.emit("current_user", metrics.ResultError, m.clock.Now().Sub(start), err)
		return domainauth.User{}, err
	}

	next := m.state.Update(func(s domainauth.Session) domainauth.Session {
		s.User = &user
		s.IsAuthenticated = s.Token != ""
		s.Loading = false
		s.Error = ""
		return s
	})
	if next.IsAuthenticated {
		if err := m.repo.SaveSnapshot(ctx, next.Snapshot()); err != nil {
			m.logger.WarnContext(ctx, "failed to persist session snapshot", "error", err)
		}
	}
	m.emit("current_user", metrics.ResultSuccess, m.clock.Now().Sub(start), nil)
	return user, nil
}

// Restore rebuilds the session from persistence at startup. When a token is found and the
// session is not already authenticated the token is validated once against the backend.
// Tokens that are JWTs with a past expiry are torn down without a network call.
func (m *SessionManager) Restore(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.state.Get().IsAuthenticated {
		return nil
	}

	snap, hasSnap, err := m.repo.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	token, err := m.repo.Token(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if token == "" && hasSnap {
		token = strings.TrimSpace(snap.Token)
	}
	if token == "" {
		if hasSnap {
			m.clearPersisted(ctx)
		}
		return nil
	}

	if expired(token, m.clock.Now()) {
		m.logger.InfoContext(ctx, "persisted token expired, discarding")
		m.clearPersisted(ctx)
		next := domainauth.Session{}
		if !m.silent {
			next.Error = msgSessionExpired
		}
		m.state.Set(next)
		m.emit("restore", metrics.ResultError, 0, nil)
		return nil
	}

	// The persisted user is shown while validation runs; authentication waits for the backend.
	m.state.Set(domainauth.Session{User: snap.User, Token: token})

	fetchCtx := ctx
	if m.silent {
		fetchCtx = client.WithoutNotifications(ctx)
	}
	if _, err := m.currentUserLocked(fetchCtx); err != nil {
		m.logger.InfoContext(ctx, "persisted session rejected", "error", err, "silent", m.silent)
		if m.silent {
			m.ClearError()
		}
		m.emit("restore", metrics.ResultError, 0, err)
		return nil
	}
	m.emit("restore", metrics.ResultSuccess, 0, nil)
	return nil
}

// Teardown forcibly resets the session after the backend rejected the token. It never waits
// for an in-flight operation and is safe to call repeatedly.
func (m *SessionManager) Teardown(ctx context.Context) {
	m.setPending("")
	m.clearPersisted(ctx)

	_, changed := m.state.UpdateIf(func(s domainauth.Session) (domainauth.Session, bool) {
		if s.User == nil && s.Token == "" && !s.IsAuthenticated {
			return s, false
		}
		return domainauth.Session{Loading: s.Loading, Error: s.Error}, true
	})
	if changed {
		m.logger.InfoContext(ctx, "session torn down after authorization failure")
		m.emit("teardown", metrics.ResultSuccess, 0, nil)
	}
}

func (m *SessionManager) beginLoading() {
	m.state.Update(func(s domainauth.Session) domainauth.Session {
		s.Loading = true
		s.Error = ""
		return s
	})
}

func (m *SessionManager) setPending(token string) {
	m.pendingMu.Lock()
	m.pending = token
	m.pendingMu.Unlock()
}

func (m *SessionManager) clearPersisted(ctx context.Context) {
	if err := m.repo.Clear(ctx); err != nil {
		m.logger.WarnContext(ctx, "failed to clear persisted session", "error", err)
	}
}

func (m *SessionManager) emit(op, result string, d time.Duration, err error) {
	metrics.EmitSession(m.metrics, metrics.SessionMetric{
		Operation: op,
		Result:    result,
		Duration:  d,
		Err:       err,
	})
}

// expired peeks at the exp claim of a JWT without verifying it. Opaque tokens never expire here.
func expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}
