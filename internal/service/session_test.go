package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/promptopt-client/internal/data"
	domainauth "github.com/target/promptopt-client/internal/domain/auth"
	apperrors "github.com/target/promptopt-client/internal/errors"
	mocks "github.com/target/promptopt-client/internal/mocks/auth"
	"github.com/target/promptopt-client/internal/testutil"
)

type sessionFixture struct {
	manager *SessionManager
	gateway *mocks.MockAuthGateway
	store   *mocks.MemoryStateStore
	repo    *data.SessionRepo
	clock   *data.FakeClock
}

func newSessionFixture(t *testing.T, silent bool) *sessionFixture {
	t.Helper()
	store := mocks.NewMemoryStateStore()
	repo, err := data.NewSessionRepo(store, nil)
	require.NoError(t, err)
	gw := mocks.NewMockAuthGateway()
	clock := data.NewFakeClock(testutil.TestTime())

	m, err := NewSessionManager(SessionManagerOptions{
		Gateway:               gw,
		Repo:                  repo,
		Clock:                 clock,
		SilentStartupTeardown: silent,
	})
	require.NoError(t, err)
	return &sessionFixture{manager: m, gateway: gw, store: store, repo: repo, clock: clock}
}

func (f *sessionFixture) record() func() []domainauth.Session {
	var mu sync.Mutex
	var seen []domainauth.Session
	f.manager.Subscribe(func(s domainauth.Session) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})
	return func() []domainauth.Session {
		mu.Lock()
		defer mu.Unlock()
		return append([]domainauth.Session(nil), seen...)
	}
}

func TestNewSessionManager_RequiresDependencies(t *testing.T) {
	_, err := NewSessionManager(SessionManagerOptions{})
	assert.Error(t, err)

	_, err = NewSessionManager(SessionManagerOptions{Gateway: mocks.NewMockAuthGateway()})
	assert.Error(t, err)
}

func TestSessionManager_LoginSuccess(t *testing.T) {
	f := newSessionFixture(t, false)
	ctx := context.Background()
	seen := f.record()

	f.gateway.MeFunc = func(ctx context.Context) (domainauth.User, error) {
		// The token is persisted and usable before the user fetch.
		persisted, err := f.repo.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", persisted)
		assert.Equal(t, "tok-1", f.manager.Token())
		assert.False(t, f.manager.State().IsAuthenticated)
		return f.gateway.DefaultUser, nil
	}

	user, err := f.manager.Login(ctx, domainauth.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	state := f.manager.State()
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, "tok-1", state.Token)
	require.NotNil(t, state.User)
	assert.Equal(t, "alice", state.User.Username)
	assert.False(t, state.Loading)
	assert.Empty(t, state.Error)
	assert.Equal(t, domainauth.StatusAuthenticated, f.manager.Status())

	snap, ok, err := f.repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok-1", snap.Token)
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "alice", snap.User.Username)

	commits := seen()
	require.Len(t, commits, 2)
	assert.True(t, commits[0].Loading)
	assert.False(t, commits[0].IsAuthenticated)
	assert.Equal(t, state, commits[1])
	for _, c := range commits {
		assert.True(t, c.Valid())
	}
}

func TestSessionManager_LoginFailsWhenUserFetchFails(t *testing.T) {
	f := newSessionFixture(t, false)
	ctx := context.Background()
	f.gateway.MeFunc = func(context.Context) (domainauth.User, error) {
		return domainauth.User{}, apperrors.Unauthorized("Could not validate credentials")
	}

	_, err := f.manager.Login(ctx, domainauth.Credentials{Username: "alice", Password: "pw"})

	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
	state := f.manager.State()
	assert.False(t, state.IsAuthenticated)
	assert.Empty(t, state.Token)
	assert.Nil(t, state.User)
	assert.False(t, state.Loading)
	assert.Equal(t, "Could not validate credentials", state.Error)
	assert.Empty(t, f.manager.Token())
	assert.Equal(t, 0, f.store.Len(), "persisted token is cleared")
}

func TestSessionManager_LoginRejectedCredentials(t *testing.T) {
	f := newSessionFixture(t, false)
	f.gateway.LoginFunc = func(context.Context, domainauth.Credentials) (domainauth.TokenResponse, error) {
		return domainauth.TokenResponse{}, apperrors.Unauthorized("Incorrect username or password")
	}

	_, err := f.manager.Login(context.Background(), domainauth.Credentials{Username: "alice", Password: "bad"})

	require.Error(t, err)
	assert.Equal(t, "Incorrect username or password", f.manager.State().Error)
	assert.Equal(t, 0, f.gateway.Calls("Me"))
	assert.Equal(t, domainauth.StatusAnonymous, f.manager.Status())
}

func TestSessionManager_LoginWithoutAccessToken(t *testing.T) {
	f := newSessionFixture(t, false)
	f.gateway.LoginFunc = func(context.Context, domainauth.Credentials) (domainauth.TokenResponse, error) {
		return domainauth.TokenResponse{TokenType: "bearer"}, nil
	}

	_, err := f.manager.Login(context.Background(), domainauth.Credentials{Username: "alice"})

	require.ErrorIs(t, err, ErrMissingAccessToken)
	assert.Equal(t, 0, f.gateway.Calls("Me"))
	assert.NotEmpty(t, f.manager.State().Error)
}

func TestSessionManager_LoginTokenPersistFailure(t *testing.T) {
	f := newSessionFixture(t, false)
	f.store.FailSet(errors.New("disk full"))

	_, err := f.manager.Login(context.Background(), domainauth.Credentials{Username: "alice"})

	require.Error(t, err)
	assert.Equal(t, 0, f.gateway.Calls("Me"))
	assert.False(t, f.manager.State().IsAuthenticated)
}

func TestSessionManager_ConcurrentLoginIsRejected(t *testing.T) {
	f := newSessionFixture(t, false)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.gateway.LoginFunc = func(context.Context, domainauth.Credentials) (domainauth.TokenResponse, error) {
		close(entered)
		<-release
		return domainauth.TokenResponse{AccessToken: "tok-1"}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.manager.Login(context.Background(), domainauth.Credentials{Username: "alice"})
		done <- err
	}()
	<-entered

	assert.True(t, f.manager.State().Loading)
	_, err := f.manager.Login(context.Background(), domainauth.Credentials{Username: "mallory"})
	assert.ErrorIs(t, err, ErrSessionBusy)
	_, err = f.manager.Register(context.Background(), domainauth.Registration{Username: "bob"})
	assert.ErrorIs(t, err, ErrSessionBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.gateway.Calls("Login"))
	assert.Equal(t, "alice", f.manager.State().User.Username)
}

func TestSessionManager_LogoutSwallowsBackendFailure(t *testing.T) {
	f := newSessionFixture(t, false)
	ctx := context.Background()
	_, err := f.manager.Login(ctx, domainauth.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	var revoked string
	f.gateway.LogoutFunc = func(_ context.Context, token string) error {
		revoked = token
		return apperrors.Network(errors.New("connection refused"))
	}

	require.NoError(t, f.manager.Logout(ctx))
	f.manager.Wait()

	assert.Equal(t, domainauth.Session{}, f.manager.State())
	assert.Equal(t, 1, f.gateway.Calls("Logout"))
	assert.Equal(t, "tok-1", revoked)
	assert.Equal(t, 0, f.store.Len())
}

func TestSessionManager_LogoutClearsBeforeBackendAnswers(t *testing.T) {
	f := newSessionFixture(t, false)
	ctx := context.Background()
	_, err := f.manager.Login(ctx, domainauth.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	f.gateway.LogoutFunc = func(ctx context.Context, _ string) error {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}

	require.NoError(t, f.manager.Logout(ctx))
	<-started

	// The backend call is still pending; local state is already gone.
	assert.Equal(t, domainauth.StatusAnonymous, f.manager.Status())
	assert.Empty(t, f.manager.Token())
	assert.Equal(t, 0, f.store.Len())

	close(release)
	f.manager.Wait()
	assert.Equal(t, 1, f.gateway.Calls("Logout"))
}

func TestSessionManager_LogoutIsBoundedByTimeout(t *testing.T) {
	store := mocks.NewMemoryStateStore()
	repo, err := data.NewSessionRepo(store, nil)
	require.NoError(t, err)
	gw := mocks.NewMockAuthGateway()
	m, err := NewSessionManager(SessionManagerOptions{Gateway: gw, Repo: repo, LogoutTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = m.Login(ctx, domainauth.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	var deadlineHit bool
	gw.LogoutFunc = func(ctx context.Context, _ string) error {
		<-ctx.Done()
		deadlineHit = errors.Is(ctx.Err(), context.DeadlineExceeded)
		return ctx.Err()
	}

	require.NoError(t, m.Logout(ctx))
	m.Wait()

	assert.True(t, deadlineHit)
	assert.Equal(t, domainauth.StatusAnonymous, m.Status())
}

func TestSessionManager_LogoutWhenAnonymousSkipsBackend(t *testing.T) {
	f := newSessionFixture(t, false)

	require.NoError(t, f.manager.Logout(context.Background()))

	assert.Equal(t, 0, f.gateway.Calls("Logout"))
	assert.Equal(t, domainauth.StatusAnonymous, f.manager.Status())
}

func TestSessionManager_LogoutReportsStorageFailure(t *testing.T) {
	f := newSessionFixture(t, false)
	ctx := context.Background()
	_, err := f.manager.Login(ctx, domainauth.Credentials{Username: "alice"})
	require.NoError(t, err)
	f.store.FailDelete(errors.New("locked"))

	err = f.manager.Logout(ctx)

	assert.Error(t, err)
	assert.Equal(t, domainauth.Session{}, f.manager.State(), "in-memory session is reset regardless")
}

func TestSessionManager_GetCurrentUserFailureLogsOut(t *testing.T) {
	f := newSessionFixture(t, false)
	ctx := context.Background()
	_, err := f.manager.Login(ctx, domainauth.Credentials{Username: "alice"})
	require.NoError(t, err)

	f.gateway.MeFunc = func(context.Context) (domainauth.User, error) {
		return domainauth.User{}, apperrors.Server(503, "")
	}

	_, err = f.manager.GetCurrentUser(ctx)

	require.Error(t, err)
	state := f.manager.State()
	assert.False(t, state.IsAuthenticated)
	assert.Empty(t, state.Token)
	assert.False(t, state.Loading)
	assert.Equal(t, apperrors.MessageServer, state.Error)
	f.manager.Wait()
	assert.Equal(t, 1, f.gateway.Calls("Logout"))
}

func TestSessionManager_GetCurrentUserRefreshesUser(t *testing.T) {
	f := newSessionFixture(t, false)
	ctx := context.Background()
	_, err := f.manager.Login(ctx, domainauth.Credentials{Username: "alice"})
	require.NoError(t, err)

	var statuses []domainauth.Status
	f.manager.Subscribe(func(s domainauth.Session) { statuses = append(statuses, s.Status()) })
	f.gateway.MeFunc = func(context.Context) (domainauth.User, error) {
		u := f.gateway.DefaultUser
		u.FullName = "Alice Renamed"
		return u, nil
	}

	user, err := f.manager.GetCurrentUser(ctx)

	require.NoError(t, err)
	assert.Equal(t, "Alice Renamed", user.DisplayName())
	assert.Equal(t, []domainauth.Status{domainauth.StatusRefreshing, domainauth.StatusAuthenticated}, statuses)
}

func TestSessionManager_Register(t *testing.T) {
	f := newSessionFixture(t, false)
	ctx := context.Background()

	user, err := f.manager.Register(ctx, domainauth.Registration{Username: "bob", Email: "bob@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)
	assert.Equal(t, domainauth.StatusAnonymous, f.manager.Status())
	assert.Equal(t, 0, f.store.Len())

	f.gateway.RegisterFunc = func(context.Context, domainauth.Registration) (domainauth.User, error) {
		return domainauth.User{}, apperrors.Validation("", "username already registered")
	}
	_, err = f.manager.Register(ctx, domainauth.Registration{Username: "bob"})
	require.Error(t, err)
	assert.Equal(t, "username already registered", f.manager.State().Error)
	assert.False(t, f.manager.State().Loading)

	f.manager.ClearError()
	assert.Empty(t, f.manager.State().Error)
}

func TestSessionManager_TeardownIsIdempotent(t *testing.T) {
	f := newSessionFixture(t, false)
	ctx := context.Background()
	_, err := f.manager.Login(ctx, domainauth.Credentials{Username: "alice"})
	require.NoError(t, err)
	seen := f.record()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.manager.Teardown(ctx)
		}()
	}
	wg.Wait()
	f.manager.Teardown(ctx)

	assert.Equal(t, domainauth.Session{}, f.manager.State())
	assert.Equal(t, 0, f.store.Len())
	assert.Len(t, seen(), 1)
}

func TestSessionManager_RestoreValidatesPersistedToken(t *testing.T) {
	f := newSessionFixture(t, false)
	ctx := context.Background()
	user := f.gateway.DefaultUser
	require.NoError(t, f.repo.SaveToken(ctx, "tok-1"))
	require.NoError(t, f.repo.SaveSnapshot(ctx, domainauth.Snapshot{User: &user, Token: "tok-1", IsAuthenticated: true}))

	require.NoError(t, f.manager.Restore(ctx))

	assert.Equal(t, 1, f.gateway.Calls("Me"))
	state := f.manager.State()
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, "tok-1", state.Token)

	require.NoError(t, f.manager.Restore(ctx))
	assert.Equal(t, 1, f.gateway.Calls("Me"), "already authenticated sessions are not revalidated")
}

func TestSessionManager_RestoreWithoutToken(t *testing.T) {
	f := newSessionFixture(t, false)

	require.NoError(t, f.manager.Restore(context.Background()))

	assert.Equal(t, 0, f.gateway.Calls("Me"))
	assert.Equal(t, domainauth.StatusAnonymous, f.manager.Status())
}

func TestSessionManager_RestoreInvalidToken(t *testing.T) {
	for _, silent := range []bool{true, false} {
		name := "loud"
		if silent {
			name = "silent"
		}
		t.Run(name, func(t *testing.T) {
			f := newSessionFixture(t, silent)
			ctx := context.Background()
			require.NoError(t, f.repo.SaveToken(ctx, "stale-token"))
			f.gateway.MeFunc = func(context.Context) (domainauth.User, error) {
				f.manager.Teardown(ctx)
				return domainauth.User{}, apperrors.Unauthorized("")
			}

			require.NoError(t, f.manager.Restore(ctx))

			state := f.manager.State()
			assert.False(t, state.IsAuthenticated)
			assert.Empty(t, state.Token)
			assert.Equal(t, 0, f.store.Len())
			assert.Equal(t, 1, f.gateway.Calls("Me"))
			assert.Equal(t, 0, f.gateway.Calls("Logout"))
			if silent {
				assert.Empty(t, state.Error)
			} else {
				assert.Equal(t, apperrors.MessageUnauthorized, state.Error)
			}
		})
	}
}

func TestSessionManager_RestoreExpiredJWT(t *testing.T) {
	f := newSessionFixture(t, false)
	ctx := context.Background()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": f.clock.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	require.NoError(t, f.repo.SaveToken(ctx, token))

	require.NoError(t, f.manager.Restore(ctx))

	assert.Equal(t, 0, f.gateway.Calls("Me"))
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, msgSessionExpired, f.manager.State().Error)
}

func TestSessionManager_RestoreLiveJWT(t *testing.T) {
	f := newSessionFixture(t, true)
	ctx := context.Background()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": f.clock.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	require.NoError(t, f.repo.SaveToken(ctx, token))

	require.NoError(t, f.manager.Restore(ctx))

	assert.Equal(t, 1, f.gateway.Calls("Me"))
	assert.True(t, f.manager.State().IsAuthenticated)
}

func TestSessionManager_RestoreStorageFailure(t *testing.T) {
	f := newSessionFixture(t, false)
	f.store.FailGet(errors.New("unavailable"))

	assert.Error(t, f.manager.Restore(context.Background()))
}

// alice logs in, a later unrelated request is rejected with 401, the pipeline hook tears the
// session down, and alice logs in again.
func TestSessionManager_AliceScenario(t *testing.T) {
	f := newSessionFixture(t, false)
	ctx := context.Background()

	_, err := f.manager.Login(ctx, domainauth.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", f.manager.Token())

	f.manager.Teardown(ctx)
	assert.Empty(t, f.manager.Token())
	assert.Equal(t, domainauth.StatusAnonymous, f.manager.Status())
	_, ok, err := f.repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	f.gateway.Token = "tok-2"
	_, err = f.manager.Login(ctx, domainauth.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "tok-2", f.manager.Token())
}

func TestExpired(t *testing.T) {
	now := testutil.TestTime()
	assert.False(t, expired("opaque-token", now))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("k"))
	require.NoError(t, err)
	assert.False(t, expired(noExp, now))

	past, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": now.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)
	assert.True(t, expired(past, now))
}
