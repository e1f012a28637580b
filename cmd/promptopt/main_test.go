package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/promptopt-client/config"
	"github.com/target/promptopt-client/internal/adapters/memory"
	"github.com/target/promptopt-client/internal/bootstrap"
	"github.com/target/promptopt-client/internal/data"
)

func init() {
	color.NoColor = true
	isTerminal = func(int) bool { return false }
}

type cliEnv struct {
	store     *memory.StateStore
	cfg       config.AppConfig
	out       *bytes.Buffer
	errOut    *bytes.Buffer
	optimized atomic.Int32
	evaluated atomic.Int32
	logouts   atomic.Int32
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	env := &cliEnv{store: memory.NewStateStore()}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "s3cret" {
			writeJSON(w, http.StatusUnauthorized, `{"detail":"Incorrect username or password"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"access_token":"tok-1","token_type":"bearer"}`)
	})
	mux.HandleFunc("POST /api/v1/auth/register", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, `{"id":2,"username":"bob","email":"bob@example.com","is_active":true}`)
	})
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		env.logouts.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, `{"detail":"Could not validate credentials"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"id":1,"username":"alice","email":"alice@example.com","full_name":"Alice Example","is_active":true}`)
	})
	mux.HandleFunc("POST /api/v1/optimizer/optimize", func(w http.ResponseWriter, _ *http.Request) {
		env.optimized.Add(1)
		writeJSON(w, http.StatusOK, `{"id":"opt-1","optimized_prompt":"Write a sonnet about autumn.","quality_score_before":4,"quality_score_after":8.5,"optimization_type":"writing","processing_time":1.25,"improvements":[{"type":"specificity","description":"Named the form"}]}`)
	})
	mux.HandleFunc("POST /api/v1/optimizer/evaluate", func(w http.ResponseWriter, _ *http.Request) {
		env.evaluated.Add(1)
		writeJSON(w, http.StatusOK, `{"overall_score":4,"detailed_scores":{"clarity":5},"issues":["vague"]}`)
	})
	mux.HandleFunc("GET /api/v1/health/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"healthy","version":"1.2.0"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	env.cfg = config.AppConfig{
		API:     config.APIConfig{BaseURL: srv.URL + "/api/v1"},
		Storage: config.StorageConfig{Backend: config.StorageMemory},
	}
	env.cfg.Sanitize()
	env.cfg.SilentStartupTeardown = true
	return env
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// exec runs one CLI invocation against a fresh App sharing the env's store, the way
// separate processes share the persisted session.
func (e *cliEnv) exec(t *testing.T, stdin string, args ...string) int {
	t.Helper()
	app, err := bootstrap.NewApp(context.Background(), bootstrap.AppDeps{
		Config: &e.cfg,
		Logger: slog.New(slog.DiscardHandler),
		Store:  e.store,
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, app.Close()) }()

	e.out, e.errOut = &bytes.Buffer{}, &bytes.Buffer{}
	in := bufio.NewReader(strings.NewReader(stdin))
	cc := &commandContext{
		Ctx:      context.Background(),
		Logger:   slog.New(slog.DiscardHandler),
		Config:   e.cfg,
		App:      app,
		Out:      e.out,
		Err:      e.errOut,
		In:       in,
		Password: terminalPassword(e.errOut, in),
	}
	cmd, ok := commands()[args[0]]
	require.True(t, ok, "unknown command %s", args[0])
	return execute(cc, cmd, args[1:])
}

func TestLoginWhoamiLogout(t *testing.T) {
	env := newCLIEnv(t)

	require.Equal(t, 0, env.exec(t, "alice\ns3cret\n", "login"))
	assert.Contains(t, env.out.String(), "Logged in as Alice Example")

	raw, err := env.store.Get(context.Background(), data.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", string(raw))

	require.Equal(t, 0, env.exec(t, "", "whoami"))
	assert.Contains(t, env.out.String(), "alice@example.com")

	require.Equal(t, 0, env.exec(t, "", "status"))
	assert.Contains(t, env.out.String(), "authenticated")

	require.Equal(t, 0, env.exec(t, "", "logout"))
	assert.Equal(t, int32(1), env.logouts.Load())
	assert.Equal(t, 0, env.store.Len())

	assert.Equal(t, 1, env.exec(t, "", "whoami"))
	assert.Contains(t, env.errOut.String(), "not logged in")
}

func TestLoginRejectedRendersNotification(t *testing.T) {
	env := newCLIEnv(t)

	code := env.exec(t, "wrong\n", "login", "-username", "alice")

	assert.Equal(t, 1, code)
	assert.Contains(t, env.errOut.String(), "[error]")
	assert.Equal(t, 0, env.store.Len())
}

func TestRegisterPasswordMismatch(t *testing.T) {
	env := newCLIEnv(t)

	code := env.exec(t, "pw-one\npw-two\n", "register", "-username", "bob", "-email", "bob@example.com")

	assert.Equal(t, 2, code)
	assert.Contains(t, env.errOut.String(), "passwords do not match")
}

func TestRegisterDoesNotLogIn(t *testing.T) {
	env := newCLIEnv(t)

	code := env.exec(t, "pw\npw\n", "register", "-username", "bob", "-email", "bob@example.com")

	require.Equal(t, 0, code)
	assert.Contains(t, env.out.String(), "promptopt login")
	assert.Equal(t, 0, env.store.Len())
}

func TestOptimizeWithEvaluate(t *testing.T) {
	env := newCLIEnv(t)
	require.Equal(t, 0, env.exec(t, "alice\ns3cret\n", "login"))

	code := env.exec(t, "", "optimize", "-type", "writing", "-evaluate", "write", "a", "poem")

	require.Equal(t, 0, code, env.errOut.String())
	out := env.out.String()
	assert.Contains(t, out, "Write a sonnet about autumn.")
	assert.Contains(t, out, "4.0 → 8.5 (+4.5)")
	assert.Contains(t, out, "Named the form")
	assert.Contains(t, out, "1.25s")
	assert.Contains(t, out, "vague")
	assert.Equal(t, int32(1), env.optimized.Load())
	assert.Equal(t, int32(1), env.evaluated.Load())
	assert.Contains(t, env.errOut.String(), "[success] Optimization complete")
}

func TestOptimizeRequiresLogin(t *testing.T) {
	env := newCLIEnv(t)

	assert.Equal(t, 1, env.exec(t, "", "optimize", "hello"))
	assert.Equal(t, int32(0), env.optimized.Load())
}

func TestOptimizeRejectsUnknownType(t *testing.T) {
	env := newCLIEnv(t)
	require.Equal(t, 0, env.exec(t, "alice\ns3cret\n", "login"))

	assert.Equal(t, 2, env.exec(t, "", "optimize", "-type", "poetry", "hello"))
	assert.Equal(t, int32(0), env.optimized.Load())
}

func TestDraftLifecycle(t *testing.T) {
	env := newCLIEnv(t)
	require.Equal(t, 0, env.exec(t, "alice\ns3cret\n", "login"))

	require.Equal(t, 0, env.exec(t, "", "draft", "save", "-type", "code", "refactor", "this"))
	require.Equal(t, 0, env.exec(t, "", "draft", "show"))
	assert.Contains(t, env.out.String(), "refactor this")
	assert.Contains(t, env.out.String(), "code")

	require.Equal(t, 0, env.exec(t, "", "optimize", "-from-draft"))
	assert.Equal(t, int32(1), env.optimized.Load())

	require.Equal(t, 0, env.exec(t, "", "draft", "show"))
	assert.Contains(t, env.out.String(), "No saved draft")

	assert.Equal(t, 2, env.exec(t, "", "draft", "bogus"))
}

func TestStaleTokenIsClearedSilently(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, env.store.Set(context.Background(), data.KeyAccessToken, []byte("stale")))

	require.Equal(t, 0, env.exec(t, "", "status"))

	assert.Contains(t, env.out.String(), "anonymous")
	assert.Empty(t, env.errOut.String())
	assert.Equal(t, 0, env.store.Len())
}

func TestHealth(t *testing.T) {
	env := newCLIEnv(t)

	require.Equal(t, 0, env.exec(t, "", "health"))
	assert.Contains(t, env.out.String(), "healthy (version 1.2.0)")
}

func TestPrintUsageListsCommands(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))
	for name := range commands() {
		assert.Contains(t, buf.String(), name)
	}
}

func TestTerminalPasswordUsesNoEcho(t *testing.T) {
	prevRead, prevTerm := readPassword, isTerminal
	t.Cleanup(func() { readPassword, isTerminal = prevRead, prevTerm })
	isTerminal = func(int) bool { return true }
	readPassword = func(int) ([]byte, error) { return []byte("hidden"), nil }

	var prompt bytes.Buffer
	got, err := terminalPassword(&prompt, bufio.NewReader(strings.NewReader("visible\n")))("Password: ")

	require.NoError(t, err)
	assert.Equal(t, "hidden", got)
	assert.Equal(t, "Password: \n", prompt.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b c", truncate("a\n  b\tc", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
