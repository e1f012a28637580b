package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/target/promptopt-client/config"
	"github.com/target/promptopt-client/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
	// anonymous commands skip session restore.
	anonymous bool
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	App    *bootstrap.App

	Out io.Writer
	Err io.Writer
	In  *bufio.Reader
	// Password reads a secret without echo when stdin is a terminal.
	Password func(prompt string) (string, error)
}

// errUsage marks errors caused by bad arguments; they exit with status 2.
var errUsage = errors.New("usage error")

func main() {
	os.Exit(run(os.Args[1:])) //nolint:forbidigo // CLI must propagate command status to the shell
}

func run(args []string) int {
	if len(args) < 1 {
		_ = printUsage(os.Stdout)
		return 2
	}

	cmdName := args[0]
	cmd, ok := commands()[cmdName]
	if !ok {
		_ = writef(os.Stderr, "unknown command %q\n\n", cmdName)
		_ = printUsage(os.Stderr)
		return 2
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		_ = writef(os.Stderr, "load config: %v\n", err)
		return 1
	}

	logger, logCloser := bootstrap.InitLogger(cfg.Log)
	defer func() { _ = logCloser.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, bootstrap.AppDeps{Config: &cfg, Logger: logger})
	if err != nil {
		logger.ErrorContext(ctx, "initialise client", "error", err)
		_ = writef(os.Stderr, "initialise client: %v\n", err)
		return 1
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.ErrorContext(ctx, "shutdown", "error", cerr)
		}
	}()

	stdin := bufio.NewReader(os.Stdin)
	cmdCtx := &commandContext{
		Ctx:      ctx,
		Logger:   logger,
		Config:   cfg,
		App:      app,
		Out:      os.Stdout,
		Err:      os.Stderr,
		In:       stdin,
		Password: terminalPassword(os.Stderr, stdin),
	}
	return execute(cmdCtx, cmd, args[1:])
}

// execute restores the session, runs cmd and renders the notifications it raised.
func execute(cc *commandContext, cmd command, args []string) int {
	if !cmd.anonymous {
		if err := cc.App.Session.Restore(cc.Ctx); err != nil {
			cc.Logger.WarnContext(cc.Ctx, "restore session", "error", err)
		}
	}

	runErr := cmd.run(cc, args)

	if err := renderNotifications(cc.Err, cc.App.Notifications.List()); err != nil {
		cc.Logger.WarnContext(cc.Ctx, "render notifications", "error", err)
	}

	switch {
	case runErr == nil:
		return 0
	case errors.Is(runErr, flag.ErrHelp):
		return 0
	case errors.Is(runErr, errUsage):
		_ = writef(cc.Err, "%v\n", runErr)
		return 2
	default:
		cc.Logger.ErrorContext(cc.Ctx, "command failed", "command", cmd.name, "error", runErr)
		_ = writef(cc.Err, "%s: %v\n", cmd.name, runErr)
		return 1
	}
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			description: "Sign in and persist the session",
			run:         runLogin,
		},
		"register": {
			name:        "register",
			description: "Create an account (does not sign in)",
			run:         runRegister,
			anonymous:   true,
		},
		"logout": {
			name:        "logout",
			description: "Sign out and clear the persisted session",
			run:         runLogout,
		},
		"whoami": {
			name:        "whoami",
			description: "Fetch the signed-in user from the backend",
			run:         runWhoami,
		},
		"status": {
			name:        "status",
			description: "Show the local session state",
			run:         runStatus,
		},
		"optimize": {
			name:        "optimize",
			description: "Optimize a prompt (reads stdin when no prompt is given)",
			run:         runOptimize,
		},
		"evaluate": {
			name:        "evaluate",
			description: "Score a prompt without rewriting it",
			run:         runEvaluate,
		},
		"history": {
			name:        "history",
			description: "List past optimizations",
			run:         runHistory,
		},
		"health": {
			name:        "health",
			description: "Check backend health",
			run:         runHealth,
			anonymous:   true,
		},
		"draft": {
			name:        "draft",
			description: "Show, save or discard the optimizer draft",
			run:         runDraft,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: promptopt <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := writef(w, "  %-10s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func newFlagSet(cc *commandContext, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cc.Err)
	return fs
}

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	return nil
}
