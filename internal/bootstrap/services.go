package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/target/promptopt-client/config"
	"github.com/target/promptopt-client/internal/client"
	"github.com/target/promptopt-client/internal/data"
	domainauth "github.com/target/promptopt-client/internal/domain/auth"
	"github.com/target/promptopt-client/internal/observability/notify/pagerduty"
	"github.com/target/promptopt-client/internal/observability/notify/slack"
	"github.com/target/promptopt-client/internal/observability/statsd"
	"github.com/target/promptopt-client/internal/ports"
	"github.com/target/promptopt-client/internal/service"
	"github.com/target/promptopt-client/internal/service/failurenotifier"
)

// App holds every long-lived component of the client.
type App struct {
	Client        *client.Client
	Session       *service.SessionManager
	Notifications *service.NotificationCenter
	Optimizer     *service.OptimizerService
	Drafts        *service.DraftAutosaver
	Observability ObservabilityContainer

	closers []func() error
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// MetricsSink is nil when metrics are disabled.
	MetricsSink     *statsd.Client
	MetricsConfig   config.MetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.NotificationsConfig
}

// AppDeps groups dependencies for App construction.
type AppDeps struct {
	Config *config.AppConfig
	Logger *slog.Logger
	// Store overrides the configured storage backend. Optional.
	Store ports.StateStore
	// HTTPClient overrides the transport used for backend calls. Optional.
	HTTPClient *http.Client
	Clock      ports.Clock
}

// NewApp wires storage, observability, the request pipeline and the services on top of it.
func NewApp(ctx context.Context, deps AppDeps) (*App, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{}

	store := deps.Store
	if store == nil {
		opened, closeStore, err := OpenStateStore(ctx, StorageConfig{Storage: cfg.Storage, Logger: logger})
		if err != nil {
			return nil, err
		}
		store = opened
		app.closers = append(app.closers, closeStore)
	}

	app.Observability = buildObservability(logger, cfg.Metrics, cfg.Notifications, cfg.API.BaseURL)
	var metricsSink statsd.Sink = statsd.Nop{}
	if app.Observability.MetricsSink != nil {
		metricsSink = app.Observability.MetricsSink
		app.closers = append(app.closers, app.Observability.MetricsSink.Close)
	}

	app.Notifications = service.NewNotificationCenter(service.NotificationCenterOptions{
		Clock:           deps.Clock,
		Logger:          logger,
		Metrics:         metricsSink,
		DefaultDuration: cfg.Notifications.DefaultDuration,
		Mirror:          app.Observability.FailureNotifier,
	})

	if err := app.buildPipeline(cfg, deps, store, metricsSink, logger); err != nil {
		return nil, errors.Join(err, app.Close())
	}
	return app, nil
}

func (app *App) buildPipeline(
	cfg *config.AppConfig,
	deps AppDeps,
	store ports.StateStore,
	metricsSink statsd.Sink,
	logger *slog.Logger,
) error {
	sessionRepo, err := data.NewSessionRepo(store, logger)
	if err != nil {
		return fmt.Errorf("create session repo: %w", err)
	}
	draftRepo, err := data.NewDraftRepo(store, logger)
	if err != nil {
		return fmt.Errorf("create draft repo: %w", err)
	}

	// The client reads its token from app.Session and tears it down on 401; both resolve lazily.
	api, err := client.New(client.Options{
		BaseURL:      cfg.API.BaseURL,
		Timeout:      cfg.API.Timeout,
		HTTPClient:   deps.HTTPClient,
		Tokens:       client.SessionTokenSource{Provider: sessionTokens{app: app}},
		Notifier:     app.Notifications,
		Metrics:      metricsSink,
		CacheTTL:     cfg.Cache.TTL,
		RetryBackoff: cfg.API.RetryBackoff,
		Logger:       logger,
		OnUnauthorized: func(ctx context.Context) {
			if app.Session != nil {
				app.Session.Teardown(ctx)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}
	app.Client = api

	app.Session, err = service.NewSessionManager(service.SessionManagerOptions{
		Gateway:               client.NewAuthAPI(api),
		Repo:                  sessionRepo,
		Logger:                logger,
		Metrics:               metricsSink,
		Clock:                 deps.Clock,
		SilentStartupTeardown: cfg.SilentStartupTeardown,
	})
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}
	// Cached responses belong to the identity that fetched them.
	app.Session.Subscribe(func(s domainauth.Session) {
		if !s.IsAuthenticated {
			api.InvalidateCache()
		}
	})

	app.Optimizer, err = service.NewOptimizerService(service.OptimizerServiceOptions{
		API:    client.NewOptimizerAPI(api),
		Center: app.Notifications,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("create optimizer service: %w", err)
	}

	app.Drafts, err = service.NewDraftAutosaver(service.DraftAutosaverOptions{
		Repo:     draftRepo,
		Clock:    deps.Clock,
		Debounce: cfg.Draft.Debounce,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create draft autosaver: %w", err)
	}
	return nil
}

// Close flushes the pending draft, waits for background work and releases connections.
func (app *App) Close() error {
	var errs []error
	if app.Session != nil {
		app.Session.Wait()
	}
	if app.Drafts != nil {
		if err := app.Drafts.Flush(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("flush draft: %w", err))
		}
	}
	if app.Notifications != nil {
		app.Notifications.Wait()
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

// sessionTokens defers the session lookup until the first request.
type sessionTokens struct {
	app *App
}

func (s sessionTokens) Token() string {
	if s.app.Session == nil {
		return ""
	}
	return s.app.Session.Token()
}

// buildObservability configures metrics and notification adapters.
func buildObservability(
	logger *slog.Logger,
	metricsCfg config.MetricsConfig,
	notifyCfg config.NotificationsConfig,
	backendURL string,
) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if metricsCfg.IsEnabled() {
		sc, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: metricsCfg.StatsdAddress,
			Prefix:  metricsCfg.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = sc
		}
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   metricsCfg,
		FailureNotifier: buildFailureNotifier(obsLogger, notifyCfg, backendURL),
		NotifierConfig:  notifyCfg,
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.NotificationsConfig, backendURL string) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.MirrorsEnabled() {
		return failurenotifier.NewService(failurenotifier.Options{Logger: baseLogger})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		sink, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
			BackendURL: backendURL,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "slack",
				Sink: sink,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		sink, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "pagerduty",
				Sink: sink,
			})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger,
		Sinks:  sinks,
	})
}
