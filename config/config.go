package config

import (
	"strings"
	"time"
)

// EnvPrefix is prepended to every variable name when the configuration is parsed.
const EnvPrefix = "PROMPTOPT_"

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library with the PROMPTOPT_ prefix. See individual
// domain config files for details on available environment variables:
//   - api.go: Backend endpoint and request pipeline configuration
//   - storage.go: Persisted session state configuration
//   - observability.go: Metrics, notifications and logging configuration
type AppConfig struct {
	// API configures the backend base URL and request pipeline.
	API APIConfig `envPrefix:"API_"`

	// Storage selects where the session token, snapshot and draft are kept.
	Storage StorageConfig `envPrefix:"STORAGE_"`

	// Cache controls advisory caching of GET responses.
	Cache CacheConfig `envPrefix:"CACHE_"`

	// Draft controls optimizer draft autosaving.
	Draft DraftConfig `envPrefix:"DRAFT_"`

	// Observability configuration
	Metrics       MetricsConfig       `envPrefix:"METRICS_"`
	Notifications NotificationsConfig `envPrefix:"NOTIFICATIONS_"`
	Log           LogConfig           `envPrefix:"LOG_"`

	// SilentStartupTeardown hides the error when a persisted token is rejected at startup.
	SilentStartupTeardown bool `env:"SILENT_STARTUP_TEARDOWN" envDefault:"true"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.API.Sanitize()
	c.Storage.Sanitize()
	c.Cache.Sanitize()
	c.Draft.Sanitize()
	c.Metrics.Sanitize()
	c.Notifications.Sanitize()
	c.Log.Sanitize()
}

// CacheConfig controls the advisory response cache.
type CacheConfig struct {
	// TTL is how long Cacheable responses are reused. Zero disables caching.
	TTL time.Duration `env:"TTL" envDefault:"1m"`
}

// Sanitize clamps negative TTLs to disabled.
func (c *CacheConfig) Sanitize() {
	if c.TTL < 0 {
		c.TTL = 0
	}
}

// DraftConfig controls the optimizer draft autosaver.
type DraftConfig struct {
	Debounce time.Duration `env:"DEBOUNCE" envDefault:"1s"`
}

// Sanitize resets non-positive debounce periods to the default.
func (c *DraftConfig) Sanitize() {
	if c.Debounce <= 0 {
		c.Debounce = time.Second
	}
}

func trimLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
