package config

import (
	"strings"
	"time"
)

const (
	defaultAPIBaseURL = "http://localhost:8000/api/v1"
	defaultAPITimeout = 30 * time.Second
)

// APIConfig configures the backend endpoint.
type APIConfig struct {
	// BaseURL is the single backend base-URL override.
	BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:8000/api/v1"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"30s"`
	// RetryBackoff is multiplied by the attempt number between opted-in retries.
	RetryBackoff time.Duration `env:"RETRY_BACKOFF" envDefault:"200ms"`
}

// Sanitize trims the base URL and resets invalid durations.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultAPIBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultAPITimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
}
