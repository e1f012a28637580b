package config

import (
	"strings"
	"time"

	"github.com/target/promptopt-client/internal/domain/notification"
)

const defaultObservabilityName = "promptopt"

// MetricsConfig controls emission of metrics to external sinks such as StatsD.
type MetricsConfig struct {
	Enabled       bool   `env:"ENABLED"        envDefault:"false"`
	StatsdAddress string `env:"STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix        string `env:"PREFIX"         envDefault:"promptopt"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *MetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	c.Prefix = strings.TrimSpace(c.Prefix)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
}

// IsEnabled returns true when metrics emission is active after sanitisation.
func (c *MetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}

// NotificationsConfig controls the in-process notification queue and its outbound mirrors.
type NotificationsConfig struct {
	DefaultDuration time.Duration               `env:"DEFAULT_DURATION" envDefault:"4s"`
	Timeout         time.Duration               `env:"TIMEOUT"          envDefault:"5s"`
	RetryLimit      int                         `env:"RETRY_LIMIT"      envDefault:"3"`
	Slack           SlackNotificationConfig     `envPrefix:"SLACK_"`
	PagerDuty       PagerDutyNotificationConfig `envPrefix:"PAGERDUTY_"`
}

// Sanitize normalises notification configuration values.
func (c *NotificationsConfig) Sanitize() {
	if c.DefaultDuration <= 0 {
		c.DefaultDuration = notification.DefaultDuration
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}

	c.Slack.sanitize()
	c.PagerDuty.sanitize()

	if c.Slack.Enabled && c.Slack.WebhookURL == "" {
		c.Slack.Enabled = false
	}
	if c.PagerDuty.Enabled && c.PagerDuty.RoutingKey == "" {
		c.PagerDuty.Enabled = false
	}
}

// MirrorsEnabled reports whether any outbound sink is active.
func (c *NotificationsConfig) MirrorsEnabled() bool {
	return c.Slack.Enabled || c.PagerDuty.Enabled
}

// SlackNotificationConfig controls Slack webhook fan-out.
type SlackNotificationConfig struct {
	Enabled    bool   `env:"ENABLED"     envDefault:"false"`
	WebhookURL string `env:"WEBHOOK_URL"`
	Channel    string `env:"CHANNEL"`
	Username   string `env:"USERNAME"    envDefault:"promptopt"`
}

func (c *SlackNotificationConfig) sanitize() {
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	c.Channel = strings.TrimSpace(c.Channel)
	if c.Username = strings.TrimSpace(c.Username); c.Username == "" {
		c.Username = defaultObservabilityName
	}
}

// PagerDutyNotificationConfig controls PagerDuty Events API v2 escalation of critical failures.
type PagerDutyNotificationConfig struct {
	Enabled    bool   `env:"ENABLED"     envDefault:"false"`
	RoutingKey string `env:"ROUTING_KEY"`
	Source     string `env:"SOURCE"      envDefault:"promptopt-client"`
	Component  string `env:"COMPONENT"   envDefault:"api"`
}

func (c *PagerDutyNotificationConfig) sanitize() {
	c.RoutingKey = strings.TrimSpace(c.RoutingKey)
	if c.Source = strings.TrimSpace(c.Source); c.Source == "" {
		c.Source = "promptopt-client"
	}
	if c.Component = strings.TrimSpace(c.Component); c.Component == "" {
		c.Component = "api"
	}
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
	// File, when set, receives logs through a rotating writer instead of stderr.
	File       string `env:"FILE"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"10"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"3"`
}

// Sanitize normalises the level and file settings.
func (c *LogConfig) Sanitize() {
	switch lvl := trimLower(c.Level); lvl {
	case "debug", "info", "warn", "error":
		c.Level = lvl
	case "warning":
		c.Level = "warn"
	default:
		c.Level = "info"
	}
	c.File = strings.TrimSpace(c.File)
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups < 0 {
		c.MaxBackups = 0
	}
}
