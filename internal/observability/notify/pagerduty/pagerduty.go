package pagerduty

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/target/promptopt-client/internal/domain/notification"
	"github.com/target/promptopt-client/internal/observability/notify"
	"github.com/target/promptopt-client/internal/ports"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Endpoint   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client escalates critical notifications through PagerDuty's Events API v2.
// Notifications below critical severity are ignored.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	retryLimit int
	client     *http.Client
}

var _ ports.NotificationSink = (*Client)(nil)

// NewClient constructs a PagerDuty events client from config. Callers must provide a routing key.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		routingKey: key,
		source:     fallbackString(cfg.Source, "promptopt-client"),
		component:  fallbackString(cfg.Component, "api"),
		endpoint:   fallbackString(cfg.Endpoint, APIEndpoint),
		retryLimit: max(cfg.RetryLimit, 0),
		client:     hc,
	}, nil
}

// Name implements ports.NotificationSink.
func (c *Client) Name() string { return "pagerduty" }

// Send submits a trigger event for critical notifications.
func (c *Client) Send(ctx context.Context, n notification.Notification) error {
	if notify.Severity(n) != notify.SeverityCritical {
		return nil
	}

	body, err := json.Marshal(c.buildEvent(n))
	if err != nil {
		return fmt.Errorf("encode pagerduty payload: %w", err)
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		err = c.submit(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < attempts-1 {
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return lastErr
}

func (c *Client) buildEvent(n notification.Notification) map[string]any {
	occurredAt := n.Timestamp.UTC()
	if n.Timestamp.IsZero() {
		occurredAt = time.Now().UTC()
	}

	kind := fallbackString(n.ErrorKind, "unknown")
	return map[string]any{
		"routing_key":  c.routingKey,
		"event_action": "trigger",
		// One open incident per failure kind and status.
		"dedup_key": fmt.Sprintf("%s:%s:%d", c.source, kind, n.Status),
		"payload": map[string]any{
			"summary":   fmt.Sprintf("%s: %s", fallbackString(n.Title, "Request failed"), fallbackString(n.Message, kind)),
			"severity":  notify.SeverityCritical,
			"source":    c.source,
			"component": c.component,
			"timestamp": occurredAt.Format(time.RFC3339),
			"custom_details": map[string]any{
				"notification_id": n.ID,
				"error_kind":      kind,
				"status":          n.Status,
				"message":         n.Message,
			},
		},
	}
}

func fallbackString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func (c *Client) submit(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create pagerduty request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pagerduty request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("read pagerduty error response: %w", readErr)
		}
		return fmt.Errorf("pagerduty api %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain pagerduty response body: %w", err)
	}
	return nil
}
