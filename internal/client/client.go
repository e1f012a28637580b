// Package client is the single chokepoint for backend HTTP calls. It attaches the bearer
// token, bounds every call with a timeout, normalizes failures into *errors.APIError,
// pushes one notification per failure and tears the session down on 401.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/target/promptopt-client/internal/domain/notification"
	apperrors "github.com/target/promptopt-client/internal/errors"
	obserrors "github.com/target/promptopt-client/internal/observability/errors"
	"github.com/target/promptopt-client/internal/observability/metrics"
	"github.com/target/promptopt-client/internal/observability/statsd"
)

const (
	// DefaultBaseURL is used when no base URL override is configured.
	DefaultBaseURL = "http://localhost:8000/api/v1"
	// DefaultTimeout bounds each call.
	DefaultTimeout = 30 * time.Second
	// DefaultRetryBackoff is multiplied by the attempt number between retries.
	DefaultRetryBackoff = 200 * time.Millisecond

	maxResponseBytes = 8 << 20
)

// ErrEmptyPath is wrapped into the returned error when a request has no path.
var ErrEmptyPath = errors.New("request path is required")

// ErrOffSiteRedirect is wrapped into the network error returned when the backend redirects
// outside its registrable domain.
var ErrOffSiteRedirect = errors.New("redirect leaves the backend site")

const maxRedirects = 10

// Notifier receives the user-facing side effects of a failed request.
type Notifier interface {
	Add(in notification.Input) notification.Notification
	SetLastError(err *apperrors.APIError)
}

// Options configure a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	// Tokens supplies the bearer token. A nil source or an empty token sends no Authorization header.
	Tokens oauth2.TokenSource
	// OnUnauthorized clears persisted credentials and resets the session after a 401.
	OnUnauthorized func(ctx context.Context)
	Notifier       Notifier
	Metrics        statsd.Sink
	// CacheTTL is how long Cacheable GET responses are reused. Zero disables caching.
	CacheTTL     time.Duration
	RetryBackoff time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// Client issues requests against the backend.
type Client struct {
	baseURL        string
	timeout        time.Duration
	http           *http.Client
	tokens         oauth2.TokenSource
	onUnauthorized func(ctx context.Context)
	notifier       Notifier
	metrics        statsd.Sink
	cache          *cache.Cache
	cacheTTL       time.Duration
	retryBackoff   time.Duration
	logger         *slog.Logger
	now            func() time.Time

	teardown singleflight.Group
}

// New creates a Client from opts.
func New(opts Options) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", base)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout, CheckRedirect: sameSiteRedirects(u)}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	sink := opts.Metrics
	if sink == nil {
		sink = statsd.Nop{}
	}

	c := &Client{
		baseURL:        strings.TrimRight(u.String(), "/"),
		timeout:        timeout,
		http:           hc,
		tokens:         opts.Tokens,
		onUnauthorized: opts.OnUnauthorized,
		notifier:       opts.Notifier,
		metrics:        sink,
		cacheTTL:       opts.CacheTTL,
		retryBackoff:   backoff,
		logger:         logger.With("component", "api_client"),
		now:            now,
	}
	if opts.CacheTTL > 0 {
		c.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return c, nil
}

// BaseURL returns the normalized backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Get issues a GET request and decodes the unwrapped payload into out (which may be nil).
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodGet, path, nil, out, opts)
}

// Post issues a POST request with body encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPost, path, body, out, opts)
}

// Put issues a PUT request with body encoded as JSON.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPut, path, body, out, opts)
}

// Patch issues a PATCH request with body encoded as JSON.
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPatch, path, body, out, opts)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodDelete, path, nil, out, opts)
}

// InvalidateCache drops every cached response.
func (c *Client) InvalidateCache() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

// response is one completed HTTP exchange.
type response struct {
	status int
	body   []byte
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, opts []RequestOption) error {
	if strings.TrimSpace(path) == "" {
		return apperrors.Wrap(ErrEmptyPath, apperrors.KindUnknown, ErrEmptyPath.Error())
	}
	ro := collectOptions(opts)

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, apperrors.KindUnknown, "encode request body")
		}
		payload = encoded
	}

	target := c.resolve(path, ro.query)
	token := c.bearer()
	if ro.hasBearer {
		token = strings.TrimSpace(ro.bearer)
	}
	cacheKey := ""
	if ro.cacheable && method == http.MethodGet && c.cache != nil {
		cacheKey = cacheKeyFor(method, target, token)
		if cached, ok := c.cache.Get(cacheKey); ok {
			c.logger.DebugContext(ctx, "serving cached response", "path", path)
			return decodeInto(cached.([]byte), out)
		}
	}

	start := c.now()
	resp, attempts, apiErr := c.exchange(ctx, method, target, token, payload, ro)
	if apiErr == nil {
		apiErr = c.unwrap(resp, out, cacheKey)
	}

	status := 0
	if resp != nil {
		status = resp.status
	}
	kind := ""
	if apiErr != nil {
		kind = string(apiErr.Kind)
	}
	metrics.EmitRequest(c.metrics, metrics.RequestMetric{
		Method:   method,
		Endpoint: endpointTag(path),
		Kind:     kind,
		Status:   status,
		Attempts: attempts,
		Duration: c.now().Sub(start),
	})

	if apiErr != nil {
		c.fail(ctx, method, path, apiErr, ro)
		return apiErr
	}
	return nil
}

// exchange performs the request, re-issuing it on network or server failures while retries remain.
func (c *Client) exchange(
	ctx context.Context,
	method, target, token string,
	payload []byte,
	ro requestOptions,
) (*response, int, *apperrors.APIError) {
	attempts := ro.retries + 1
	var (
		resp   *response
		apiErr *apperrors.APIError
	)
	for attempt := range attempts {
		resp, apiErr = c.once(ctx, method, target, token, payload, ro)
		if apiErr == nil || attempt == attempts-1 || !retryable(apiErr) || ctx.Err() != nil {
			return resp, attempt + 1, apiErr
		}

		delay := time.Duration(attempt+1) * c.retryBackoff
		c.logger.DebugContext(ctx, "retrying request",
			"method", method, "attempt", attempt+1, "delay", delay, "kind", apiErr.Kind)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return resp, attempt + 1, apiErr
		case <-timer.C:
		}
	}
	return resp, attempts, apiErr
}

func (c *Client) once(
	ctx context.Context,
	method, target, token string,
	payload []byte,
	ro requestOptions,
) (*response, *apperrors.APIError) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(callCtx, method, target, reader)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindUnknown, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range ro.headers {
		req.Header.Set(k, v)
	}
	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Network(err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.Network(fmt.Errorf("read response body: %w", err))
	}

	resp := &response{status: res.StatusCode, body: body}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return resp, normalizeStatus(res.StatusCode, body)
	}
	return resp, nil
}

// unwrap strips the envelope from a successful response, decodes it into out and caches it.
func (c *Client) unwrap(resp *response, out any, cacheKey string) *apperrors.APIError {
	data, apiErr := unwrapEnvelope(resp.status, resp.body)
	if apiErr != nil {
		return apiErr
	}
	if err := decodeInto(data, out); err != nil {
		return apperrors.Wrap(err, apperrors.KindUnknown, "unexpected response from server")
	}
	if cacheKey != "" {
		c.cache.Set(cacheKey, data, c.cacheTTL)
	}
	return nil
}

func (c *Client) fail(ctx context.Context, method, path string, apiErr *apperrors.APIError, ro requestOptions) {
	c.logger.WarnContext(ctx, "request failed",
		"method", method,
		"path", path,
		"kind", apiErr.Kind,
		"status", apiErr.Status,
		"error_class", obserrors.Classify(apiErr),
		"error", apiErr,
	)

	if apiErr.Kind == apperrors.KindUnauthorized && !ro.hasBearer {
		c.handleUnauthorized(ctx)
	}

	if c.notifier == nil || quiet(ctx) {
		return
	}
	c.notifier.SetLastError(apiErr)
	c.notifier.Add(notificationFor(apiErr))
}

// handleUnauthorized flushes cached responses and resets the session. Concurrent 401s
// collapse into a single teardown.
func (c *Client) handleUnauthorized(ctx context.Context) {
	_, _, _ = c.teardown.Do("unauthorized", func() (any, error) {
		c.InvalidateCache()
		if c.onUnauthorized != nil {
			c.onUnauthorized(context.WithoutCancel(ctx))
		}
		return nil, nil
	})
}

func (c *Client) bearer() string {
	if c.tokens == nil {
		return ""
	}
	tok, err := c.tokens.Token()
	if err != nil || tok == nil {
		return ""
	}
	return strings.TrimSpace(tok.AccessToken)
}

func (c *Client) resolve(path string, query url.Values) string {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}
	return target
}

func retryable(err *apperrors.APIError) bool {
	return err.Kind == apperrors.KindNetwork || err.Kind == apperrors.KindServer
}

func decodeInto(data []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	return json.Unmarshal(data, out)
}

func endpointTag(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// sameSiteRedirects keeps redirects within the registrable domain (eTLD+1) of base, so the
// bearer token and request body never follow the backend to another site.
func sameSiteRedirects(base *url.URL) func(*http.Request, []*http.Request) error {
	site := registrableDomain(base.Hostname())
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if host := req.URL.Hostname(); registrableDomain(host) != site {
			return fmt.Errorf("%w: %s", ErrOffSiteRedirect, host)
		}
		return nil
	}
}

// registrableDomain returns the eTLD+1 of host. IP addresses, single-label hosts and hosts
// that are themselves public suffixes are returned as-is.
func registrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
