package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// RequestOption tweaks a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	cacheable bool
	retries   int
	headers   map[string]string
	query     url.Values

	// bearer overrides the session token when hasBearer is set.
	bearer    string
	hasBearer bool
}

// Cacheable marks a GET response as reusable for the client's cache TTL.
// It is advisory: without a configured TTL it has no effect.
func Cacheable() RequestOption {
	return func(o *requestOptions) { o.cacheable = true }
}

// Retries re-issues the request up to n more times on network or server failures.
// Only the final failure is reported.
func Retries(n int) RequestOption {
	return func(o *requestOptions) { o.retries = max(n, 0) }
}

// Header sets a request header.
func Header(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// BearerToken sends token instead of the session's current token. A 401 answered to such a
// request belongs to token alone and does not tear the session down.
func BearerToken(token string) RequestOption {
	return func(o *requestOptions) {
		o.bearer = token
		o.hasBearer = true
	}
}

// Query appends URL query parameters.
func Query(values url.Values) RequestOption {
	return func(o *requestOptions) {
		if o.query == nil {
			o.query = url.Values{}
		}
		for k, vs := range values {
			for _, v := range vs {
				o.query.Add(k, v)
			}
		}
	}
}

func collectOptions(opts []RequestOption) requestOptions {
	var ro requestOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&ro)
		}
	}
	return ro
}

// cacheKeyFor scopes cached responses to the bearer token so users never share entries.
func cacheKeyFor(method, target, token string) string {
	sum := sha256.Sum256([]byte(token))
	return method + " " + target + " " + hex.EncodeToString(sum[:8])
}

type quietKey struct{}

// WithoutNotifications returns a context under which failed requests are still normalized,
// logged and returned but push no notification and leave the last-error slot untouched.
func WithoutNotifications(ctx context.Context) context.Context {
	return context.WithValue(ctx, quietKey{}, true)
}

func quiet(ctx context.Context) bool {
	v, _ := ctx.Value(quietKey{}).(bool)
	return v
}
