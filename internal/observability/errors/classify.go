package errors

import (
	"context"
	goerrors "errors"
	"net"
	"reflect"
	"strings"

	apperrors "github.com/target/promptopt-client/internal/errors"
)

// Classify returns a normalized error class suitable for tagging metrics and logs.
// Normalized API errors are classified by kind; context and net errors get fixed names;
// anything else is named after its innermost concrete type in snake_case-ish form.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	if kind := apperrors.KindOf(err); kind != "" {
		if kind == apperrors.KindNetwork {
			if sub := classifyTransport(err); sub != "" {
				return "network_" + sub
			}
		}
		return string(kind)
	}

	if sub := classifyTransport(err); sub != "" {
		return sub
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}

func classifyTransport(err error) string {
	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	}
	var netErr net.Error
	if goerrors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var dnsErr *net.DNSError
	if goerrors.As(err, &dnsErr) {
		return "dns"
	}
	var opErr *net.OpError
	if goerrors.As(err, &opErr) {
		return "dial"
	}
	return ""
}
