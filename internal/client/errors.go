package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmespath-community/go-jmespath"

	"github.com/target/promptopt-client/internal/domain/notification"
	apperrors "github.com/target/promptopt-client/internal/errors"
)

// Expressions probed, in order, for a display message in an error body.
const (
	exprFieldMessages = "detail[*].msg"
	exprMessage       = "message"
	exprDetail        = "detail"
	exprError         = "error"
)

// errorBody holds what could be extracted from a loosely typed error response.
type errorBody struct {
	message string
	fields  []string
}

// parseErrorBody extracts field messages and a display message. Bodies that are not JSON
// objects yield an empty result and never fail.
func parseErrorBody(body []byte) errorBody {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return errorBody{}
	}
	if _, ok := doc.(map[string]any); !ok {
		return errorBody{}
	}

	var out errorBody
	if v, err := jmespath.Search(exprFieldMessages, doc); err == nil {
		out.fields = stringsOf(v)
	}
	for _, expr := range []string{exprMessage, exprDetail, exprError} {
		v, err := jmespath.Search(expr, doc)
		if err != nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out.message = strings.TrimSpace(s)
			break
		}
	}
	return out
}

func stringsOf(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch s := item.(type) {
		case string:
			if strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		case nil:
		default:
			out = append(out, fmt.Sprint(s))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeStatus maps a non-2xx response onto the error taxonomy.
func normalizeStatus(status int, body []byte) *apperrors.APIError {
	parsed := parseErrorBody(body)
	switch kind := apperrors.KindForStatus(status); kind {
	case apperrors.KindUnauthorized:
		return apperrors.Unauthorized(parsed.message)
	case apperrors.KindForbidden:
		return apperrors.Forbidden(parsed.message)
	case apperrors.KindNotFound:
		return apperrors.NotFound(parsed.message)
	case apperrors.KindValidation:
		// Only a structured field list is specific enough to show; anything else gets the
		// generic validation message.
		return apperrors.Validation("", parsed.fields...)
	case apperrors.KindServer:
		return apperrors.Server(status, parsed.message)
	default:
		return apperrors.Unknown(status, parsed.message)
	}
}

// Notification titles per error kind.
var titles = map[apperrors.Kind]string{
	apperrors.KindNetwork:      "Network error",
	apperrors.KindUnauthorized: "Authentication required",
	apperrors.KindForbidden:    "Access denied",
	apperrors.KindNotFound:     "Not found",
	apperrors.KindValidation:   "Validation failed",
	apperrors.KindServer:       "Server error",
	apperrors.KindUnknown:      "Request failed",
}

// notificationFor builds the single notification pushed for a failed request.
func notificationFor(err *apperrors.APIError) notification.Input {
	typ := notification.TypeError
	if err.Kind == apperrors.KindValidation {
		typ = notification.TypeWarning
	}
	title, ok := titles[err.Kind]
	if !ok {
		title = titles[apperrors.KindUnknown]
	}
	return notification.Input{
		Type:      typ,
		Title:     title,
		Message:   err.Message,
		ErrorKind: string(err.Kind),
		Status:    err.Status,
	}
}
