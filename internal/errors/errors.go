package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind represents a category of normalized API failure.
type Kind string

const (
	// KindNetwork indicates no response was received (connection refused, DNS failure, timeout).
	KindNetwork Kind = "network"
	// KindUnauthorized indicates the backend rejected the credentials (HTTP 401).
	KindUnauthorized Kind = "unauthorized"
	// KindForbidden indicates the caller lacks permission (HTTP 403).
	KindForbidden Kind = "forbidden"
	// KindNotFound indicates the resource does not exist (HTTP 404).
	KindNotFound Kind = "not_found"
	// KindValidation indicates the backend rejected the input (HTTP 422).
	KindValidation Kind = "validation"
	// KindServer indicates a backend failure (HTTP 500/502/503/504).
	KindServer Kind = "server"
	// KindUnknown covers every other failure.
	KindUnknown Kind = "unknown"
)

// Default display messages per kind.
const (
	MessageNetwork      = "network error, please check your connection"
	MessageUnauthorized = "unauthorized, please log in again"
	MessageForbidden    = "permission denied for this resource"
	MessageNotFound     = "the requested resource does not exist"
	MessageValidation   = "input validation failed"
	MessageServer       = "server error, please try again later"
	MessageUnknown      = "unknown error"
)

// Kinds lists every kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindNetwork, KindUnauthorized, KindForbidden, KindNotFound,
		KindValidation, KindServer, KindUnknown,
	}
}

// DefaultMessage returns the display message used when the backend supplied none.
func (k Kind) DefaultMessage() string {
	switch k {
	case KindNetwork:
		return MessageNetwork
	case KindUnauthorized:
		return MessageUnauthorized
	case KindForbidden:
		return MessageForbidden
	case KindNotFound:
		return MessageNotFound
	case KindValidation:
		return MessageValidation
	case KindServer:
		return MessageServer
	default:
		return MessageUnknown
	}
}

// APIError is the normalized shape of every transport or HTTP failure.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type APIError struct {
	// Kind categorizes the failure
	Kind Kind
	// Message is a human-readable display message
	Message string
	// Status is the HTTP status code, zero when no response was received
	Status int
	// Timestamp records when the failure was normalized
	Timestamp time.Time
	// Fields holds field-level validation messages (validation kind only)
	Fields []string
	// Cause is the underlying transport error (optional)
	Cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *APIError) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, status int, message string) *APIError {
	if strings.TrimSpace(message) == "" {
		message = kind.DefaultMessage()
	}
	return &APIError{
		Kind:      kind,
		Message:   message,
		Status:    status,
		Timestamp: time.Now(),
	}
}

// Network creates a network error wrapping the transport failure.
func Network(cause error) *APIError {
	e := newError(KindNetwork, 0, "")
	e.Cause = cause
	return e
}

// Unauthorized creates a new Unauthorized error.
func Unauthorized(message string) *APIError {
	return newError(KindUnauthorized, 401, message)
}

// Forbidden creates a new Forbidden error.
func Forbidden(message string) *APIError {
	return newError(KindForbidden, 403, message)
}

// NotFound creates a new NotFound error.
func NotFound(message string) *APIError {
	return newError(KindNotFound, 404, message)
}

// Validation creates a new Validation error. When fields are present the message is
// their comma-joined form.
func Validation(message string, fields ...string) *APIError {
	if len(fields) > 0 {
		message = strings.Join(fields, ", ")
	}
	e := newError(KindValidation, 422, message)
	e.Fields = fields
	return e
}

// Validationf creates a client-side Validation error with a formatted message and no status.
func Validationf(format string, args ...any) *APIError {
	return newError(KindValidation, 0, fmt.Sprintf(format, args...))
}

// Server creates a new Server error for the given status.
func Server(status int, message string) *APIError {
	return newError(KindServer, status, message)
}

// Unknown creates a new Unknown error for the given status.
func Unknown(status int, message string) *APIError {
	return newError(KindUnknown, status, message)
}

// Wrap wraps an existing error with an APIError of the given kind, preserving the cause.
func Wrap(err error, kind Kind, message string) *APIError {
	if err == nil {
		return nil
	}
	e := newError(kind, 0, message)
	e.Cause = err
	return e
}

// KindForStatus maps an HTTP status code onto the taxonomy.
func KindForStatus(status int) Kind {
	switch status {
	case 401:
		return KindUnauthorized
	case 403:
		return KindForbidden
	case 404:
		return KindNotFound
	case 422:
		return KindValidation
	case 500, 502, 503, 504:
		return KindServer
	default:
		return KindUnknown
	}
}

// As extracts the APIError from err. Any non-API error is normalized into the unknown kind
// so callers never deal with raw transport errors.
func As(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Wrap(err, KindUnknown, err.Error())
}

func isKind(err error, kind Kind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// IsNetwork checks if an error is a Network error.
func IsNetwork(err error) bool {
	return isKind(err, KindNetwork)
}

// IsUnauthorized checks if an error is an Unauthorized error.
func IsUnauthorized(err error) bool {
	return isKind(err, KindUnauthorized)
}

// IsForbidden checks if an error is a Forbidden error.
func IsForbidden(err error) bool {
	return isKind(err, KindForbidden)
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isKind(err, KindNotFound)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isKind(err, KindValidation)
}

// IsServer checks if an error is a Server error.
func IsServer(err error) bool {
	return isKind(err, KindServer)
}

// KindOf returns the Kind from an error, or empty string if not an APIError.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// StatusOf returns the HTTP status from an error, or zero if none.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// MessageOf returns the display message for err. Non-API errors yield their Error() text.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
