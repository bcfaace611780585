package apperr

import (
	"errors"
	"net/http"
)

// Type categorizes a caller-facing error for consistent messaging and status codes.
type Type string

const (
	InvalidRequest   Type = "invalid_request"
	NotFound         Type = "not_found"
	NotLinked        Type = "not_linked"
	Unauthorized     Type = "unauthorized"
	Forbidden        Type = "forbidden"
	Conflict         Type = "conflict"
	UpstreamRejected Type = "upstream_rejected"
	UpstreamProtocol Type = "upstream_protocol"
	StoreUnavailable Type = "store_unavailable"
	RateLimited      Type = "rate_limited"
	Internal         Type = "internal"
)

// Error is a structured caller-facing error.
type Error struct {
	Type    Type
	Message string
	Err     error // optional underlying error
	Status  int   // overrides the type's status when non-zero
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// New constructs a new Error.
func New(t Type, msg string, err error) *Error { return &Error{Type: t, Message: msg, Err: err} }

// WithStatus constructs an Error that reports a specific HTTP status, used
// when an upstream status is forwarded to the caller.
func WithStatus(t Type, status int, msg string, err error) *Error {
	return &Error{Type: t, Message: msg, Err: err, Status: status}
}

// TypeOf returns the Type of the first *Error in err's chain, or Internal.
func TypeOf(err error) Type {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return Internal
}

// Is reports whether err carries an *Error of type t.
func Is(err error, t Type) bool {
	return err != nil && TypeOf(err) == t
}

// HTTPStatus maps an error type to its response status.
func HTTPStatus(t Type) int {
	switch t {
	case InvalidRequest:
		return http.StatusBadRequest
	case NotFound, NotLinked:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case UpstreamRejected, UpstreamProtocol:
		return http.StatusBadGateway
	case StoreUnavailable:
		return http.StatusServiceUnavailable
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf returns the HTTP status for err, honoring an explicit Status.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		if e.Status != 0 {
			return e.Status
		}
		return HTTPStatus(e.Type)
	}
	return http.StatusInternalServerError
}
