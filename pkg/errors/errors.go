package errors

import (
	"errors"
	"fmt"
)

// Type classifies failures from the upstream API and the cache layer.
type Type string

const (
	TypeNetwork        Type = "network"
	TypeTimeout        Type = "timeout"
	TypeRateLimit      Type = "rate_limit"
	TypeQuotaExhausted Type = "quota_exhausted"
	TypeNotFound       Type = "not_found"
	TypeUpstream       Type = "upstream"
	TypeCache          Type = "cache"
)

// Error represents a classified API error.
type Error struct {
	Type    Type
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New creates a classified error.
func New(t Type, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Code: code}
}

// IsRetryable reports whether an error type is transient and worth retrying.
func IsRetryable(t Type) bool {
	switch t {
	case TypeNetwork, TypeTimeout, TypeRateLimit, TypeUpstream:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode reports whether an HTTP status code indicates a
// transient failure. Quota exhaustion (402) is deliberately absent: it is
// terminal for the session.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // network error, no response
		return true
	case 408, 413, 429:
		return true
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// TypeOf returns the classified type of err, or TypeUpstream for
// unclassified errors.
func TypeOf(err error) Type {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Type
	}
	return TypeUpstream
}

// Is reports whether err is a classified error of the given type.
func Is(err error, t Type) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Type == t
}

// IsQuotaExhausted reports whether err signals the upstream plan limit.
func IsQuotaExhausted(err error) bool { return Is(err, TypeQuotaExhausted) }

// IsNotFound reports whether err signals a missing account.
func IsNotFound(err error) bool { return Is(err, TypeNotFound) }

// IsRateLimited reports whether err signals upstream rate limiting.
func IsRateLimited(err error) bool { return Is(err, TypeRateLimit) }
