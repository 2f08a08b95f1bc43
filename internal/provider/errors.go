package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies provider failures for the retry policy.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindServerError ErrorKind = "server_error"
	KindClientError ErrorKind = "client_error"
)

// Error is a classified provider failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	return e.Kind != KindClientError
}

// NewError wraps err with kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindForStatus maps an HTTP status code to an ErrorKind.
func KindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code >= 500:
		return KindServerError
	default:
		return KindClientError
	}
}

// FromStatus builds an Error for an HTTP failure.
func FromStatus(code int, err error) *Error {
	return &Error{Kind: KindForStatus(code), StatusCode: code, Err: err}
}

// Classify returns err as an *Error, deriving a kind for unclassified errors.
// Deadlines, cancellations and network timeouts are timeouts; other network
// errors are server errors; anything else is a client error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewError(KindTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewError(KindTimeout, err)
		}
		return NewError(KindServerError, err)
	}
	return NewError(KindClientError, err)
}

// IsRetryable is the retry predicate for the dispatch loop.
func IsRetryable(err error) bool {
	return Classify(err).Retryable()
}
