// Package apierr classifies failures from the external services so the retry
// layer can tell transient trouble from fatal errors without inspecting HTTP
// responses itself.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Error is the single error type used for all external-service failures.
type Error struct {
	Message    string
	StatusCode int
	Retryable  bool
	// RetryAfter is a server-supplied wait hint (from a 429); zero when the
	// server gave none.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a fatal service error.
func New(msg string, statusCode int) *Error {
	return &Error{Message: msg, StatusCode: statusCode}
}

// Transient wraps a network-level failure (timeout, connection reset) that is
// always worth retrying.
func Transient(msg string, err error) *Error {
	return &Error{Message: msg, StatusCode: http.StatusInternalServerError, Retryable: true, Err: err}
}

// RateLimit builds a 429 error carrying the server's wait hint; zero means the
// server gave none and the caller's computed delay applies.
func RateLimit(msg string, retryAfter time.Duration) *Error {
	return &Error{Message: msg, StatusCode: http.StatusTooManyRequests, Retryable: true, RetryAfter: retryAfter}
}

// FromResponse classifies an HTTP status: 429 becomes a rate-limit error with
// the Retry-After hint, 5xx is retryable, any other 4xx is fatal.
func FromResponse(msg string, resp *http.Response) *Error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return RateLimit(msg, retryAfterHeader(resp))
	}
	return &Error{
		Message:    msg,
		StatusCode: resp.StatusCode,
		Retryable:  resp.StatusCode >= 500,
	}
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// IsRetryable reports whether err may be retried. Errors outside the apierr
// vocabulary are treated as fatal.
func IsRetryable(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// RetryAfterHint returns the server-supplied wait for err, or zero.
func RetryAfterHint(err error) time.Duration {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.RetryAfter
	}
	return 0
}
