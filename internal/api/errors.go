package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Package-level sentinel errors.
// Callers use errors.Is() to distinguish fatal-for-run conditions (auth,
// namespace enumeration) from fatal-for-project conditions (an artifact
// fetch that exhausted its retry budget).
var (
	// ErrAuthFailed is returned when the token exchange is rejected or
	// returns no token. This is fatal for the whole run: nothing can be
	// fetched without a token.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRetryExhausted is returned when an operation kept failing with
	// retryable errors until the attempt budget ran out. The last cause is
	// wrapped and available via errors.Unwrap.
	ErrRetryExhausted = errors.New("retry budget exhausted")

	// ErrDataShape is returned when a response decodes but does not have
	// the expected envelope structure. Treated as fatal for the current
	// project only; other projects' data may still be well-formed.
	ErrDataShape = errors.New("unexpected response shape")
)

// StatusError represents a non-2xx HTTP response.
// It preserves the status code so the retry policy can classify it.
type StatusError struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int

	// URL is the request URL, for error messages. Query strings are
	// omitted because filters can be long and carry project identifiers.
	URL string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) from %s",
		e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Retryable reports whether the status indicates a transient condition:
// rate limiting (429) or a server-side error (5xx).
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// TimeoutError marks a request that hit its per-call deadline while the
// surrounding run context was still alive. It exists so the retry policy
// can tell a slow endpoint (worth retrying) apart from operator
// cancellation (never retried).
type TimeoutError struct {
	// URL is the request URL without query string.
	URL string

	// Limit is the per-call timeout that was exceeded.
	Limit time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s exceeded its %s timeout", e.URL, e.Limit)
}

// Timeout reports true; it makes the error satisfy the retry policy's
// timeout check.
func (e *TimeoutError) Timeout() bool { return true }
