package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrMaxRetriesExceeded matches any RetryExhaustedError via errors.Is.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrTimeout is returned when a single attempt exceeds its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// NetworkError is a transport-level failure. It is always retryable.
type NetworkError struct {
	// Code is a short classification such as "ECONNRESET" or "ETIMEDOUT".
	Code string
	Err  error
}

func (e *NetworkError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("network error %s: %v", e.Code, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-success HTTP response.
type HTTPError struct {
	StatusCode int
	// RetryAfter is the server-provided delay, zero when absent.
	RetryAfter time.Duration
	Body       []byte
}

func (e *HTTPError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("http %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("http %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), truncate(e.Body, 256))
}

// RateLimitError is an HTTP 429 response. Retries honor RetryAfter.
type RateLimitError struct {
	RetryAfter time.Duration
	Body       []byte
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("http 429 Too Many Requests (retry after %s)", e.RetryAfter)
	}
	return "http 429 Too Many Requests"
}

// RetryExhaustedError wraps the last error once every attempt has failed.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("resilience: max retries exceeded after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// Is reports ErrMaxRetriesExceeded as a match.
func (e *RetryExhaustedError) Is(target error) bool {
	return target == ErrMaxRetriesExceeded
}

// StatusCode extracts the HTTP status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return http.StatusTooManyRequests, true
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode, true
	}
	return 0, false
}

// RetryAfter extracts a server-provided retry delay carried by err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter, true
	}
	var he *HTTPError
	if errors.As(err, &he) && he.RetryAfter > 0 {
		return he.RetryAfter, true
	}
	return 0, false
}

// IsNetworkError reports whether err is a network-class failure.
// Attempt timeouts count as network-class.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) || errors.Is(err, ErrTimeout)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
