package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestSentinelErrors(t *testing.T) {
	for _, err := range []error{ErrCircuitOpen, ErrMaxRetriesExceeded, ErrTimeout} {
		if !strings.HasPrefix(err.Error(), "resilience: ") {
			t.Errorf("%q lacks package prefix", err)
		}
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   int
		wantOK bool
	}{
		{"http", &HTTPError{StatusCode: 502}, 502, true},
		{"wrapped http", fmt.Errorf("get: %w", &HTTPError{StatusCode: 404}), 404, true},
		{"rate limit", &RateLimitError{}, http.StatusTooManyRequests, true},
		{"network", &NetworkError{Err: errors.New("x")}, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StatusCode(tt.err)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("StatusCode() = %d, %v; want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	if d, ok := RetryAfter(&RateLimitError{RetryAfter: 2 * time.Second}); !ok || d != 2*time.Second {
		t.Errorf("RetryAfter(RateLimitError) = %v, %v", d, ok)
	}
	if _, ok := RetryAfter(&HTTPError{StatusCode: 503}); ok {
		t.Error("RetryAfter without hint reported ok")
	}
}

func TestHTTPError_Message(t *testing.T) {
	err := &HTTPError{StatusCode: 400, Body: []byte(`{"code":"invalid_parameter"}`)}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "invalid_parameter") {
		t.Errorf("Error() = %q", err.Error())
	}

	long := &HTTPError{StatusCode: 500, Body: []byte(strings.Repeat("x", 1000))}
	if len(long.Error()) > 300 {
		t.Errorf("Error() length = %d, want body truncated", len(long.Error()))
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := &NetworkError{Code: "ECONNRESET", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("NetworkError does not unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "ECONNRESET") {
		t.Errorf("Error() = %q, want code", err.Error())
	}
}
