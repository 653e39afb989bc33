package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/reqcore/auth"
	"github.com/jonwraymond/reqcore/resilience"
)

// RequestIDHeader carries a per-attempt correlation id.
const RequestIDHeader = "X-Request-Id"

// ErrInvalidBaseURL indicates HTTPConfig.BaseURL is missing or malformed.
var ErrInvalidBaseURL = errors.New("transport: invalid base URL")

// ErrResponseTooLarge is returned when a successful response body exceeds
// MaxResponseSize. It is not retried.
var ErrResponseTooLarge = errors.New("transport: response body too large")

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	// BaseURL is the API root, e.g. "https://api.example.com/v3".
	BaseURL string

	// Credentials are applied to every request. Optional.
	Credentials auth.Credentials

	// UserAgent is sent on every request.
	// Default: "reqcore"
	UserAgent string

	// MaxResponseSize caps the bytes read from a response body.
	// Default: 10 MiB
	MaxResponseSize int64

	// HTTPClient sends requests. Its Transport is wrapped with Credentials.
	// Default: a client with no overall timeout; attempts are bounded by ctx.
	HTTPClient *http.Client
}

// HTTPTransport performs single attempts over net/http.
type HTTPTransport struct {
	base   *url.URL
	config HTTPConfig
	client *http.Client
	now    func() time.Time
}

// NewHTTPTransport creates a transport rooted at config.BaseURL.
func NewHTTPTransport(config HTTPConfig) (*HTTPTransport, error) {
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, config.BaseURL)
	}
	if config.UserAgent == "" {
		config.UserAgent = "reqcore"
	}
	if config.MaxResponseSize <= 0 {
		config.MaxResponseSize = 10 << 20
	}

	client := &http.Client{}
	if config.HTTPClient != nil {
		c := *config.HTTPClient
		client = &c
	}
	if config.Credentials != nil {
		client.Transport = auth.NewRoundTripper(client.Transport, config.Credentials)
	}

	return &HTTPTransport{
		base:   base,
		config: config,
		client: client,
		now:    time.Now,
	}, nil
}

// BaseURL returns the API root.
func (t *HTTPTransport) BaseURL() string {
	return t.base.String()
}

// Attempt sends req once and classifies the outcome.
func (t *HTTPTransport) Attempt(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := req.encodeBody()
	if err != nil {
		return nil, err
	}

	target := *t.base
	target.Path = t.base.Path + req.PathOrDefault()
	target.RawQuery = req.Query.Encode()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.MethodOrDefault(), target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	for k, v := range req.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", t.config.UserAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	requestID := httpReq.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		httpReq.Header.Set(RequestIDHeader, requestID)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, t.classify(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.config.MaxResponseSize+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &resilience.NetworkError{Code: "ECONNRESET", Err: fmt.Errorf("read response: %w", err)}
	}
	oversized := int64(len(data)) > t.config.MaxResponseSize
	if oversized {
		data = data[:t.config.MaxResponseSize]
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retryAfter := ParseRetryAfter(resp.Header.Get("Retry-After"), t.now())
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &resilience.RateLimitError{RetryAfter: retryAfter, Body: data}
		}
		return nil, &resilience.HTTPError{StatusCode: resp.StatusCode, RetryAfter: retryAfter, Body: data}
	}

	if oversized {
		return nil, fmt.Errorf("%w: %s %s exceeds %d bytes", ErrResponseTooLarge, req.MethodOrDefault(), req.PathOrDefault(), t.config.MaxResponseSize)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		RequestID:  requestID,
	}, nil
}

// classify maps a client.Do failure onto the resilience taxonomy.
func (t *HTTPTransport) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, auth.ErrMissingCredentials) ||
		errors.Is(err, auth.ErrTokenExpired) ||
		errors.Is(err, auth.ErrReauthenticationFailed) {
		return fmt.Errorf("transport: %w", err)
	}
	return &resilience.NetworkError{Code: NetworkCode(err), Err: err}
}

// NetworkCode returns an errno-style classification of a connection error,
// or "" when none applies.
func NetworkCode(err error) string {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr) && !dnsErr.IsTimeout:
		return "ENOTFOUND"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "ECONNREFUSED"
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "ECONNRESET"
	case errors.Is(err, syscall.ETIMEDOUT), errors.Is(err, context.DeadlineExceeded):
		return "ETIMEDOUT"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ETIMEDOUT"
	}
	return ""
}
