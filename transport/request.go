package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrInvalidRequest indicates a request that cannot be sent.
var ErrInvalidRequest = errors.New("transport: invalid request")

// Request is one logical API request.
type Request struct {
	// Method is the HTTP method.
	// Default: GET
	Method string

	// Endpoint is the logical endpoint name, e.g. "contacts". It keys
	// pagination configuration and telemetry.
	Endpoint string

	// Path is appended to the base URL.
	// Default: "/" + Endpoint
	Path string

	Query  url.Values
	Header http.Header

	// Body is JSON-encoded when non-nil. []byte and json.RawMessage are sent
	// as-is.
	Body any
}

// Validate reports whether the request can be sent.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if r.Endpoint == "" && r.Path == "" {
		return fmt.Errorf("%w: endpoint or path is required", ErrInvalidRequest)
	}
	return nil
}

// MethodOrDefault returns the request method, GET when unset.
func (r *Request) MethodOrDefault() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// PathOrDefault returns the request path, derived from Endpoint when unset.
func (r *Request) PathOrDefault() string {
	if r.Path != "" {
		if strings.HasPrefix(r.Path, "/") {
			return r.Path
		}
		return "/" + r.Path
	}
	return "/" + strings.TrimPrefix(r.Endpoint, "/")
}

// Clone returns a copy whose Query and Header can be modified independently.
func (r *Request) Clone() *Request {
	out := *r
	if r.Query != nil {
		out.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			out.Query[k] = append([]string(nil), v...)
		}
	}
	if r.Header != nil {
		out.Header = r.Header.Clone()
	}
	return &out
}

func (r *Request) encodeBody() ([]byte, error) {
	switch b := r.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("%w: encode body: %v", ErrInvalidRequest, err)
		}
		return data, nil
	}
}

// Response is a successful API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// RequestID is the X-Request-Id sent with the request.
	RequestID string
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("transport: decode response: %w", err)
	}
	return nil
}
