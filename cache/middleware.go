package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jonwraymond/reqcore/observe"
	"github.com/jonwraymond/reqcore/transport"
)

// StatusHeader is set to "HIT" on responses served from the cache.
const StatusHeader = "X-Cache"

// AttemptFunc performs a request.
type AttemptFunc func(ctx context.Context, req *transport.Request) (*transport.Response, error)

// SkipRule reports whether req bypasses the cache.
type SkipRule func(req *transport.Request) bool

// DefaultSkipRule bypasses the cache for methods other than GET and HEAD,
// and for requests sent with Cache-Control no-cache or no-store.
func DefaultSkipRule(req *transport.Request) bool {
	switch req.MethodOrDefault() {
	case http.MethodGet, http.MethodHead:
	default:
		return true
	}
	if req.Header == nil {
		return false
	}
	cc := strings.ToLower(req.Header.Get("Cache-Control"))
	return strings.Contains(cc, "no-cache") || strings.Contains(cc, "no-store")
}

// Middleware serves repeated safe requests from a Cache.
type Middleware struct {
	cache    Cache
	keyer    Keyer
	policy   Policy
	skipRule SkipRule
	logger   observe.Logger
}

// NewMiddleware creates a cache middleware.
// If skipRule is nil, DefaultSkipRule is used.
func NewMiddleware(cache Cache, keyer Keyer, policy Policy, skipRule SkipRule) *Middleware {
	if keyer == nil {
		keyer = NewRequestKeyer()
	}
	if skipRule == nil {
		skipRule = DefaultSkipRule
	}
	return &Middleware{
		cache:    cache,
		keyer:    keyer,
		policy:   policy,
		skipRule: skipRule,
		logger:   observe.NopLogger(),
	}
}

// SetLogger sets the logger used for hit and store diagnostics.
func (m *Middleware) SetLogger(logger observe.Logger) {
	if logger == nil {
		logger = observe.NopLogger()
	}
	m.logger = logger
}

type entry struct {
	StatusCode int         `json:"status"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body,omitempty"`
}

// Execute returns a cached response for req when one exists and otherwise
// calls next, storing successful 2xx responses. Errors are not cached.
func (m *Middleware) Execute(ctx context.Context, req *transport.Request, next AttemptFunc) (*transport.Response, error) {
	if m.cache == nil || m.skipRule(req) || !m.policy.ShouldCache(req.Endpoint) {
		return next(ctx, req)
	}

	key, err := m.keyer.Key(req)
	if err != nil {
		return next(ctx, req)
	}

	if data, ok := m.cache.Get(ctx, key); ok {
		var e entry
		if err := json.Unmarshal(data, &e); err == nil {
			m.logger.Debug(ctx, "cache hit", observe.Field{Key: "cache.key", Value: key})
			header := e.Header.Clone()
			if header == nil {
				header = http.Header{}
			}
			header.Set(StatusHeader, "HIT")
			return &transport.Response{StatusCode: e.StatusCode, Header: header, Body: e.Body}, nil
		}
		_ = m.cache.Delete(ctx, key)
	}

	resp, err := next(ctx, req)
	if err != nil || resp == nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, err
	}

	data, err := json.Marshal(entry{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body})
	if err == nil {
		if err := m.cache.Set(ctx, key, data, m.policy.EffectiveTTL(req.Endpoint)); err != nil {
			m.logger.Warn(ctx, "cache store failed",
				observe.Field{Key: "cache.key", Value: key},
				observe.Field{Key: "error", Value: err},
			)
		}
	}
	return resp, nil
}

// Invalidate drops any cached response for req.
func (m *Middleware) Invalidate(ctx context.Context, req *transport.Request) error {
	if m.cache == nil {
		return ErrNilCache
	}
	key, err := m.keyer.Key(req)
	if err != nil {
		return err
	}
	return m.cache.Delete(ctx, key)
}
