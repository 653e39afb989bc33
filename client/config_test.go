package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/reqcore/pagination"
	"github.com/jonwraymond/reqcore/secret"
	"github.com/jonwraymond/reqcore/transport"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 30*time.Second || cfg.MaxConcurrentRequests != 10 {
		t.Errorf("Timeout/MaxConcurrentRequests = %v/%d", cfg.Timeout, cfg.MaxConcurrentRequests)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.MaxRequestsPerSecond != 10 || cfg.RateLimit.BurstLimit != 20 {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if !cfg.CircuitBreaker.Enabled || cfg.CircuitBreaker.FailureThreshold != 5 || cfg.CircuitBreaker.ResetTimeout != time.Minute {
		t.Errorf("CircuitBreaker = %+v", cfg.CircuitBreaker)
	}
	if cfg.Cache.Enabled {
		t.Error("cache enabled by default")
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("Retry.MaxRetries = %d, want 3", cfg.Retry.MaxRetries)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }},
		{"negative concurrency", func(c *Config) { c.MaxConcurrentRequests = -1 }},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }},
		{"base above max delay", func(c *Config) { c.Retry.BaseDelay, c.Retry.MaxDelay = time.Minute, time.Second }},
		{"exponential base below one", func(c *Config) { c.Retry.ExponentialBase = 0.5 }},
		{"negative rate", func(c *Config) { c.RateLimit.MaxRequestsPerSecond = -1 }},
		{"negative threshold", func(c *Config) { c.CircuitBreaker.FailureThreshold = -1 }},
		{"negative cache ttl", func(c *Config) { c.Cache.Enabled, c.Cache.TTL = true, -time.Second }},
		{"unknown strategy", func(c *Config) {
			c.Endpoints = map[string]pagination.EndpointConfig{"x": {Strategy: "sideways"}}
		}},
		{"observe without service name", func(c *Config) { c.Observe.Logging.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_ValidateIgnoresDisabledSections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = RateLimitConfig{Enabled: false, MaxRequestsPerSecond: -1}
	cfg.Cache = CacheConfig{Enabled: false, TTL: -time.Second}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestParseConfig(t *testing.T) {
	t.Setenv("REQCORE_TEST_HOST", "api.example.com")
	t.Setenv("REQCORE_TEST_KEY", "k-123")

	cfg, err := ParseConfig(context.Background(), []byte(`
base_url: https://${REQCORE_TEST_HOST}/v2
timeout: 5s
max_concurrent_requests: 4
auth:
  api_key:
    key: secretref:env:REQCORE_TEST_KEY
    header: X-Api-Key
retry:
  max_retries: 1
  base_delay: 100ms
  max_delay: 1s
  jitter: false
rate_limit:
  enabled: false
cache:
  enabled: true
  endpoint_ttl:
    contacts: 30s
endpoints:
  events:
    strategy: cursor
    max_limit: 200
`))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if cfg.BaseURL != "https://api.example.com/v2" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Auth.APIKey.Key != "k-123" || cfg.Auth.APIKey.HeaderName != "X-Api-Key" {
		t.Errorf("Auth.APIKey = %+v", cfg.Auth.APIKey)
	}
	if cfg.Timeout != 5*time.Second || cfg.MaxConcurrentRequests != 4 {
		t.Errorf("Timeout/MaxConcurrentRequests = %v/%d", cfg.Timeout, cfg.MaxConcurrentRequests)
	}
	if cfg.Retry.MaxRetries != 1 || cfg.Retry.BaseDelay != 100*time.Millisecond || cfg.Retry.Jitter {
		t.Errorf("Retry = %+v", cfg.Retry)
	}
	if cfg.RateLimit.Enabled {
		t.Error("rate_limit.enabled: false was ignored")
	}
	if !cfg.CircuitBreaker.Enabled || cfg.CircuitBreaker.FailureThreshold != 5 {
		t.Errorf("CircuitBreaker defaults lost: %+v", cfg.CircuitBreaker)
	}
	if !cfg.Cache.Enabled || cfg.Cache.EndpointTTL["contacts"] != 30*time.Second {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if ep := cfg.Endpoints["events"]; ep.Strategy != pagination.StrategyCursor || ep.MaxLimit != 200 {
		t.Errorf("Endpoints[events] = %+v", ep)
	}
}

func TestParseConfig_FileSecret(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "token"), []byte("tok-abc\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := ParseConfig(context.Background(), []byte(`
auth:
  bearer_token: secretref:file:token
secrets:
  file:
    base_dir: `+dir+`
`))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Auth.BearerToken != "tok-abc" {
		t.Errorf("BearerToken = %q, want tok-abc", cfg.Auth.BearerToken)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"malformed yaml", "timeout: [", ErrInvalidConfig},
		{"missing env", "base_url: https://${REQCORE_TEST_UNSET_VAR}", secret.ErrMissingEnv},
		{"unknown provider", "base_url: secretref:vault:kv/api", secret.ErrProviderNotRegistered},
		{"invalid value", "max_concurrent_requests: -3", ErrInvalidConfig},
		{"unknown strategy", "endpoints:\n  x:\n    strategy: sideways", ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(context.Background(), []byte(tt.yaml))
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseConfig() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	if err := os.WriteFile(path, []byte("base_url: https://api.example.com\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}

	if _, err := LoadConfig(context.Background(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() of a missing file succeeded")
	}
}

func TestNewFromConfig(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"name":"Ada"}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BaseURL = srv.URL
	cfg.Auth.APIKey.Key = "k-123"
	cfg.Auth.APIKey.HeaderName = "X-Api-Key"

	c, err := NewFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	defer c.Close(context.Background())

	var got contact
	if err := c.Do(context.Background(), &transport.Request{Endpoint: "contacts", Path: "/contacts/1"}, &got); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got.Name != "Ada" {
		t.Errorf("decoded = %+v", got)
	}
	h := <-headers
	if got := h.Get("X-Api-Key"); got != "k-123" {
		t.Errorf("X-Api-Key = %q, want k-123", got)
	}
	if got := h.Get("User-Agent"); !strings.HasPrefix(got, "reqcore") {
		t.Errorf("User-Agent = %q", got)
	}
	if h.Get("X-Request-Id") == "" {
		t.Error("X-Request-Id not set")
	}
}

func TestNewFromConfig_BearerAndStatusErrors(t *testing.T) {
	auths := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths <- r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BaseURL = srv.URL
	cfg.Auth.BearerToken = "tok"
	cfg.Auth.APIKey.Key = "ignored"

	c, err := NewFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	defer c.Close(context.Background())

	_, err = c.Execute(context.Background(), &transport.Request{Endpoint: "contacts", Path: "/missing"})
	if err == nil {
		t.Fatal("Execute() error = nil for a 404")
	}
	if got := <-auths; got != "Bearer tok" {
		t.Errorf("Authorization = %q, want Bearer tok", got)
	}
}

func TestNewFromConfig_Errors(t *testing.T) {
	if _, err := NewFromConfig(context.Background(), DefaultConfig()); err == nil {
		t.Error("NewFromConfig() without base_url succeeded")
	}

	cfg := DefaultConfig()
	cfg.BaseURL = "https://api.example.com"
	cfg.Observe.Metrics.Enabled = true
	if _, err := NewFromConfig(context.Background(), cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewFromConfig() error = %v, want ErrInvalidConfig", err)
	}
}
