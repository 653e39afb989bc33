package client

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/reqcore/auth"
	"github.com/jonwraymond/reqcore/observe"
	"github.com/jonwraymond/reqcore/pagination"
	"github.com/jonwraymond/reqcore/resilience"
	"github.com/jonwraymond/reqcore/secret"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root. Only NewFromConfig requires it.
	BaseURL string `yaml:"base_url"`

	// UserAgent is sent by the HTTP transport.
	// Default: "reqcore"
	UserAgent string `yaml:"user_agent"`

	Auth AuthConfig `yaml:"auth"`

	// Timeout bounds each transport attempt.
	// Default: 30 seconds
	Timeout time.Duration `yaml:"timeout"`

	// MaxConcurrentRequests bounds in-flight calls across the client.
	// Default: 10
	MaxConcurrentRequests int `yaml:"max_concurrent_requests"`

	Retry          resilience.RetryConfig `yaml:"retry"`
	RateLimit      RateLimitConfig        `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig   `yaml:"circuit_breaker"`
	Cache          CacheConfig            `yaml:"cache"`

	// Endpoints are registered with the pagination registry at construction.
	Endpoints map[string]pagination.EndpointConfig `yaml:"endpoints"`

	// Observe configures telemetry built by NewFromConfig.
	Observe observe.Config `yaml:"observe"`

	// Secrets holds per-provider options for secretref resolution, keyed by
	// provider name, e.g. {"file": {"base_dir": "/run/secrets"}}.
	Secrets map[string]map[string]any `yaml:"secrets"`
}

// AuthConfig selects the credential applied by the HTTP transport. A bearer
// token takes precedence over an API key.
type AuthConfig struct {
	APIKey      auth.APIKeyConfig `yaml:"api_key"`
	BearerToken string            `yaml:"bearer_token"`
}

// RateLimitConfig configures the client's token bucket.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxRequestsPerSecond is the refill rate.
	// Default: 10
	MaxRequestsPerSecond float64 `yaml:"max_requests_per_second"`

	// BurstLimit is the bucket capacity.
	// Default: 20
	BurstLimit int `yaml:"burst_limit"`
}

// CircuitBreakerConfig configures the client's circuit breaker.
type CircuitBreakerConfig struct {
	Enabled bool `yaml:"enabled"`

	// FailureThreshold is the number of failures that opens the circuit.
	// Default: 5
	FailureThreshold int `yaml:"failure_threshold"`

	// ResetTimeout is how long the circuit stays open.
	// Default: 60 seconds
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// CacheConfig configures the optional GET response cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`

	// TTL applies to endpoints without an override.
	// Default: 5 minutes
	TTL time.Duration `yaml:"ttl"`

	// MaxTTL clamps every TTL.
	// Default: 1 hour
	MaxTTL time.Duration `yaml:"max_ttl"`

	// EndpointTTL overrides TTL per endpoint; zero disables caching.
	EndpointTTL map[string]time.Duration `yaml:"endpoint_ttl"`

	// MaxEntries bounds the in-memory cache.
	// Default: 1000
	MaxEntries int `yaml:"max_entries"`
}

// DefaultConfig returns the documented defaults with the rate limiter and
// circuit breaker enabled and the cache disabled.
func DefaultConfig() Config {
	return Config{
		UserAgent:             "reqcore",
		Timeout:               30 * time.Second,
		MaxConcurrentRequests: 10,
		Retry:                 resilience.DefaultRetryConfig(),
		RateLimit: RateLimitConfig{
			Enabled:              true,
			MaxRequestsPerSecond: 10,
			BurstLimit:           20,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			ResetTimeout:     60 * time.Second,
		},
		Cache: CacheConfig{
			TTL:        5 * time.Minute,
			MaxTTL:     time.Hour,
			MaxEntries: 1000,
		},
	}
}

// Validate reports the first invalid setting. Zero values are valid and take
// their defaults.
func (c *Config) Validate() error {
	switch {
	case c.Timeout < 0:
		return fmt.Errorf("%w: timeout must be >= 0", ErrInvalidConfig)
	case c.MaxConcurrentRequests < 0:
		return fmt.Errorf("%w: max_concurrent_requests must be >= 0", ErrInvalidConfig)
	}
	if err := validateRetry(c.Retry); err != nil {
		return err
	}
	if c.RateLimit.Enabled && (c.RateLimit.MaxRequestsPerSecond < 0 || c.RateLimit.BurstLimit < 0) {
		return fmt.Errorf("%w: rate_limit values must be >= 0", ErrInvalidConfig)
	}
	if c.CircuitBreaker.Enabled && (c.CircuitBreaker.FailureThreshold < 0 || c.CircuitBreaker.ResetTimeout < 0) {
		return fmt.Errorf("%w: circuit_breaker values must be >= 0", ErrInvalidConfig)
	}
	if c.Cache.Enabled && (c.Cache.TTL < 0 || c.Cache.MaxTTL < 0 || c.Cache.MaxEntries < 0) {
		return fmt.Errorf("%w: cache values must be >= 0", ErrInvalidConfig)
	}
	for name, ep := range c.Endpoints {
		if ep.Strategy != "" && !ep.Strategy.Valid() {
			return fmt.Errorf("%w: endpoint %q: unknown strategy %q", ErrInvalidConfig, name, ep.Strategy)
		}
	}
	if c.Observe.Tracing.Enabled || c.Observe.Metrics.Enabled || c.Observe.Logging.Enabled {
		if err := c.Observe.Validate(); err != nil {
			return fmt.Errorf("%w: observe: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

func validateRetry(r resilience.RetryConfig) error {
	switch {
	case r.MaxRetries < 0:
		return fmt.Errorf("%w: retry.max_retries must be >= 0", ErrInvalidConfig)
	case r.BaseDelay < 0 || r.MaxDelay < 0:
		return fmt.Errorf("%w: retry delays must be >= 0", ErrInvalidConfig)
	case r.MaxDelay > 0 && r.BaseDelay > r.MaxDelay:
		return fmt.Errorf("%w: retry.base_delay exceeds retry.max_delay", ErrInvalidConfig)
	case r.ExponentialBase != 0 && r.ExponentialBase < 1:
		return fmt.Errorf("%w: retry.exponential_base must be >= 1", ErrInvalidConfig)
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxConcurrentRequests == 0 {
		c.MaxConcurrentRequests = d.MaxConcurrentRequests
	}
	if c.RateLimit.MaxRequestsPerSecond == 0 {
		c.RateLimit.MaxRequestsPerSecond = d.RateLimit.MaxRequestsPerSecond
	}
	if c.RateLimit.BurstLimit == 0 {
		c.RateLimit.BurstLimit = d.RateLimit.BurstLimit
	}
	if c.CircuitBreaker.FailureThreshold == 0 {
		c.CircuitBreaker.FailureThreshold = d.CircuitBreaker.FailureThreshold
	}
	if c.CircuitBreaker.ResetTimeout == 0 {
		c.CircuitBreaker.ResetTimeout = d.CircuitBreaker.ResetTimeout
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = d.Cache.TTL
	}
	if c.Cache.MaxTTL == 0 {
		c.Cache.MaxTTL = d.Cache.MaxTTL
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = d.Cache.MaxEntries
	}
	return c
}

// LoadConfig reads a YAML file and resolves it with ParseConfig.
func LoadConfig(ctx context.Context, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("client: read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(ctx, data)
	if err != nil {
		return Config{}, fmt.Errorf("client: load config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML over DefaultConfig, resolves ${VAR} and secretref
// values in base_url and credentials, and validates the result.
func ParseConfig(ctx context.Context, data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse yaml: %w", ErrInvalidConfig, err)
	}

	resolver, err := secret.NewDefaultRegistry().NewResolver(cfg.Secrets)
	if err != nil {
		return Config{}, err
	}
	defer resolver.Close()

	for _, field := range []struct {
		name  string
		value *string
	}{
		{"base_url", &cfg.BaseURL},
		{"auth.api_key.key", &cfg.Auth.APIKey.Key},
		{"auth.bearer_token", &cfg.Auth.BearerToken},
	} {
		if *field.value == "" {
			continue
		}
		resolved, err := resolver.ResolveValue(ctx, *field.value)
		if err != nil {
			return Config{}, fmt.Errorf("client: resolve %s: %w", field.name, err)
		}
		*field.value = resolved
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
