package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/reqcore/auth"
	"github.com/jonwraymond/reqcore/cache"
	"github.com/jonwraymond/reqcore/health"
	"github.com/jonwraymond/reqcore/observe"
	"github.com/jonwraymond/reqcore/pagination"
	"github.com/jonwraymond/reqcore/resilience"
	"github.com/jonwraymond/reqcore/transport"
)

// Transport performs a single network attempt.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: failures are classified as *resilience.NetworkError,
//     *resilience.HTTPError or *resilience.RateLimitError so that the retry
//     policy can decide; context errors are returned as-is.
//   - Retries: implementations must not retry; the Client does.
type Transport interface {
	Attempt(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// Client runs API calls through the resilience stack.
type Client struct {
	config    Config
	transport Transport

	executor *resilience.Executor
	registry *pagination.Registry
	mw       *observe.Middleware
	logger   observe.Logger
	cache    *cache.Middleware
	health   *health.Aggregator

	gauges    metric.Registration
	owned     observe.Observer
	closeOnce sync.Once
	closed    atomic.Bool
}

// New creates a Client over t. Zero-valued numeric settings in cfg take their
// defaults; the rate limiter, circuit breaker and cache follow their Enabled
// flags.
func New(cfg Config, t Transport, opts ...Option) (*Client, error) {
	if t == nil {
		return nil, ErrNilTransport
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		config:    cfg,
		transport: t,
		registry:  o.registry,
	}
	if c.registry == nil {
		c.registry = pagination.NewRegistry()
	}
	for name, ep := range cfg.Endpoints {
		if err := c.registry.Register(name, ep); err != nil {
			return nil, fmt.Errorf("%w: endpoint %q: %w", ErrInvalidConfig, name, err)
		}
	}

	if err := c.setupTelemetry(o); err != nil {
		return nil, err
	}

	queue := resilience.NewRequestQueue(resilience.QueueConfig{MaxConcurrent: cfg.MaxConcurrentRequests})
	retry := resilience.NewRetry(cfg.Retry)
	retry.OnRetry = c.onRetry

	execOpts := []resilience.ExecutorOption{resilience.WithRequestQueue(queue)}
	if cfg.RateLimit.Enabled {
		execOpts = append(execOpts, resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:  cfg.RateLimit.MaxRequestsPerSecond,
			Burst: cfg.RateLimit.BurstLimit,
		})))
	}
	if cfg.CircuitBreaker.Enabled {
		execOpts = append(execOpts, resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			ResetTimeout:     cfg.CircuitBreaker.ResetTimeout,
			OnStateChange:    c.onStateChange,
		})))
	}
	execOpts = append(execOpts, resilience.WithRetry(retry), resilience.WithTimeout(cfg.Timeout))
	c.executor = resilience.NewExecutor(execOpts...)

	c.cache = o.cache
	if c.cache == nil && cfg.Cache.Enabled {
		c.cache = cache.NewMiddleware(
			cache.NewMemoryCache(cache.MemoryCacheConfig{MaxEntries: cfg.Cache.MaxEntries}),
			cache.NewRequestKeyer(),
			cache.Policy{DefaultTTL: cfg.Cache.TTL, MaxTTL: cfg.Cache.MaxTTL, EndpointTTL: cfg.Cache.EndpointTTL},
			nil,
		)
	}
	if c.cache != nil {
		c.cache.SetLogger(c.logger)
	}

	c.health = c.newHealth()

	if o.observer != nil {
		reg, err := observe.RegisterStateGauges(o.observer.Meter(), c.stateSnapshot)
		if err != nil {
			return nil, fmt.Errorf("client: register gauges: %w", err)
		}
		c.gauges = reg
	}
	return c, nil
}

// NewFromConfig builds the HTTP transport, credentials and, when cfg.Observe
// enables anything, an observer owned by the Client and shut down by Close.
func NewFromConfig(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var creds auth.Credentials
	switch {
	case cfg.Auth.BearerToken != "" || o.reauthenticate != nil:
		creds = auth.NewBearerToken(auth.BearerConfig{
			Token:          cfg.Auth.BearerToken,
			Reauthenticate: o.reauthenticate,
		})
	case cfg.Auth.APIKey.Key != "":
		creds = auth.NewAPIKey(cfg.Auth.APIKey)
	}

	t, err := transport.NewHTTPTransport(transport.HTTPConfig{
		BaseURL:     cfg.BaseURL,
		Credentials: creds,
		UserAgent:   cfg.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	var owned observe.Observer
	obsCfg := cfg.Observe
	if o.observer == nil && (obsCfg.Tracing.Enabled || obsCfg.Metrics.Enabled || obsCfg.Logging.Enabled) {
		owned, err = observe.NewObserver(ctx, obsCfg)
		if err != nil {
			return nil, fmt.Errorf("client: create observer: %w", err)
		}
		opts = append(opts, WithObserver(owned))
	}

	c, err := New(cfg, t, opts...)
	if err != nil {
		if owned != nil {
			_ = owned.Shutdown(ctx)
		}
		return nil, err
	}
	c.owned = owned
	return c, nil
}

func (c *Client) setupTelemetry(o options) error {
	var (
		tracer  observe.Tracer
		metrics observe.Metrics
		logger  = o.logger
	)
	if o.observer != nil {
		m, err := observe.NewMetrics(o.observer.Meter())
		if err != nil {
			return fmt.Errorf("client: create metrics: %w", err)
		}
		tracer = observe.NewTracer(o.observer.Tracer())
		metrics = m
		if logger == nil {
			logger = o.observer.Logger()
		}
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	c.logger = logger
	c.mw = observe.NewMiddleware(tracer, metrics, logger)
	return nil
}

// Execute runs req through the cache (when configured), the request queue,
// rate limiter, circuit breaker, retry and per-attempt timeout, in that order.
// A response is returned only for 2xx statuses.
func (c *Client) Execute(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	meta := observe.CallMeta{
		Endpoint: req.Endpoint,
		Method:   req.MethodOrDefault(),
		Path:     req.PathOrDefault(),
	}

	var resp *transport.Response
	err := c.mw.Wrap(func(ctx context.Context, _ observe.CallMeta) error {
		var err error
		if c.cache != nil {
			resp, err = c.cache.Execute(ctx, req, c.attempt)
		} else {
			resp, err = c.attempt(ctx, req)
		}
		return err
	})(ctx, meta)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Do executes req and decodes the JSON response body into out. A nil out
// discards the body.
func (c *Client) Do(ctx context.Context, req *transport.Request, out any) error {
	resp, err := c.Execute(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

func (c *Client) attempt(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	return resilience.ExecuteValue(ctx, c.executor, func(ctx context.Context) (*transport.Response, error) {
		return c.transport.Attempt(ctx, req)
	})
}

func (c *Client) onRetry(ctx context.Context, attempt int, err error, delay time.Duration) {
	meta, _ := observe.CallMetaFromContext(ctx)
	c.mw.Metrics().RecordRetry(ctx, meta, attempt, delay)
	c.logger.WithEndpoint(meta).Warn(ctx, "retrying api call",
		observe.Field{Key: "attempt", Value: attempt},
		observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
		observe.Field{Key: "error", Value: err},
	)
}

// onStateChange runs under the breaker lock and must not call back into it.
func (c *Client) onStateChange(from, to resilience.State) {
	ctx := context.Background()
	c.mw.Metrics().RecordCircuitTransition(ctx, from.String(), to.String())

	fields := []observe.Field{
		{Key: "circuit.from", Value: from.String()},
		{Key: "circuit.to", Value: to.String()},
	}
	if to == resilience.StateOpen {
		c.logger.Warn(ctx, "circuit breaker opened", fields...)
		return
	}
	c.logger.Info(ctx, "circuit breaker state changed", fields...)
}

func (c *Client) stateSnapshot() observe.StateSnapshot {
	stats := c.RequestQueueStats()
	snap := observe.StateSnapshot{
		QueueActive:  stats.Active,
		QueueQueued:  stats.Queued,
		CircuitState: -1,
	}
	if cb := c.executor.CircuitBreaker(); cb != nil {
		snap.CircuitState = int(cb.State())
	}
	return snap
}

func (c *Client) newHealth() *health.Aggregator {
	agg := health.NewAggregator(health.AggregatorConfig{})
	agg.Register("request_queue", health.NewQueueChecker(c.executor.Queue(), health.QueueCheckerConfig{}))
	if rl := c.executor.RateLimiter(); rl != nil {
		agg.Register("rate_limiter", health.NewRateLimiterChecker(rl))
	}
	if cb := c.executor.CircuitBreaker(); cb != nil {
		agg.Register("circuit_breaker", health.NewCircuitBreakerChecker(cb))
	}
	return agg
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.config }

// RetryConfig returns the active retry configuration.
func (c *Client) RetryConfig() resilience.RetryConfig {
	return c.executor.Retry().Config()
}

// SetRetryConfig replaces the retry policy wholesale. Calls already running
// keep the policy they started with.
func (c *Client) SetRetryConfig(cfg resilience.RetryConfig) error {
	if err := validateRetry(cfg); err != nil {
		return err
	}
	c.executor.Retry().SetPolicy(resilience.NewRetryPolicy(cfg))
	return nil
}

// CircuitBreakerState returns breaker metrics, or false when the breaker is
// disabled.
func (c *Client) CircuitBreakerState() (resilience.CircuitBreakerMetrics, bool) {
	cb := c.executor.CircuitBreaker()
	if cb == nil {
		return resilience.CircuitBreakerMetrics{}, false
	}
	return cb.Metrics(), true
}

// ResetCircuitBreaker closes the breaker and clears its failures. It is a
// no-op when the breaker is disabled.
func (c *Client) ResetCircuitBreaker() {
	if cb := c.executor.CircuitBreaker(); cb != nil {
		cb.Reset()
	}
}

// RequestQueueStats returns a point-in-time view of the request queue.
func (c *Client) RequestQueueStats() resilience.QueueStats {
	return c.executor.Queue().Stats()
}

// Health returns checkers over the queue, rate limiter and circuit breaker.
func (c *Client) Health() *health.Aggregator { return c.health }

// Cache returns the response cache middleware, or nil.
func (c *Client) Cache() *cache.Middleware { return c.cache }

// Close unregisters state gauges and shuts down an observer created by
// NewFromConfig. Later calls fail with ErrClosed.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.gauges != nil {
			if err := c.gauges.Unregister(); err != nil {
				errs = append(errs, err)
			}
		}
		if c.owned != nil {
			if err := c.owned.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
