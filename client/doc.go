// Package client is the entry point of the request core.
//
// A Client owns one instance of every resilience component (request queue,
// rate limiter, circuit breaker, retry and per-attempt timeout) and runs each
// logical call through them in that order before handing a single attempt to
// the Transport. Per-resource call sites build a transport.Request and call
// Execute or Do; list endpoints register their pagination shape once with
// RegisterEndpoint and are walked with Paginate.
//
// # Configuration
//
// Start from DefaultConfig, or load YAML with LoadConfig:
//
//	base_url: https://api.example.com/api/3
//	auth:
//	  api_key:
//	    key: secretref:env:API_KEY
//	    header: Api-Token
//	retry:
//	  max_retries: 3
//	  base_delay: 1s
//	rate_limit:
//	  enabled: true
//	  max_requests_per_second: 5
//	circuit_breaker:
//	  enabled: true
//	endpoints:
//	  contacts:
//	    strategy: offset
//	    max_limit: 100
//
// base_url and the credentials accept ${VAR} expansion and
// secretref:<provider>:<ref> references resolved through the secret package.
//
// # Observability
//
// RetryConfig, CircuitBreakerState and RequestQueueStats expose point-in-time
// state. WithObserver adds OpenTelemetry spans and metrics for every call,
// every retry and every breaker transition; Health returns checkers over the
// same components.
package client
