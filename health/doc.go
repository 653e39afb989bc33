// Package health reports the state of the request core's resilience
// components.
//
// Checkers translate circuit breaker, request queue and rate limiter state
// into healthy, degraded or unhealthy results. An Aggregator runs a set of
// checkers under one deadline and the HTTP handlers expose the outcome as
// liveness, readiness and detailed JSON endpoints.
package health
