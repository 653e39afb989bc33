// Package observe provides tracing, metrics and structured logging for API
// calls made through the request core.
//
// An Observer owns the OpenTelemetry tracer and meter providers and a zap
// backed Logger. Middleware wraps one logical call with a span, request
// metrics and a completion log line. Retry and circuit breaker hooks feed
// RecordRetry and RecordCircuitTransition, and RegisterStateGauges exposes
// queue and breaker state as observable gauges.
package observe
