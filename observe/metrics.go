package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records request-level metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records one logical call with its duration and outcome.
	RecordRequest(ctx context.Context, meta CallMeta, duration time.Duration, err error)

	// RecordRetry records a retry scheduled for meta.
	RecordRetry(ctx context.Context, meta CallMeta, attempt int, delay time.Duration)

	// RecordCircuitTransition records a circuit breaker state change.
	RecordCircuitTransition(ctx context.Context, from, to string)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	retryCount   metric.Int64Counter
	retryDelay   metric.Float64Histogram
	circuitCount metric.Int64Counter
}

// NewMetrics creates the request instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	m := &metricsImpl{}
	var err error

	if m.totalCount, err = meter.Int64Counter(
		"api.request.total",
		metric.WithDescription("Total number of API calls"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if m.errorCount, err = meter.Int64Counter(
		"api.request.errors",
		metric.WithDescription("Total number of failed API calls"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	if m.durationHist, err = meter.Float64Histogram(
		"api.request.duration_ms",
		metric.WithDescription("API call duration in milliseconds, including retries"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.retryCount, err = meter.Int64Counter(
		"api.retry.total",
		metric.WithDescription("Total number of scheduled retries"),
		metric.WithUnit("{retry}"),
	); err != nil {
		return nil, err
	}

	if m.retryDelay, err = meter.Float64Histogram(
		"api.retry.delay_ms",
		metric.WithDescription("Delay before each retry in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.circuitCount, err = meter.Int64Counter(
		"api.circuit.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordRequest(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
	attrs := append(meta.attributes(), attribute.String("api.status", statusLabel(err)))
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordRetry(ctx context.Context, meta CallMeta, attempt int, delay time.Duration) {
	opt := metric.WithAttributes(meta.attributes()...)
	m.retryCount.Add(ctx, 1, opt)
	m.retryDelay.Record(ctx, float64(delay.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCircuitTransition(ctx context.Context, from, to string) {
	m.circuitCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("circuit.from", from),
		attribute.String("circuit.to", to),
	))
}

type noopMetrics struct{}

func (noopMetrics) RecordRequest(context.Context, CallMeta, time.Duration, error) {}
func (noopMetrics) RecordRetry(context.Context, CallMeta, int, time.Duration)     {}
func (noopMetrics) RecordCircuitTransition(context.Context, string, string)       {}

// StateSnapshot is a point-in-time view of client state exported as gauges.
type StateSnapshot struct {
	QueueActive  int
	QueueQueued  int
	CircuitState int // 0 closed, 1 open, 2 half-open, -1 no breaker
}

// RegisterStateGauges registers api.queue.active, api.queue.queued and
// api.circuit.state as observable gauges read from snapshot on each collection.
func RegisterStateGauges(meter metric.Meter, snapshot func() StateSnapshot) (metric.Registration, error) {
	active, err := meter.Int64ObservableGauge(
		"api.queue.active",
		metric.WithDescription("Requests currently executing"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	queued, err := meter.Int64ObservableGauge(
		"api.queue.queued",
		metric.WithDescription("Requests waiting for a queue slot"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	circuit, err := meter.Int64ObservableGauge(
		"api.circuit.state",
		metric.WithDescription("Circuit breaker state: 0 closed, 1 open, 2 half-open"),
	)
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := snapshot()
		o.ObserveInt64(active, int64(s.QueueActive))
		o.ObserveInt64(queued, int64(s.QueueQueued))
		if s.CircuitState >= 0 {
			o.ObserveInt64(circuit, int64(s.CircuitState))
		}
		return nil
	}, active, queued, circuit)
}
