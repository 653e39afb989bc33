package client

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/reqcore/observe"
	"github.com/jonwraymond/reqcore/transport"
)

// testObserver records spans and metrics in memory.
type testObserver struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider
}

func newTestObserver() *testObserver {
	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	return &testObserver{
		spans:  spans,
		reader: reader,
		tp:     sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)),
		mp:     sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
}

func (o *testObserver) Tracer() trace.Tracer   { return o.tp.Tracer("client_test") }
func (o *testObserver) Meter() metric.Meter    { return o.mp.Meter("client_test") }
func (o *testObserver) Logger() observe.Logger { return observe.NopLogger() }

func (o *testObserver) Shutdown(ctx context.Context) error {
	if err := o.tp.Shutdown(ctx); err != nil {
		return err
	}
	return o.mp.Shutdown(ctx)
}

func (o *testObserver) collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := o.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("metric %s not recorded", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s data = %T, want Sum[int64]", name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestClient_RecordsTelemetry(t *testing.T) {
	obs := newTestObserver()
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	c := newTestClient(t, testConfig(), failingTransport(1, errUnavailable), WithObserver(obs))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.Execute(ctx, &transport.Request{Endpoint: "contacts"}); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}

	rm := obs.collect(t)
	if got := sumOf(t, rm, "api.request.total"); got != 2 {
		t.Errorf("api.request.total = %d, want 2", got)
	}
	if got := sumOf(t, rm, "api.retry.total"); got != 1 {
		t.Errorf("api.retry.total = %d, want 1", got)
	}

	gauge := findMetric(rm, "api.queue.active")
	if gauge == nil {
		t.Fatal("api.queue.active gauge not registered")
	}
	if g, ok := gauge.Data.(metricdata.Gauge[int64]); !ok || len(g.DataPoints) != 1 || g.DataPoints[0].Value != 0 {
		t.Errorf("api.queue.active = %+v, want a single 0 point", gauge.Data)
	}
	if findMetric(rm, "api.circuit.state") == nil {
		t.Error("api.circuit.state gauge not registered with breaker enabled")
	}

	ended := obs.spans.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}
}

func TestClient_RecordsCircuitTransitions(t *testing.T) {
	obs := newTestObserver()
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	cfg := testConfig()
	cfg.Retry.MaxRetries = 0
	cfg.CircuitBreaker.FailureThreshold = 1
	c := newTestClient(t, cfg, failingTransport(100, errUnavailable), WithObserver(obs))

	_, _ = c.Execute(context.Background(), &transport.Request{Endpoint: "contacts"})

	rm := obs.collect(t)
	if got := sumOf(t, rm, "api.circuit.transitions"); got != 1 {
		t.Errorf("api.circuit.transitions = %d, want 1", got)
	}
	if got := sumOf(t, rm, "api.request.errors"); got != 1 {
		t.Errorf("api.request.errors = %d, want 1", got)
	}
}

func TestClient_CloseUnregistersGauges(t *testing.T) {
	obs := newTestObserver()
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	c, err := New(testConfig(), okTransport(`{}`), WithObserver(obs))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	rm := obs.collect(t)
	if m := findMetric(rm, "api.queue.active"); m != nil {
		if g, ok := m.Data.(metricdata.Gauge[int64]); ok && len(g.DataPoints) > 0 {
			t.Errorf("api.queue.active still observed after Close: %+v", g.DataPoints)
		}
	}
}
