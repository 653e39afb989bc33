package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jonwraymond/reqcore/resilience"
)

func newTestMetrics(t *testing.T) (*metricsImpl, *sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("newMetrics() error = %v", err)
	}
	return m, reader, mp
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return rm
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	found := findMetric(rm, name)
	if found == nil {
		return 0
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s data = %T, want Sum[int64]", name, found.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RequestCounters(t *testing.T) {
	m, reader, _ := newTestMetrics(t)
	meta := CallMeta{Endpoint: "contacts", Method: "GET"}

	m.RecordRequest(context.Background(), meta, 100*time.Millisecond, nil)
	m.RecordRequest(context.Background(), meta, 50*time.Millisecond, &resilience.HTTPError{StatusCode: 500})

	rm := collect(t, reader)
	if got := sumValue(t, rm, "api.request.total"); got != 2 {
		t.Errorf("api.request.total = %d, want 2", got)
	}
	if got := sumValue(t, rm, "api.request.errors"); got != 1 {
		t.Errorf("api.request.errors = %d, want 1", got)
	}
}

func TestMetrics_NoErrorCountOnSuccess(t *testing.T) {
	m, reader, _ := newTestMetrics(t)

	m.RecordRequest(context.Background(), CallMeta{Endpoint: "contacts"}, time.Millisecond, nil)

	if got := sumValue(t, collect(t, reader), "api.request.errors"); got != 0 {
		t.Errorf("api.request.errors = %d, want 0", got)
	}
}

func TestMetrics_DurationHistogram(t *testing.T) {
	m, reader, _ := newTestMetrics(t)

	m.RecordRequest(context.Background(), CallMeta{Endpoint: "contacts"}, 150*time.Millisecond, nil)

	found := findMetric(collect(t, reader), "api.request.duration_ms")
	if found == nil {
		t.Fatal("api.request.duration_ms not found")
	}
	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("data = %T, want Histogram[float64]", found.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("data points = %+v, want one sample", hist.DataPoints)
	}
	if hist.DataPoints[0].Sum != 150 {
		t.Errorf("sum = %v, want 150", hist.DataPoints[0].Sum)
	}
}

func TestMetrics_StatusAttribute(t *testing.T) {
	m, reader, _ := newTestMetrics(t)

	m.RecordRequest(context.Background(), CallMeta{Endpoint: "contacts"}, time.Millisecond, &resilience.RateLimitError{})

	found := findMetric(collect(t, reader), "api.request.total")
	sum := found.Data.(metricdata.Sum[int64])
	status, ok := sum.DataPoints[0].Attributes.Value(attribute.Key("api.status"))
	if !ok || status.AsString() != "429" {
		t.Errorf("api.status = %v, want 429", status.Emit())
	}
	endpoint, _ := sum.DataPoints[0].Attributes.Value(attribute.Key("api.endpoint"))
	if endpoint.AsString() != "contacts" {
		t.Errorf("api.endpoint = %q, want contacts", endpoint.AsString())
	}
}

func TestMetrics_RetryAndCircuit(t *testing.T) {
	m, reader, _ := newTestMetrics(t)
	meta := CallMeta{Endpoint: "contacts"}

	m.RecordRetry(context.Background(), meta, 1, 100*time.Millisecond)
	m.RecordRetry(context.Background(), meta, 2, 200*time.Millisecond)
	m.RecordCircuitTransition(context.Background(), "closed", "open")

	rm := collect(t, reader)
	if got := sumValue(t, rm, "api.retry.total"); got != 2 {
		t.Errorf("api.retry.total = %d, want 2", got)
	}
	if got := sumValue(t, rm, "api.circuit.transitions"); got != 1 {
		t.Errorf("api.circuit.transitions = %d, want 1", got)
	}
}

func TestRegisterStateGauges(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	snap := StateSnapshot{QueueActive: 3, QueueQueued: 7, CircuitState: 1}
	reg, err := RegisterStateGauges(mp.Meter("test"), func() StateSnapshot { return snap })
	if err != nil {
		t.Fatalf("RegisterStateGauges() error = %v", err)
	}
	defer func() { _ = reg.Unregister() }()

	rm := collect(t, reader)
	want := map[string]int64{
		"api.queue.active":  3,
		"api.queue.queued":  7,
		"api.circuit.state": 1,
	}
	for name, v := range want {
		found := findMetric(rm, name)
		if found == nil {
			t.Errorf("%s not found", name)
			continue
		}
		gauge, ok := found.Data.(metricdata.Gauge[int64])
		if !ok || len(gauge.DataPoints) != 1 {
			t.Errorf("%s data = %+v", name, found.Data)
			continue
		}
		if gauge.DataPoints[0].Value != v {
			t.Errorf("%s = %d, want %d", name, gauge.DataPoints[0].Value, v)
		}
	}
}

func TestRegisterStateGauges_NoBreaker(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	_, err := RegisterStateGauges(mp.Meter("test"), func() StateSnapshot {
		return StateSnapshot{CircuitState: -1}
	})
	if err != nil {
		t.Fatalf("RegisterStateGauges() error = %v", err)
	}

	if found := findMetric(collect(t, reader), "api.circuit.state"); found != nil {
		if g, ok := found.Data.(metricdata.Gauge[int64]); ok && len(g.DataPoints) > 0 {
			t.Error("api.circuit.state observed without a breaker")
		}
	}
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	m, reader, _ := newTestMetrics(t)

	const goroutines = 50
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				err = errors.New("boom")
			}
			m.RecordRequest(context.Background(), CallMeta{Endpoint: "contacts"}, time.Millisecond, err)
		}(i)
	}
	wg.Wait()

	rm := collect(t, reader)
	if got := sumValue(t, rm, "api.request.total"); got != goroutines {
		t.Errorf("api.request.total = %d, want %d", got, goroutines)
	}
	if got := sumValue(t, rm, "api.request.errors"); got != goroutines/2 {
		t.Errorf("api.request.errors = %d, want %d", got, goroutines/2)
	}
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
