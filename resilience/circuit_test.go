package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int, reset time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     reset,
	})
	cb.now = clock.Now
	return cb, clock
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.State() != StateClosed {
		t.Errorf("Initial state = %v, want closed", cb.State())
	}
	if cb.config.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cb.config.FailureThreshold)
	}
	if cb.config.ResetTimeout != 60*time.Second {
		t.Errorf("ResetTimeout = %v, want 60s", cb.config.ResetTimeout)
	}
}

func TestCircuitBreaker_OpensAtThresholdAndRejects(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Second)
	testErr := errors.New("boom")

	for i := 0; i < 2; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error {
			return testErr
		})
		if err != testErr {
			t.Errorf("Execute() error = %v, want %v", err, testErr)
		}
		if cb.State() != StateClosed {
			t.Errorf("After %d failures, state = %v, want closed", i+1, cb.State())
		}
	}

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})
	if cb.State() != StateOpen {
		t.Fatalf("After 3 failures, state = %v, want open", cb.State())
	}

	called := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() when open = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("operation invoked while circuit open")
	}
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	})

	clock.Advance(time.Minute)
	if cb.State() != StateOpen {
		t.Errorf("State at exactly ResetTimeout = %v, want open", cb.State())
	}

	clock.Advance(time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Errorf("State after ResetTimeout = %v, want half-open", cb.State())
	}
}

func TestCircuitBreaker_SingleTrialCall(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Second)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	})
	clock.Advance(2 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	var calls atomic.Int32
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second call during trial = %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != 0 {
		t.Error("second operation invoked during half-open trial")
	}

	close(release)
	wg.Wait()

	m := cb.Metrics()
	if m.State != StateClosed {
		t.Errorf("State after successful trial = %v, want closed", m.State)
	}
	if m.Failures != 0 {
		t.Errorf("Failures after successful trial = %d, want 0", m.Failures)
	}
}

func TestCircuitBreaker_TrialFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(2, time.Second)
	testErr := errors.New("boom")

	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return testErr
		})
	}
	clock.Advance(2 * time.Second)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})
	if err != testErr {
		t.Errorf("trial error = %v, want %v", err, testErr)
	}

	m := cb.Metrics()
	if m.State != StateOpen {
		t.Errorf("State = %v, want open", m.State)
	}
	if m.Failures != 3 {
		t.Errorf("Failures = %d, want 3", m.Failures)
	}
	if !m.LastFailure.Equal(clock.Now()) {
		t.Errorf("LastFailure = %v, want %v", m.LastFailure, clock.Now())
	}
}

func TestCircuitBreaker_SuccessInClosedKeepsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Second)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	})
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})

	if got := cb.Metrics().Failures; got != 1 {
		t.Errorf("Failures = %d, want 1 (reset only on transition to closed)", got)
	}
}

func TestCircuitBreaker_IgnoresCircuitOpenAndCancellation(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Second)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return fmt.Errorf("downstream: %w", ErrCircuitOpen)
	})
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return context.Canceled
	})

	if cb.State() != StateClosed {
		t.Errorf("State = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Hour)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	})
	if cb.State() != StateOpen {
		t.Fatalf("State = %v, want open", cb.State())
	}

	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("State after Reset = %v, want closed", cb.State())
	}
	if cb.Metrics().Failures != 0 {
		t.Errorf("Failures after Reset = %d, want 0", cb.Metrics().Failures)
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	clock := newFakeClock()
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Second,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	cb.now = clock.Now

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	})
	clock.Advance(2 * time.Second)
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
