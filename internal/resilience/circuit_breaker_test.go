package resilience

import (
	"errors"
	"testing"
	"time"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := NewCircuitBreaker("test", maxFailures, time.Second)
	cb.now = clock.now
	return cb, clock
}

var errBoom = errors.New("boom")

func fail() error { return errBoom }
func ok() error   { return nil }

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb, _ := newTestBreaker(3)

	if cb.State() != StateClosed {
		t.Errorf("expected closed, got %s", cb.State())
	}
	if !cb.Allow() {
		t.Error("expected closed breaker to allow requests")
	}
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb, _ := newTestBreaker(3)

	cb.Call(fail)
	cb.Call(fail)
	if cb.State() != StateClosed {
		t.Fatal("expected closed after 2 failures")
	}

	cb.Call(fail)
	if cb.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", cb.State())
	}

	called := false
	err := cb.Call(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Error("expected open breaker to skip the call")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(2)

	cb.Call(fail)
	cb.Call(ok)
	cb.Call(fail)

	if cb.State() != StateClosed {
		t.Errorf("expected non-consecutive failures to keep the breaker closed, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(1)

	cb.Call(fail)
	if cb.State() != StateOpen {
		t.Fatal("expected open")
	}

	clock.advance(500 * time.Millisecond)
	if cb.Allow() {
		t.Fatal("expected breaker to stay open before the reset timeout")
	}

	clock.advance(600 * time.Millisecond)
	if err := cb.Call(ok); err != nil {
		t.Fatalf("expected trial call to run, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after successful trial call, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1)

	cb.Call(fail)
	clock.advance(2 * time.Second)

	if !cb.Allow() {
		t.Fatal("expected trial call to be allowed")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("expected only one trial call in half-open")
	}

	cb.RecordResult(false)
	if cb.State() != StateOpen {
		t.Errorf("expected open after failed trial call, got %s", cb.State())
	}
}

func TestCircuitBreaker_StatsAndReset(t *testing.T) {
	cb, _ := newTestBreaker(2)

	cb.Call(ok)
	cb.Call(fail)
	cb.Call(fail)

	state, requests, failures := cb.Stats()
	if state != StateOpen || requests != 3 || failures != 2 {
		t.Errorf("unexpected stats: state=%s requests=%d failures=%d", state, requests, failures)
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("expected closed after Reset, got %s", cb.State())
	}
}
