package circuitbreaker

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestBreaker(maxFailures int, recovery time.Duration) *CircuitBreaker {
	return New(Config{
		Name:                "test",
		MaxFailures:         maxFailures,
		RecoveryTimeout:     recovery,
		HalfOpenMaxRequests: 1,
	}, zap.NewNop())
}

func TestOpensAtFailureThreshold(t *testing.T) {
	cb := newTestBreaker(3, time.Hour)

	for i := 0; i < 2; i++ {
		if !cb.Allow() {
			t.Fatalf("closed breaker rejected request %d", i+1)
		}
		cb.RecordFailure()
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed below threshold, got %s", cb.State())
	}

	cb.Allow()
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected open at threshold, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("open breaker allowed a request")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(3, time.Hour)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != StateClosed {
		t.Errorf("expected closed, interleaved successes reset the count, got %s", cb.State())
	}
}

func TestProbeClosesCircuit(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("expected probe to be allowed after recovery timeout")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open during probe, got %s", cb.State())
	}
	// Only one probe at a time.
	if cb.Allow() {
		t.Error("second concurrent probe allowed")
	}

	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Errorf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestFailedProbeReopens(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("expected probe to be allowed")
	}
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Errorf("expected reopened breaker after failed probe, got %s", cb.State())
	}
}

func TestSnapshot(t *testing.T) {
	cb := newTestBreaker(2, time.Hour)

	cb.Allow()
	cb.RecordSuccess()
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	cb.Allow() // rejected, breaker open

	s := cb.Snapshot()
	if s.Name != "test" || s.State != "open" {
		t.Errorf("unexpected snapshot identity: %+v", s)
	}
	if s.TotalRequests != 4 || s.TotalSuccesses != 1 || s.TotalFailures != 2 || s.TotalRejected != 1 {
		t.Errorf("unexpected snapshot counters: %+v", s)
	}
	if s.LastFailure == "" || s.LastStateChange == "" {
		t.Errorf("expected timestamps in snapshot: %+v", s)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
