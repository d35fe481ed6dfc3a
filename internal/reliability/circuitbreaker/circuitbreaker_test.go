package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 1, time.Minute)
	for i := 0; i < 2; i++ {
		cb.RecordFailure()
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed after 2 failures, got %s", cb.GetState())
	}
	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", cb.GetState())
	}
	if cb.AllowRequest() {
		t.Fatalf("open breaker must reject requests during cooldown")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(2, 1, time.Minute)
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	if cb.GetState() != StateClosed {
		t.Fatalf("non-consecutive failures must not trip the breaker")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(1, 2, 10*time.Second)
	cb.now = func() time.Time { return now }

	var transitions []string
	cb.SetStateChangeCallback(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	cb.RecordFailure()
	cb.now = func() time.Time { return now.Add(11 * time.Second) }
	if !cb.AllowRequest() {
		t.Fatalf("expected probe to be allowed after cooldown")
	}
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("expected half_open, got %s", cb.GetState())
	}
	cb.RecordSuccess()
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("expected to stay half_open until success threshold")
	}
	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed, got %s", cb.GetState())
	}

	want := []string{"closed->open", "open->half_open", "half_open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("unexpected transitions %v", transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transition %d: want %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(1, 1, time.Second)
	cb.now = func() time.Time { return now }
	cb.RecordFailure()

	cb.now = func() time.Time { return now.Add(2 * time.Second) }
	cb.AllowRequest()
	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatalf("failed probe must reopen the breaker")
	}
	if cb.AllowRequest() {
		t.Fatalf("reopened breaker should start a new cooldown")
	}
}

func TestExecute(t *testing.T) {
	cb := NewCircuitBreaker(1, 1, time.Minute)
	boom := errors.New("boom")

	if err := cb.Execute(context.Background(), func(context.Context) error { return context.Canceled }); !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected error %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("cancellation must not trip the breaker")
	}

	if err := cb.Execute(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("unexpected error %v", err)
	}
	called := false
	err := cb.Execute(context.Background(), func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrOpen) || called {
		t.Fatalf("expected ErrOpen without calling fn, got %v (called=%v)", err, called)
	}
}
