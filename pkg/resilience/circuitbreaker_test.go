package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerTripsAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     10 * time.Millisecond,
	})
	boom := errors.New("boom")
	fail := func() error { return boom }

	for i := 0; i < 2; i++ {
		if err := cb.Execute(fail); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state after threshold = %v, want open", cb.GetState())
	}
	if err := cb.Execute(fail); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open circuit must reject, got %v", err)
	}

	time.Sleep(15 * time.Millisecond)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("half-open probe: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("state after probe success = %v, want closed", cb.GetState())
	}
}

func TestCircuitBreakerReportsStateChanges(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("upstream-catalog", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     5 * time.Millisecond,
		OnStateChange: func(name string, state State) {
			if name != "upstream-catalog" {
				t.Errorf("name = %q", name)
			}
			transitions = append(transitions, state)
		},
	})
	boom := errors.New("boom")

	cb.Execute(func() error { return boom })
	time.Sleep(10 * time.Millisecond)
	cb.Execute(func() error { return nil })

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", transitions, want)
		}
	}
}
