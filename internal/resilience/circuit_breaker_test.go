package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_StaysClosedUnderThreshold(t *testing.T) {
	cb := NewCircuitBreaker("chat", 3, time.Second)

	cb.Record(false)
	cb.Record(false)
	if cb.State() != StateClosed {
		t.Error("Expected Closed after 2 failures")
	}

	// A success resets the consecutive-failure count
	cb.Record(true)
	cb.Record(false)
	cb.Record(false)
	if cb.State() != StateClosed {
		t.Error("Expected Closed, success should have reset the count")
	}
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker("chat", 3, time.Second)

	cb.Record(false)
	cb.Record(false)
	cb.Record(false)
	if cb.State() != StateOpen {
		t.Fatal("Expected Open after 3 failures")
	}

	err := cb.Call(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("chat", 2, 20*time.Millisecond)

	cb.Record(false)
	cb.Record(false)
	if cb.State() != StateOpen {
		t.Fatal("Expected Open")
	}

	time.Sleep(30 * time.Millisecond)

	// Enough successes close the circuit again
	for i := 0; i < 3; i++ {
		if err := cb.Call(func() error { return nil }); err != nil {
			t.Fatalf("Probe call %d rejected: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected Closed after successful probes, got %d", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("chat", 2, 20*time.Millisecond)

	cb.Record(false)
	cb.Record(false)
	time.Sleep(30 * time.Millisecond)

	_ = cb.Call(func() error { return errors.New("still down") })
	if cb.State() != StateOpen {
		t.Errorf("Expected Open after half-open failure, got %d", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker("chat", 1, time.Hour)
	cb.Record(false)
	if cb.State() != StateOpen {
		t.Fatal("Expected Open")
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Error("Expected Closed after Reset")
	}
}
