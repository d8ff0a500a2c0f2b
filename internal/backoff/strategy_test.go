package backoff

import (
	"testing"
	"time"
)

func TestExponentialDelayWithoutJitter(t *testing.T) {
	s := Exponential{}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
	}

	for _, tt := range tests {
		got := s.Delay(tt.attempt, 100*time.Millisecond, 30*time.Second, 2.0, 0)
		if got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialDelayCappedAtMax(t *testing.T) {
	s := Exponential{}

	got := s.Delay(20, 100*time.Millisecond, 1*time.Second, 2.0, 0)
	if got != 1*time.Second {
		t.Errorf("Delay(20) = %v, want cap of 1s", got)
	}
}

func TestExponentialDelayClampsAttempt(t *testing.T) {
	s := Exponential{}

	if got := s.Delay(0, 100*time.Millisecond, time.Minute, 2.0, 0); got != 100*time.Millisecond {
		t.Errorf("Delay(0) = %v, want %v", got, 100*time.Millisecond)
	}
	if got := s.Delay(-5, 100*time.Millisecond, time.Minute, 2.0, 0); got != 100*time.Millisecond {
		t.Errorf("Delay(-5) = %v, want %v", got, 100*time.Millisecond)
	}
}

func TestExponentialDelayJitterBounds(t *testing.T) {
	s := Exponential{}

	for i := 0; i < 100; i++ {
		got := s.Delay(1, 100*time.Millisecond, 30*time.Second, 2.0, 0.5)
		if got < 100*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("jittered delay %v outside [100ms, 150ms]", got)
		}
	}
}

func TestExponentialDelayJitterClamped(t *testing.T) {
	s := Exponential{}

	// Out-of-range jitter values must not panic or produce negative delays.
	if got := s.Delay(1, 100*time.Millisecond, time.Second, 2.0, -1); got != 100*time.Millisecond {
		t.Errorf("negative jitter: got %v, want %v", got, 100*time.Millisecond)
	}
	got := s.Delay(1, 100*time.Millisecond, time.Second, 2.0, 5)
	if got < 100*time.Millisecond || got > 200*time.Millisecond {
		t.Errorf("clamped jitter: got %v, want within [100ms, 200ms]", got)
	}
}
