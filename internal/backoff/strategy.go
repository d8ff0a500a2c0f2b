package backoff

import (
	"math/rand"
	"time"
)

// Strategy defines the interface for backoff calculation algorithms.
type Strategy interface {
	// Delay returns the wait before retry number attempt (1-indexed: the wait
	// after the first failure is attempt 1).
	Delay(attempt int, base, max time.Duration, multiplier, jitter float64) time.Duration
}

// Exponential implements exponential backoff with optional uniform jitter.
// With jitter 0 the delay for retry n is exactly base * multiplier^(n-1),
// capped at max.
type Exponential struct{}

// Delay implements the Strategy interface.
func (Exponential) Delay(attempt int, base, max time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Prevent overflow for absurd attempt counts.
	if attempt > 31 {
		attempt = 31
	}

	delay := time.Duration(float64(base) * pow(multiplier, attempt-1))
	if max > 0 && (delay > max || delay < 0) {
		delay = max
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		amount := time.Duration(float64(delay) * jitter * rand.Float64())
		if max > 0 && delay+amount > max {
			delay = max
		} else {
			delay += amount
		}
	}
	return delay
}

func clampJitter(j float64) float64 {
	if j < 0 {
		return 0
	}
	if j > 1 {
		return 1
	}
	return j
}

func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
