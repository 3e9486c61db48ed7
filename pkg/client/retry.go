package client

import (
	"math"
	"time"
)

// Backoff is the reconnection policy: exponential delay growth, doubling per
// attempt from InitialDelay, capped at MaxDelay, up to MaxAttempts tries.
// After the ceiling the client stops and surfaces a permanent-failure state.
//
// The delay cap is deliberate: attempt-count-only policies grow without bound
// long before the ceiling is reached.
type Backoff struct {
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the computed delay.
	MaxDelay time.Duration

	// Multiplier is the growth factor per attempt.
	Multiplier float64

	// MaxAttempts is the retry ceiling. Zero or negative means no retries.
	MaxAttempts int
}

// DefaultBackoff returns the standard reconnection policy: 1s base delay
// doubling per attempt, capped at 30s, ten attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
	}
}

// NextDelay returns the delay before retry number attempt (0-based) and
// whether to retry at all.
func (b Backoff) NextDelay(attempt int) (time.Duration, bool) {
	if attempt >= b.MaxAttempts {
		return 0, false
	}

	delay := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt))
	if delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}

	return time.Duration(delay), true
}
