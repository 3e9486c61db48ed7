package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffNextDelay(t *testing.T) {
	b := Backoff{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
	}

	tests := []struct {
		attempt int
		want    time.Duration
		retry   bool
	}{
		{0, 1 * time.Second, true},
		{1, 2 * time.Second, true},
		{2, 4 * time.Second, true},
		{4, 16 * time.Second, true},
		{5, 30 * time.Second, true}, // 32s computed, capped
		{9, 30 * time.Second, true},
		{10, 0, false}, // ceiling reached
		{50, 0, false},
	}

	for _, tt := range tests {
		delay, retry := b.NextDelay(tt.attempt)
		assert.Equal(t, tt.retry, retry, "attempt %d", tt.attempt)
		assert.Equal(t, tt.want, delay, "attempt %d", tt.attempt)
	}
}

func TestBackoffZeroAttemptsNeverRetries(t *testing.T) {
	b := Backoff{InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2.0}
	_, retry := b.NextDelay(0)
	assert.False(t, retry)
}

func TestDefaultBackoff(t *testing.T) {
	b := DefaultBackoff()
	assert.Equal(t, 1*time.Second, b.InitialDelay)
	assert.Equal(t, 30*time.Second, b.MaxDelay)
	assert.Equal(t, 2.0, b.Multiplier)
	assert.Equal(t, 10, b.MaxAttempts)
}
