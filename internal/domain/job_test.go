package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryBackoffSchedule(t *testing.T) {
	want := []time.Duration{
		30 * time.Second,
		60 * time.Second,
		120 * time.Second,
		300 * time.Second,
		600 * time.Second,
	}
	for attempt := 1; attempt <= MaxJobAttempts; attempt++ {
		assert.Equal(t, want[attempt-1], RetryBackoff(attempt), "attempt %d", attempt)
	}
	assert.Equal(t, 600*time.Second, RetryBackoff(MaxJobAttempts+1))
	assert.Equal(t, 30*time.Second, RetryBackoff(0))
}
