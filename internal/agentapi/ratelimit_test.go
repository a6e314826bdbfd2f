package agentapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewRateLimiter(3, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("s"), "request %d", i)
	}
	assert.False(t, l.Allow("s"))

	now = now.Add(59 * time.Second)
	assert.False(t, l.Allow("s"), "window has not rolled over")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("s"))
}

func TestRateLimiterSweepsExpiredWindows(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewRateLimiter(1, time.Second)
	l.now = func() time.Time { return now }
	for i := 0; i < maxTrackedSessions; i++ {
		l.Allow(string(rune('a'+i%26)) + time.Duration(i).String())
	}

	now = now.Add(2 * time.Second)
	l.Allow("fresh")

	assert.Len(t, l.windows, 1)
}
