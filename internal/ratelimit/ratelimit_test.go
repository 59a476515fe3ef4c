package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinBudget(t *testing.T) {
	l := NewLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		ok, rej := l.Allow("assistant-1")
		require.True(t, ok)
		require.Nil(t, rej)
	}
}

func TestDenyOverBudgetWithRetryAfter(t *testing.T) {
	l := NewLimiter(2, time.Minute)
	l.Allow("a")
	l.Allow("a")

	ok, rej := l.Allow("a")
	require.False(t, ok)
	require.NotNil(t, rej)
	assert.Equal(t, "a", rej.Identity)
	assert.Equal(t, 2, rej.Limit)
	assert.Greater(t, rej.RetryAfter, time.Duration(0))
	assert.Contains(t, rej.Error(), "rate limit exceeded")
}

func TestIdentitiesAreIndependent(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	ok, _ := l.Allow("a")
	require.True(t, ok)

	ok, _ = l.Allow("b")
	assert.True(t, ok)

	ok, _ = l.Allow("a")
	assert.False(t, ok)
}

func TestWindowSlides(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	current := time.Now()
	l.now = func() time.Time { return current }

	ok, _ := l.Allow("a")
	require.True(t, ok)
	ok, _ = l.Allow("a")
	require.False(t, ok)

	current = current.Add(61 * time.Second)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
}

func TestIdleIdentitiesPruned(t *testing.T) {
	l := NewLimiter(5, time.Minute)
	current := time.Now()
	l.now = func() time.Time { return current }

	l.Allow("a")
	l.Allow("b")
	require.Len(t, l.requests, 2)

	current = current.Add(2 * time.Minute)
	l.Allow("c")

	assert.Len(t, l.requests, 1, "identities with fully expired history are dropped")
	_, present := l.requests["c"]
	assert.True(t, present)
}
