package audit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordersStampAndClassify(t *testing.T) {
	l := NewLog(10)

	e := l.RecordToolInvocation("assistant-1", "navigate", OutcomeSuccess, "")
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, EventToolInvocation, e.Type)

	blocked := l.RecordPolicyBlock("assistant-1", "Runtime.evaluate", "dangerous pattern")
	assert.Equal(t, OutcomeBlocked, blocked.Outcome)

	limited := l.RecordRateLimit("assistant-1", "budget exhausted")
	assert.Equal(t, EventRateLimit, limited.Type)
	assert.Equal(t, OutcomeBlocked, limited.Outcome)
}

func TestFIFOEvictionAtCapacity(t *testing.T) {
	l := NewLog(3)
	for i := 0; i < 5; i++ {
		l.RecordWireCommand("a", fmt.Sprintf("Page.cmd%d", i), OutcomeSuccess, "")
	}

	recent := l.Recent(10)
	require.Len(t, recent, 3)
	// Newest first; the two oldest were evicted.
	assert.Equal(t, "Page.cmd4", recent[0].Resource)
	assert.Equal(t, "Page.cmd2", recent[2].Resource)
}

func TestQueryAccessors(t *testing.T) {
	l := NewLog(100)
	l.RecordAuth("cursor", OutcomeSuccess, "")
	l.RecordToolInvocation("assistant-1", "evaluate", OutcomeFailure, "timeout")
	l.RecordToolInvocation("cursor", "navigate", OutcomeSuccess, "")
	l.RecordPolicyBlock("assistant-1", "Network.setExtraHTTPHeaders", "blocked")

	assert.Len(t, l.ByType(EventToolInvocation, 10), 2)
	assert.Len(t, l.ByActor("assistant-1", 10), 2)

	failed := l.Failed(10)
	require.Len(t, failed, 2)
	assert.Equal(t, EventPolicyBlock, failed[0].Type) // newest first
	assert.Equal(t, OutcomeFailure, failed[1].Outcome)
}

func TestStatisticsTrailingWindow(t *testing.T) {
	l := NewLog(100)
	current := time.Now()
	l.now = func() time.Time { return current }

	l.RecordToolInvocation("a", "t", OutcomeFailure, "old failure")
	current = current.Add(10 * time.Minute) // push first failure outside the window
	l.RecordToolInvocation("a", "t", OutcomeSuccess, "")
	l.RecordPolicyBlock("a", "r", "fresh block")

	stats := l.Statistics()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByType[EventToolInvocation])
	assert.Equal(t, 1, stats.ByOutcome[OutcomeBlocked])
	assert.Equal(t, 1, stats.RecentFailures)
}
