// audit.go — Append-only bounded audit trail.
// Every security-relevant action produces an immutable Event appended to a
// FIFO ring; the oldest events are evicted at capacity and nothing is ever
// modified in place. The trail is queryable by type, actor, and outcome,
// and exposes aggregate statistics with a trailing-window failure count.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beacon-devtools/beacon/internal/buffers"
)

// EventType categorizes an audit event.
type EventType string

const (
	EventAuth           EventType = "authentication"
	EventResourceAccess EventType = "resource_access"
	EventToolInvocation EventType = "tool_invocation"
	EventWireCommand    EventType = "wire_command"
	EventPolicyBlock    EventType = "policy_block"
	EventRateLimit      EventType = "rate_limit"
)

// Outcome is the result classification of an audited action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeBlocked Outcome = "blocked"
)

// Event is one immutable audit record.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Actor     string    `json:"actor"`
	Resource  string    `json:"resource"`
	Outcome   Outcome   `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
}

// Statistics aggregates the current trail contents.
type Statistics struct {
	Total          int               `json:"total"`
	ByType         map[EventType]int `json:"by_type"`
	ByOutcome      map[Outcome]int   `json:"by_outcome"`
	RecentFailures int               `json:"recent_failures"` // failures/blocks inside the trailing window
	WindowSeconds  int               `json:"window_seconds"`
}

const (
	defaultCapacity      = 10000
	defaultFailureWindow = 5 * time.Minute
)

// Log is the append-only bounded audit trail. Safe for concurrent use.
type Log struct {
	mu            sync.RWMutex
	ring          *buffers.Ring[Event]
	failureWindow time.Duration
	now           func() time.Time
}

// NewLog creates an audit log holding at most capacity events
// (<=0 selects the default).
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Log{
		ring:          buffers.NewRing[Event](capacity),
		failureWindow: defaultFailureWindow,
		now:           time.Now,
	}
}

// append stamps and stores an event.
func (l *Log) append(e Event) Event {
	e.ID = uuid.NewString()
	e.Timestamp = l.now()
	l.mu.Lock()
	l.ring.Append(e)
	l.mu.Unlock()
	return e
}

// RecordAuth records a client authentication/identification event.
func (l *Log) RecordAuth(actor string, outcome Outcome, detail string) Event {
	return l.append(Event{Type: EventAuth, Actor: actor, Resource: "session", Outcome: outcome, Detail: detail})
}

// RecordResourceAccess records access to a named resource.
func (l *Log) RecordResourceAccess(actor, resource string, outcome Outcome, detail string) Event {
	return l.append(Event{Type: EventResourceAccess, Actor: actor, Resource: resource, Outcome: outcome, Detail: detail})
}

// RecordToolInvocation records a capability invocation.
func (l *Log) RecordToolInvocation(actor, tool string, outcome Outcome, detail string) Event {
	return l.append(Event{Type: EventToolInvocation, Actor: actor, Resource: tool, Outcome: outcome, Detail: detail})
}

// RecordWireCommand records a debugging-protocol command send.
func (l *Log) RecordWireCommand(actor, method string, outcome Outcome, detail string) Event {
	return l.append(Event{Type: EventWireCommand, Actor: actor, Resource: method, Outcome: outcome, Detail: detail})
}

// RecordPolicyBlock records a whitelist or sanitizer denial.
func (l *Log) RecordPolicyBlock(actor, resource, detail string) Event {
	return l.append(Event{Type: EventPolicyBlock, Actor: actor, Resource: resource, Outcome: OutcomeBlocked, Detail: detail})
}

// RecordRateLimit records a rate-limiter rejection.
func (l *Log) RecordRateLimit(actor, detail string) Event {
	return l.append(Event{Type: EventRateLimit, Actor: actor, Resource: "rate_budget", Outcome: OutcomeBlocked, Detail: detail})
}

// Recent returns the newest n events, newest first.
func (l *Log) Recent(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return reversed(l.ring.Last(n))
}

// ByType returns up to n newest events of the given type, newest first.
func (l *Log) ByType(t EventType, n int) []Event {
	return l.filter(n, func(e Event) bool { return e.Type == t })
}

// ByActor returns up to n newest events for the given actor, newest first.
func (l *Log) ByActor(actor string, n int) []Event {
	return l.filter(n, func(e Event) bool { return e.Actor == actor })
}

// Failed returns up to n newest events whose outcome was failure or blocked,
// newest first.
func (l *Log) Failed(n int) []Event {
	return l.filter(n, func(e Event) bool {
		return e.Outcome == OutcomeFailure || e.Outcome == OutcomeBlocked
	})
}

// Statistics aggregates the trail: totals per type and outcome, plus a
// failure/block count over the trailing window.
func (l *Log) Statistics() Statistics {
	l.mu.RLock()
	all := l.ring.Snapshot()
	l.mu.RUnlock()

	stats := Statistics{
		Total:         len(all),
		ByType:        make(map[EventType]int),
		ByOutcome:     make(map[Outcome]int),
		WindowSeconds: int(l.failureWindow.Seconds()),
	}
	cutoff := l.now().Add(-l.failureWindow)
	for _, e := range all {
		stats.ByType[e.Type]++
		stats.ByOutcome[e.Outcome]++
		if (e.Outcome == OutcomeFailure || e.Outcome == OutcomeBlocked) && !e.Timestamp.Before(cutoff) {
			stats.RecentFailures++
		}
	}
	return stats
}

// filter walks the trail newest-first collecting up to n matches.
func (l *Log) filter(n int, keep func(Event) bool) []Event {
	if n <= 0 {
		n = 100
	}
	l.mu.RLock()
	all := l.ring.Snapshot()
	l.mu.RUnlock()

	var out []Event
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		if keep(all[i]) {
			out = append(out, all[i])
		}
	}
	return out
}

func reversed(events []Event) []Event {
	if len(events) == 0 {
		return nil
	}
	out := make([]Event, len(events))
	for i, e := range events {
		out[len(events)-1-i] = e
	}
	return out
}
