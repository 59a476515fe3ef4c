// health.go — Buffered health event reporter.
// Components record health events (connection state changes, buffer
// pressure, policy activity) into a bounded ring; a periodic flush emits
// them. Payloads pass through the output sanitizer at emission time, so a
// careless component embedding a credential in a health payload never leaks
// it past this boundary.
package telemetry

import (
	"sync"
	"time"

	"github.com/beacon-devtools/beacon/internal/buffers"
	"github.com/beacon-devtools/beacon/internal/redaction"
)

// HealthEvent is one recorded health observation.
type HealthEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Name      string         `json:"name"`
	Payload   map[string]any `json:"payload,omitempty"`
}

const defaultHealthCapacity = 256

// HealthReporter buffers health events until flushed. Safe for concurrent
// use.
type HealthReporter struct {
	mu        sync.Mutex
	ring      *buffers.Ring[HealthEvent]
	sanitizer *redaction.Sanitizer
	now       func() time.Time
}

// NewHealthReporter creates a reporter emitting through the given sanitizer.
// A nil sanitizer gets the builtin battery.
func NewHealthReporter(sanitizer *redaction.Sanitizer) *HealthReporter {
	if sanitizer == nil {
		sanitizer = redaction.NewSanitizer()
	}
	return &HealthReporter{
		ring:      buffers.NewRing[HealthEvent](defaultHealthCapacity),
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Record buffers one health event. The payload is stored as given; scrubbing
// happens at flush.
func (r *HealthReporter) Record(name string, payload map[string]any) {
	r.mu.Lock()
	r.ring.Append(HealthEvent{Timestamp: r.now(), Name: name, Payload: payload})
	r.mu.Unlock()
}

// Flush drains and returns all buffered events, oldest first, with every
// payload sanitized.
func (r *HealthReporter) Flush() []HealthEvent {
	r.mu.Lock()
	events := r.ring.Snapshot()
	r.ring.Clear()
	r.mu.Unlock()

	for i := range events {
		if events[i].Payload == nil {
			continue
		}
		events[i].Payload = r.sanitizer.Sanitize(events[i].Payload).(map[string]any)
	}
	return events
}

// Pending reports how many events await a flush.
func (r *HealthReporter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ring.Len()
}
