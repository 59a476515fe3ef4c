// store.go — Injected store for captured browser events.
// Console, network, and performance events reported by the instrumented
// browser are buffered in bounded per-category rings. The store is owned by
// whoever wires the process together and passed by reference; there is no
// package-level mutable state.
package capture

import (
	"time"

	"github.com/beacon-devtools/beacon/internal/buffers"
)

// ConsoleEntry is one buffered console message.
type ConsoleEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "log", "info", "warn", "error"
	Message   string    `json:"message"`
	URL       string    `json:"url,omitempty"`
}

// NetworkEntry is one buffered request/response summary.
type NetworkEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// PerfEntry is one buffered performance measurement.
type PerfEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
}

// Store holds the bounded event buffers for one browser connection's
// captured state.
type Store struct {
	Console     *buffers.Ring[ConsoleEntry]
	Network     *buffers.Ring[NetworkEntry]
	Performance *buffers.Ring[PerfEntry]
}

// Capacities sets the per-category buffer sizes.
type Capacities struct {
	Console     int
	Network     int
	Performance int
}

// DefaultCapacities mirror what a single debugging session realistically
// accumulates before older events stop being useful.
var DefaultCapacities = Capacities{Console: 500, Network: 1000, Performance: 200}

// NewStore creates a store with the given capacities; zero values fall back
// to defaults.
func NewStore(caps Capacities) *Store {
	if caps.Console <= 0 {
		caps.Console = DefaultCapacities.Console
	}
	if caps.Network <= 0 {
		caps.Network = DefaultCapacities.Network
	}
	if caps.Performance <= 0 {
		caps.Performance = DefaultCapacities.Performance
	}
	return &Store{
		Console:     buffers.NewRing[ConsoleEntry](caps.Console),
		Network:     buffers.NewRing[NetworkEntry](caps.Network),
		Performance: buffers.NewRing[PerfEntry](caps.Performance),
	}
}
