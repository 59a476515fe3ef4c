// ring.go — Generic bounded FIFO ring buffer.
// Fixed-capacity circular buffer; the oldest entry is evicted when full.
// Thread-safe: all access guarded by RWMutex.
package buffers

import "sync"

// Ring is a generic fixed-capacity circular buffer with FIFO eviction.
type Ring[T any] struct {
	mu       sync.RWMutex
	entries  []T
	capacity int
	head     int // index where the next write goes once full
	full     bool
}

// NewRing creates a ring buffer with the given capacity (minimum 1).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		entries:  make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Append adds one entry, evicting the oldest if the buffer is at capacity.
func (r *Ring[T]) Append(entry T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		r.entries = append(r.entries, entry)
		if len(r.entries) == r.capacity {
			r.full = true
		}
		return
	}
	r.entries[r.head] = entry
	r.head = (r.head + 1) % r.capacity
}

// Snapshot returns all entries currently buffered, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return nil
	}
	result := make([]T, len(r.entries))
	if !r.full {
		copy(result, r.entries)
		return result
	}
	n := copy(result, r.entries[r.head:])
	copy(result[n:], r.entries[:r.head])
	return result
}

// Last returns the newest n entries, oldest first. n <= 0 returns nil.
func (r *Ring[T]) Last(n int) []T {
	all := r.Snapshot()
	if n <= 0 || len(all) == 0 {
		return nil
	}
	if n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Len returns the number of entries currently buffered.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Cap returns the buffer capacity.
func (r *Ring[T]) Cap() int { return r.capacity }

// Clear removes all entries.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = r.entries[:0]
	r.head = 0
	r.full = false
}
