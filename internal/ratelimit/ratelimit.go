// ratelimit.go — Per-identity sliding-window request budget.
// Exceeding the budget yields a structured Rejection, never a fault; the
// caller pairs a denial with an audit event of category rate_limit.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

const (
	defaultWindow      = time.Minute
	defaultMaxRequests = 120
)

// Rejection describes a denied request and how long to back off.
type Rejection struct {
	Identity   string        `json:"identity"`
	Limit      int           `json:"limit"`
	Window     time.Duration `json:"window"`
	RetryAfter time.Duration `json:"retry_after"`
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q: %d requests per %s (retry after %s)",
		r.Identity, r.Limit, r.Window, r.RetryAfter.Round(time.Millisecond))
}

// Limiter tracks request timestamps per identity over a sliding window.
// Safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	window      time.Duration
	maxRequests int
	requests    map[string][]time.Time
	now         func() time.Time
}

// NewLimiter creates a limiter allowing maxRequests per window per identity.
// Non-positive arguments select defaults.
func NewLimiter(maxRequests int, window time.Duration) *Limiter {
	if maxRequests <= 0 {
		maxRequests = defaultMaxRequests
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &Limiter{
		window:      window,
		maxRequests: maxRequests,
		requests:    make(map[string][]time.Time),
		now:         time.Now,
	}
}

// Allow records one request for identity and reports whether it fits the
// budget. On denial the request is not counted and a Rejection is returned.
func (l *Limiter) Allow(identity string) (bool, *Rejection) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	// Drop identities whose entire history has aged out, so the map does
	// not grow by one entry per client ever seen. Timestamps are appended
	// in order, so checking the newest is enough.
	for id, ts := range l.requests {
		if id == identity {
			continue
		}
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(l.requests, id)
		}
	}

	kept := l.requests[identity][:0]
	for _, t := range l.requests[identity] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.requests[identity] = kept

	if len(kept) >= l.maxRequests {
		oldest := kept[0]
		return false, &Rejection{
			Identity:   identity,
			Limit:      l.maxRequests,
			Window:     l.window,
			RetryAfter: oldest.Add(l.window).Sub(now),
		}
	}

	l.requests[identity] = append(kept, now)
	return true, nil
}
