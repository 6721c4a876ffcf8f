package scanning

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// SessionLimiter caps the number of scan sessions running at once. Each
// session already bounds its own probes; the limiter bounds the product when
// many sessions are started together, as the HTTP service and the scheduler
// do.
type SessionLimiter interface {
	// Acquire blocks until a slot is free or ctx is done.
	Acquire(ctx context.Context, sessionID string) error
	// Release frees the slot held by sessionID. Unknown ids are ignored.
	Release(sessionID string)
	// Stats reports current usage.
	Stats() LimiterStats
	// Close rejects further Acquire calls.
	Close() error
}

// LimiterStats describes the usage of a SessionLimiter.
type LimiterStats struct {
	Capacity  int      `json:"capacity"`
	Active    int      `json:"active"`
	Available int      `json:"available"`
	Closed    bool     `json:"closed"`
	Stale     []string `json:"stale,omitempty"`
}

// FixedSessionLimiter implements SessionLimiter with a fixed number of slots.
type FixedSessionLimiter struct {
	capacity  int
	semaphore chan struct{}
	staleAge  time.Duration

	mutex  sync.RWMutex
	active map[string]time.Time
	closed bool
}

// DefaultStaleAge is how long a session may hold a slot before Stats
// reports it as stale.
const DefaultStaleAge = 30 * time.Minute

// NewFixedSessionLimiter creates a limiter with the given number of slots.
func NewFixedSessionLimiter(capacity int) *FixedSessionLimiter {
	if capacity <= 0 {
		capacity = 1
	}

	return &FixedSessionLimiter{
		capacity:  capacity,
		semaphore: make(chan struct{}, capacity),
		staleAge:  DefaultStaleAge,
		active:    make(map[string]time.Time),
	}
}

// Acquire implements SessionLimiter.
func (l *FixedSessionLimiter) Acquire(ctx context.Context, sessionID string) error {
	l.mutex.RLock()
	closed := l.closed
	l.mutex.RUnlock()
	if closed {
		return fmt.Errorf("session limiter is closed")
	}

	select {
	case l.semaphore <- struct{}{}:
		l.mutex.Lock()
		l.active[sessionID] = time.Now()
		l.mutex.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release implements SessionLimiter.
func (l *FixedSessionLimiter) Release(sessionID string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, ok := l.active[sessionID]; !ok {
		return
	}
	delete(l.active, sessionID)

	select {
	case <-l.semaphore:
	default:
	}
}

// Stats implements SessionLimiter.
func (l *FixedSessionLimiter) Stats() LimiterStats {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	stats := LimiterStats{
		Capacity:  l.capacity,
		Active:    len(l.active),
		Available: l.capacity - len(l.active),
		Closed:    l.closed,
	}
	now := time.Now()
	for id, started := range l.active {
		if now.Sub(started) > l.staleAge {
			stats.Stale = append(stats.Stale, id)
		}
	}
	sort.Strings(stats.Stale)
	return stats
}

// Close implements SessionLimiter. Sessions holding a slot keep running.
func (l *FixedSessionLimiter) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.closed = true
	return nil
}
