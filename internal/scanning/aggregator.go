package scanning

import (
	"sync"

	"github.com/anstrom/netprobe/internal/probe"
)

// Aggregator collects the outcomes of one scan. Add is safe for concurrent
// use by worker goroutines.
type Aggregator struct {
	mu        sync.Mutex
	outcomes  []probe.Outcome
	completed int
	total     int
	reporter  *Reporter
}

// NewAggregator creates an aggregator expecting total outcomes. r may be nil.
func NewAggregator(total int, r *Reporter) *Aggregator {
	return &Aggregator{
		outcomes: make([]probe.Outcome, 0, total),
		total:    total,
		reporter: r,
	}
}

// Add records an outcome. The append, the count and the progress
// notification happen in one critical section, so snapshots are delivered
// with strictly increasing completed counts.
func (a *Aggregator) Add(o probe.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.outcomes = append(a.outcomes, o)
	a.completed++
	if a.reporter != nil {
		a.reporter.Notify(Snapshot{Completed: a.completed, Total: a.total, Latest: o})
	}
}

// Completed returns the number of outcomes recorded so far.
func (a *Aggregator) Completed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completed
}

// Outcomes returns a copy of the outcomes in completion order.
func (a *Aggregator) Outcomes() []probe.Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]probe.Outcome(nil), a.outcomes...)
}
