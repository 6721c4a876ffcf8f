package scanning

import (
	"sync"

	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/metrics"
	"github.com/anstrom/netprobe/internal/probe"
)

// DefaultProgressBuffer is the number of snapshots buffered for a slow observer.
const DefaultProgressBuffer = 64

// Snapshot is the progress of a scan after one more unit completed.
type Snapshot struct {
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Latest    probe.Outcome `json:"latest"`
}

// Done reports whether the snapshot is the last one of a complete scan.
func (s Snapshot) Done() bool {
	return s.Completed == s.Total
}

// ProgressFunc observes scan progress. It is advisory: a slow observer may
// miss intermediate snapshots, but never the final one, and never slows the
// scan down.
type ProgressFunc func(Snapshot)

// Reporter delivers snapshots to a ProgressFunc from a single dispatcher
// goroutine through a bounded buffer. Notify never blocks; when the buffer
// is full the snapshot is dropped.
//
// Notify calls must not overlap. The Aggregator serializes them under its
// lock.
type Reporter struct {
	fn      ProgressFunc
	queue   chan Snapshot
	done    chan struct{}
	kind    string
	metrics metrics.Recorder
	logger  *logging.Logger

	last        Snapshot
	lastDropped bool
	dropped     int

	closeOnce sync.Once
}

// NewReporter starts a reporter for fn. A nil fn yields a reporter that
// discards everything.
func NewReporter(fn ProgressFunc, buffer int, kind string, rec metrics.Recorder, logger *logging.Logger) *Reporter {
	if buffer <= 0 {
		buffer = DefaultProgressBuffer
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = logging.Default()
	}

	r := &Reporter{
		fn:      fn,
		done:    make(chan struct{}),
		kind:    kind,
		metrics: rec,
		logger:  logger,
	}
	if fn == nil {
		close(r.done)
		return r
	}

	r.queue = make(chan Snapshot, buffer)
	go r.dispatch()
	return r
}

// Notify queues a snapshot for delivery.
func (r *Reporter) Notify(s Snapshot) {
	if r.fn == nil {
		return
	}

	r.last = s
	select {
	case r.queue <- s:
		r.lastDropped = false
	default:
		r.lastDropped = true
		r.dropped++
		r.metrics.ProgressDropped(r.kind)
	}
}

// Close waits for buffered snapshots to be delivered. If the most recent
// snapshot had been dropped it is delivered last, so the observer always
// ends on the final count. Close must be called after the last Notify.
func (r *Reporter) Close() {
	r.closeOnce.Do(func() {
		if r.fn == nil {
			return
		}
		close(r.queue)
		<-r.done
		if r.lastDropped {
			r.deliver(r.last)
		}
	})
}

// Dropped returns how many snapshots were not delivered in order.
func (r *Reporter) Dropped() int {
	return r.dropped
}

func (r *Reporter) dispatch() {
	defer close(r.done)
	for s := range r.queue {
		r.deliver(s)
	}
}

// deliver calls the observer, containing any panic it raises.
func (r *Reporter) deliver(s Snapshot) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Progress observer panicked", "kind", r.kind, "panic", rec)
		}
	}()
	r.fn(s)
}
