// Package workers provides the bounded worker pool that executes probe units.
// A fixed number of goroutines pull units from a hand-off channel, so no more
// than Size probes are ever in flight, and every dispatched unit produces
// exactly one outcome even when its probe panics.
package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/metrics"
	"github.com/anstrom/netprobe/internal/probe"
)

// Config holds configuration for the worker pool.
type Config struct {
	// Size is the maximum number of probes in flight.
	Size int
	// Kind labels metrics emitted by the pool.
	Kind string
	// RateLimit is the maximum number of units dispatched per second (0 = no limit).
	RateLimit int
}

// DefaultPortConfig returns the pool configuration for port range scans.
func DefaultPortConfig() Config {
	return Config{
		Size: 100,
		Kind: metrics.KindPortScan,
	}
}

// DefaultCommonPortConfig returns the pool configuration for common-port scans.
func DefaultCommonPortConfig() Config {
	return Config{
		Size: 50,
		Kind: metrics.KindCommonScan,
	}
}

// DefaultHostConfig returns the pool configuration for host discovery.
func DefaultHostConfig() Config {
	return Config{
		Size: 50,
		Kind: metrics.KindDiscovery,
	}
}

// CompletionFunc receives each outcome as soon as its unit finishes. It is
// called from worker goroutines, concurrently and in completion order.
type CompletionFunc func(probe.Outcome)

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(p *Pool) {
		if r != nil {
			p.metrics = r
		}
	}
}

// Pool runs batches of probe units with bounded concurrency. A Pool holds no
// per-batch state and may run several batches, even concurrently.
type Pool struct {
	config  Config
	logger  *logging.Logger
	metrics metrics.Recorder
}

// worker represents a single worker goroutine of one Execute call.
type worker struct {
	id         int
	pool       *Pool
	prober     probe.Prober
	onComplete CompletionFunc
}

// New creates a new worker pool with the given configuration.
func New(config Config, opts ...Option) *Pool {
	p := &Pool{
		config:  config,
		logger:  logging.Default().WithComponent("workers"),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the pool configuration.
func (p *Pool) Config() Config {
	return p.config
}

// Execute probes every unit with at most Size probes in flight and blocks
// until all dispatched probes have finished. onComplete may be nil.
//
// Cancelling ctx stops dispatch of further units. Probes already running are
// not interrupted and finish within their own timeout. Execute then returns
// ctx.Err() if any unit was never dispatched.
func (p *Pool) Execute(ctx context.Context, units []probe.Unit, prober probe.Prober, onComplete CompletionFunc) error {
	if prober == nil {
		return fmt.Errorf("worker pool: nil prober")
	}
	if p.config.Size <= 0 {
		return fmt.Errorf("worker pool: size must be positive, got %d", p.config.Size)
	}
	if len(units) == 0 {
		return nil
	}

	n := min(p.config.Size, len(units))
	queue := make(chan probe.Unit)
	probeCtx := context.WithoutCancel(ctx)

	p.logger.Debug("Starting worker pool",
		"kind", p.config.Kind,
		"worker_count", n,
		"units", len(units),
		"rate_limit", p.config.RateLimit)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		w := &worker{id: i, pool: p, prober: prober, onComplete: onComplete}
		wg.Add(1)
		go w.run(probeCtx, queue, &wg)
	}

	var limiter *time.Ticker
	if p.config.RateLimit > 0 {
		limiter = time.NewTicker(time.Second / time.Duration(p.config.RateLimit))
		defer limiter.Stop()
	}

	dispatched := p.dispatch(ctx, units, queue, limiter)
	close(queue)
	wg.Wait()

	if dispatched < len(units) {
		p.logger.Debug("Worker pool stopped early",
			"kind", p.config.Kind,
			"dispatched", dispatched,
			"units", len(units))
		return ctx.Err()
	}
	return nil
}

// dispatch hands units to idle workers and returns how many were taken.
func (p *Pool) dispatch(ctx context.Context, units []probe.Unit, queue chan<- probe.Unit, limiter *time.Ticker) int {
	dispatched := 0
	for _, u := range units {
		if ctx.Err() != nil {
			return dispatched
		}
		if limiter != nil {
			select {
			case <-limiter.C:
			case <-ctx.Done():
				return dispatched
			}
		}
		select {
		case queue <- u:
			dispatched++
		case <-ctx.Done():
			return dispatched
		}
	}
	return dispatched
}

// run executes units until the queue is closed.
func (w *worker) run(ctx context.Context, queue <-chan probe.Unit, wg *sync.WaitGroup) {
	defer wg.Done()

	for u := range queue {
		out := w.execute(ctx, u)
		if w.onComplete != nil {
			w.onComplete(out)
		}
	}
}

// execute runs a single probe. A panic becomes an error outcome for that
// unit only.
func (w *worker) execute(ctx context.Context, u probe.Unit) (out probe.Outcome) {
	kind := w.pool.config.Kind
	w.pool.metrics.WorkersBusy(kind, 1)
	defer w.pool.metrics.WorkersBusy(kind, -1)

	defer func() {
		if r := recover(); r != nil {
			out = probe.FaultOutcome(u, fmt.Sprintf("probe panicked: %v", r))
			w.pool.logger.Error("Probe panicked",
				"unit", u.String(),
				"worker_id", w.id,
				"panic", r)
		}
		latency, _ := out.Latency()
		w.pool.metrics.ProbeCompleted(kind, string(out.Status),
			time.Duration(latency*float64(time.Millisecond)))
	}()

	return w.prober.Probe(ctx, u)
}
