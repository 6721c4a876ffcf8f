package scanning

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"github.com/anstrom/netprobe/internal/errors"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/metrics"
	"github.com/anstrom/netprobe/internal/probe"
	"github.com/anstrom/netprobe/internal/workers"
)

// Session owns one target specification and a single execution of it.
// Sessions are created by the Scanner and are not reusable: every scan gets
// a fresh Session and a fresh result set.
type Session struct {
	id      string
	kind    Kind
	target  string
	network string

	units    []probe.Unit
	prober   probe.Prober
	pool     *workers.Pool
	progress ProgressFunc
	buffer   int

	limiter SessionLimiter
	logger  *logging.Logger
	metrics metrics.Recorder

	started atomic.Bool
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Kind returns the scan kind.
func (s *Session) Kind() Kind { return s.kind }

// Target returns the scanned host of a port scan.
func (s *Session) Target() string { return s.target }

// Network returns the swept network of a discovery.
func (s *Session) Network() string { return s.network }

// Total returns the number of probe units.
func (s *Session) Total() int { return len(s.units) }

// Run executes the session and returns the ranked report. Run may be called
// once; later calls fail with CodeSessionReused.
//
// If ctx is cancelled the probes already in flight are allowed to finish
// and the partial report is returned with Canceled set and a nil error.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, errors.ErrSessionReused(s.id)
	}

	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx, s.id); err != nil {
			return s.canceledBeforeStart(err)
		}
		defer s.limiter.Release(s.id)
	}

	s.logStart()

	report := &Report{
		ID:        s.id,
		Kind:      s.kind,
		Target:    s.target,
		Network:   s.network,
		StartTime: time.Now(),
	}
	timer := metrics.NewTimer(s.metrics, string(s.kind))

	reporter := NewReporter(s.progress, s.buffer, string(s.kind), s.metrics, s.logger)
	agg := NewAggregator(len(s.units), reporter)

	err := s.pool.Execute(ctx, s.units, s.prober, agg.Add)
	reporter.Close()

	canceled := err != nil && ctx.Err() != nil
	if err != nil && !canceled {
		timer.Stop(false)
		s.logger.Error("Scan failed", "error", err)
		return nil, errors.WrapScanErrorWithTarget(errors.CodeScanFailed, "Scan execution failed", s.targetLabel(), err)
	}

	report.Outcomes = Rank(agg.Outcomes())
	report.Summary = Summarize(len(s.units), report.Outcomes)
	report.Duration = timer.Stop(canceled)
	report.EndTime = report.StartTime.Add(report.Duration)
	report.Canceled = canceled

	s.logFinish(report, reporter.Dropped())
	return report, nil
}

// canceledBeforeStart handles a limiter wait that ended without a slot.
func (s *Session) canceledBeforeStart(err error) (*Report, error) {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		now := time.Now()
		return &Report{
			ID:        s.id,
			Kind:      s.kind,
			Target:    s.target,
			Network:   s.network,
			Outcomes:  []probe.Outcome{},
			Summary:   Summary{Total: len(s.units)},
			StartTime: now,
			EndTime:   now,
			Canceled:  true,
		}, nil
	}
	return nil, errors.WrapScanErrorWithTarget(errors.CodeServiceUnavailable, "No scan slot available", s.targetLabel(), err)
}

func (s *Session) targetLabel() string {
	if s.kind == KindDiscovery {
		return s.network
	}
	return s.target
}

func (s *Session) logStart() {
	if s.kind == KindDiscovery {
		s.logger.InfoDiscovery("Host discovery started", s.network, "hosts", len(s.units))
		return
	}
	s.logger.InfoScan("Port scan started", s.target, "kind", s.kind, "ports", len(s.units))
}

func (s *Session) logFinish(r *Report, dropped int) {
	fields := []any{
		"duration", r.Duration,
		"completed", r.Summary.Completed,
		"total", r.Summary.Total,
		"errors", r.Summary.Errors,
		"canceled", r.Canceled,
		"progress_dropped", dropped,
	}
	if s.kind == KindDiscovery {
		s.logger.InfoDiscovery("Host discovery finished", s.network, append(fields, "up", r.Summary.Up)...)
		return
	}
	s.logger.InfoScan("Port scan finished", s.target, append(fields, "open", r.Summary.Open)...)
}
