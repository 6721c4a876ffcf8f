// Package metrics provides interfaces for metrics collection and monitoring.
//
//go:generate mockgen -source=interface.go -destination=mocks/mock_recorder.go -package=mocks
package metrics

import "time"

// Recorder is the metrics sink used by the probing engine and the HTTP service.
// Implementations must be safe for concurrent use; the engine calls them from
// worker goroutines.
type Recorder interface {
	// ProbeCompleted counts one finished probe unit. latency is zero when the
	// probe produced no latency sample.
	ProbeCompleted(kind, status string, latency time.Duration)

	// WorkersBusy adjusts the number of workers currently inside a probe.
	WorkersBusy(kind string, delta int)

	// ScanStarted marks the start of a scan session.
	ScanStarted(kind string)

	// ScanFinished records the wall-clock duration of a scan session.
	ScanFinished(kind string, duration time.Duration, canceled bool)

	// ProgressDropped counts a progress notification dropped on a full buffer.
	ProgressDropped(kind string)

	// HTTPRequest records one served API request.
	HTTPRequest(method, route string, status int, duration time.Duration)
}

// Ensure that both implementations satisfy Recorder.
var (
	_ Recorder = (*PrometheusMetrics)(nil)
	_ Recorder = Nop{}
)
