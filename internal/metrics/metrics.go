package metrics

import "time"

// Scan kinds used as the "kind" label.
const (
	KindPortScan   = "port_scan"
	KindCommonScan = "common_scan"
	KindDiscovery  = "discovery"
)

// Nop discards every measurement. It is the default when the engine is used
// as a library without a metrics backend.
type Nop struct{}

func (Nop) ProbeCompleted(string, string, time.Duration) {}
func (Nop) WorkersBusy(string, int) {}
func (Nop) ScanStarted(string) {}
func (Nop) ScanFinished(string, time.Duration, bool) {}
func (Nop) ProgressDropped(string) {}
func (Nop) HTTPRequest(string, string, int, time.Duration) {}

// Timer measures elapsed time for a scan session.
type Timer struct {
	start    time.Time
	kind     string
	recorder Recorder
}

// NewTimer starts a timer that reports to r when stopped.
func NewTimer(r Recorder, kind string) *Timer {
	r.ScanStarted(kind)
	return &Timer{start: time.Now(), kind: kind, recorder: r}
}

// Stop records the elapsed duration and returns it.
func (t *Timer) Stop(canceled bool) time.Duration {
	d := time.Since(t.start)
	t.recorder.ScanFinished(t.kind, d, canceled)
	return d
}
