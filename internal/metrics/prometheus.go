// Package metrics provides Prometheus-based metrics collection for netprobe.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all netprobe metrics
	namespace = "netprobe"

	// Subsystems
	subsystemProbe = "probe"
	subsystemScan  = "scan"
	subsystemAPI   = "api"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Probe metrics
	probesTotal   *prometheus.CounterVec
	probeLatency  *prometheus.HistogramVec
	workersBusy   *prometheus.GaugeVec
	progressDrops *prometheus.CounterVec

	// Scan metrics
	scansTotal   *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	activeScans  prometheus.Gauge

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	startTime time.Time
	registry  *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initProbeMetrics()
	pm.initScanMetrics()
	pm.initAPIMetrics()

	registry.MustRegister(
		pm.probesTotal,
		pm.probeLatency,
		pm.workersBusy,
		pm.progressDrops,
		pm.scansTotal,
		pm.scanDuration,
		pm.activeScans,
		pm.httpRequests,
		pm.httpDuration,
	)

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

func (pm *PrometheusMetrics) initProbeMetrics() {
	pm.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "total",
			Help:      "Total number of completed probe units by scan kind and outcome status",
		},
		[]string{"kind", "status"},
	)

	pm.probeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "latency_seconds",
			Help:      "Measured latency of probes that produced a latency sample",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"kind"},
	)

	pm.workersBusy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "workers_busy",
			Help:      "Number of workers currently executing a probe",
		},
		[]string{"kind"},
	)

	pm.progressDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "progress_dropped_total",
			Help:      "Progress notifications dropped because the observer fell behind",
		},
		[]string{"kind"},
	)
}

func (pm *PrometheusMetrics) initScanMetrics() {
	pm.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of scan sessions by kind and final state",
		},
		[]string{"kind", "state"},
	)

	pm.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of scan sessions in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0},
		},
		[]string{"kind"},
	)

	pm.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "Number of currently running scan sessions",
		},
	)
}

func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

// GetRegistry returns the underlying Prometheus registry
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Handler returns an HTTP handler exposing the registry in text format
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// GetUptime returns how long the metrics instance has existed
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// ProbeCompleted implements Recorder.
func (pm *PrometheusMetrics) ProbeCompleted(kind, status string, latency time.Duration) {
	pm.probesTotal.WithLabelValues(kind, status).Inc()
	if latency > 0 {
		pm.probeLatency.WithLabelValues(kind).Observe(latency.Seconds())
	}
}

// WorkersBusy implements Recorder.
func (pm *PrometheusMetrics) WorkersBusy(kind string, delta int) {
	pm.workersBusy.WithLabelValues(kind).Add(float64(delta))
}

// ScanStarted implements Recorder.
func (pm *PrometheusMetrics) ScanStarted(string) {
	pm.activeScans.Inc()
}

// ScanFinished implements Recorder.
func (pm *PrometheusMetrics) ScanFinished(kind string, duration time.Duration, canceled bool) {
	pm.activeScans.Dec()
	state := "completed"
	if canceled {
		state = "canceled"
	}
	pm.scansTotal.WithLabelValues(kind, state).Inc()
	pm.scanDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ProgressDropped implements Recorder.
func (pm *PrometheusMetrics) ProgressDropped(kind string) {
	pm.progressDrops.WithLabelValues(kind).Inc()
}

// HTTPRequest implements Recorder.
func (pm *PrometheusMetrics) HTTPRequest(method, route string, status int, duration time.Duration) {
	pm.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	pm.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Global metrics instance
var (
	globalMetrics *PrometheusMetrics
	metricsOnce   sync.Once
)

// GetGlobalMetrics returns the process-wide Prometheus metrics instance
func GetGlobalMetrics() *PrometheusMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}
