package handlers

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/anstrom/netprobe/internal/jobs"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/scanning"
)

// Status constants.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthHandler handles health check and status endpoints.
type HealthHandler struct {
	jobs      *jobs.Manager
	limiter   scanning.SessionLimiter
	logger    *logging.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler. limiter may be nil.
func NewHealthHandler(manager *jobs.Manager, limiter scanning.SessionLimiter, logger *logging.Logger) *HealthHandler {
	return &HealthHandler{
		jobs:      manager,
		limiter:   limiter,
		logger:    logger.WithFields("handler", "health"),
		startTime: time.Now(),
	}
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
}

// LivenessResponse represents a simple liveness check response.
type LivenessResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

// StatusResponse represents a detailed status response.
type StatusResponse struct {
	Service   ServiceInfo            `json:"service"`
	System    SystemInfo             `json:"system"`
	Jobs      jobs.Stats             `json:"jobs"`
	Sessions  *scanning.LimiterStats `json:"sessions,omitempty"`
	Health    HealthResponse         `json:"health"`
	Timestamp time.Time              `json:"timestamp"`
}

// ServiceInfo contains service-related information.
type ServiceInfo struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	StartTime time.Time `json:"start_time"`
	Uptime    string    `json:"uptime"`
	PID       int       `json:"pid"`
}

// SystemInfo contains runtime information.
type SystemInfo struct {
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	CPUs         int    `json:"cpus"`
	GoVersion    string `json:"go_version"`
	Goroutines   int    `json:"goroutines"`
	HeapBytes    uint64 `json:"heap_bytes"`
}

// VersionResponse represents version information.
type VersionResponse struct {
	Version   string    `json:"version"`
	Commit    string    `json:"commit"`
	BuildTime string    `json:"build_time"`
	GoVersion string    `json:"go_version"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles GET /api/v1/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := h.healthInfo()

	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, r, statusCode, response)
}

// Liveness handles GET /api/v1/liveness without checking dependencies.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).String(),
	})
}

// Status handles GET /api/v1/status.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	response := StatusResponse{
		Service: ServiceInfo{
			Name:      "netprobe",
			Version:   version,
			StartTime: h.startTime,
			Uptime:    time.Since(h.startTime).String(),
			PID:       os.Getpid(),
		},
		System: SystemInfo{
			OS:           runtime.GOOS,
			Architecture: runtime.GOARCH,
			CPUs:         runtime.NumCPU(),
			GoVersion:    runtime.Version(),
			Goroutines:   runtime.NumGoroutine(),
			HeapBytes:    mem.HeapAlloc,
		},
		Jobs:      h.jobs.Stats(),
		Health:    h.healthInfo(),
		Timestamp: time.Now().UTC(),
	}
	if h.limiter != nil {
		stats := h.limiter.Stats()
		response.Sessions = &stats
	}

	writeJSON(w, r, http.StatusOK, response)
}

// Version handles GET /api/v1/version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, VersionResponse{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
		Timestamp: time.Now().UTC(),
	})
}

func (h *HealthHandler) healthInfo() HealthResponse {
	response := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).String(),
		Checks:    make(map[string]string),
	}

	if h.jobs.Accepting() {
		response.Checks["jobs"] = "ok"
	} else {
		response.Status = StatusUnhealthy
		response.Checks["jobs"] = "shutting down"
	}

	if h.limiter != nil {
		stats := h.limiter.Stats()
		switch {
		case stats.Closed:
			response.Status = StatusUnhealthy
			response.Checks["sessions"] = "closed"
		case len(stats.Stale) > 0:
			if response.Status == StatusHealthy {
				response.Status = StatusDegraded
			}
			response.Checks["sessions"] = "stale sessions"
			h.logger.Warn("Stale scan sessions", "sessions", stats.Stale)
		default:
			response.Checks["sessions"] = "ok"
		}
	}

	return response
}

// Build information, set by the main package.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// SetBuildInfo sets build information (called by main package).
func SetBuildInfo(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
}
