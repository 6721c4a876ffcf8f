package handlers

import (
	"net/http"

	"github.com/anstrom/netprobe/internal/jobs"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/scanning"
)

// Options configures the handler groups.
type Options struct {
	// DefaultNetwork is swept by discovery requests without a network
	DefaultNetwork string
	// CheckOrigin decides websocket origins; nil accepts all
	CheckOrigin func(*http.Request) bool
}

// HandlerManager manages all API handlers and their dependencies.
type HandlerManager struct {
	jobs   *jobs.Manager
	logger *logging.Logger

	health    *HealthHandler
	scan      *ScanHandler
	websocket *WebSocketHandler
}

// New creates a new handler manager with all handler groups initialized.
func New(manager *jobs.Manager, scanner *scanning.Scanner, logger *logging.Logger, opts Options) *HandlerManager {
	return &HandlerManager{
		jobs:      manager,
		logger:    logger,
		health:    NewHealthHandler(manager, scanner.Limiter(), logger),
		scan:      NewScanHandler(manager, scanner, opts.DefaultNetwork, logger),
		websocket: NewWebSocketHandler(manager, opts.CheckOrigin, logger),
	}
}

// Health handles GET /health.
func (hm *HandlerManager) Health(w http.ResponseWriter, r *http.Request) {
	hm.health.Health(w, r)
}

// Liveness handles GET /liveness.
func (hm *HandlerManager) Liveness(w http.ResponseWriter, r *http.Request) {
	hm.health.Liveness(w, r)
}

// Status handles GET /status - get system status.
func (hm *HandlerManager) Status(w http.ResponseWriter, r *http.Request) {
	hm.health.Status(w, r)
}

// Version handles GET /version - get version information.
func (hm *HandlerManager) Version(w http.ResponseWriter, r *http.Request) {
	hm.health.Version(w, r)
}

// CreatePortScan handles POST /scans/ports.
func (hm *HandlerManager) CreatePortScan(w http.ResponseWriter, r *http.Request) {
	hm.scan.CreatePortScan(w, r)
}

// CreateCommonScan handles POST /scans/common.
func (hm *HandlerManager) CreateCommonScan(w http.ResponseWriter, r *http.Request) {
	hm.scan.CreateCommonScan(w, r)
}

// CreateDiscovery handles POST /discovery.
func (hm *HandlerManager) CreateDiscovery(w http.ResponseWriter, r *http.Request) {
	hm.scan.CreateDiscovery(w, r)
}

// ListScans handles GET /scans.
func (hm *HandlerManager) ListScans(w http.ResponseWriter, r *http.Request) {
	hm.scan.ListScans(w, r)
}

// GetScan handles GET /scans/{id}.
func (hm *HandlerManager) GetScan(w http.ResponseWriter, r *http.Request) {
	hm.scan.GetScan(w, r)
}

// CancelScan handles DELETE /scans/{id}.
func (hm *HandlerManager) CancelScan(w http.ResponseWriter, r *http.Request) {
	hm.scan.CancelScan(w, r)
}

// ScanWebSocket handles GET /scans/{id}/ws.
func (hm *HandlerManager) ScanWebSocket(w http.ResponseWriter, r *http.Request) {
	hm.websocket.ScanWebSocket(w, r)
}

// Jobs returns the job manager.
func (hm *HandlerManager) Jobs() *jobs.Manager {
	return hm.jobs
}
