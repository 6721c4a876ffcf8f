package handlers

import (
	"fmt"
	"net/http"

	"github.com/anstrom/netprobe/internal/api/middleware"
	"github.com/anstrom/netprobe/internal/jobs"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/scanning"
	"github.com/anstrom/netprobe/internal/target"
)

// originAPI marks jobs submitted over HTTP.
const originAPI = "api"

// ScanHandler handles scan and discovery job endpoints.
type ScanHandler struct {
	jobs           *jobs.Manager
	scanner        *scanning.Scanner
	defaultNetwork string
	logger         *logging.Logger
}

// NewScanHandler creates a new scan handler. defaultNetwork is swept by
// discovery requests without a network; when empty the local /24 is used.
func NewScanHandler(manager *jobs.Manager, scanner *scanning.Scanner, defaultNetwork string, logger *logging.Logger) *ScanHandler {
	return &ScanHandler{
		jobs:           manager,
		scanner:        scanner,
		defaultNetwork: defaultNetwork,
		logger:         logger.WithFields("handler", "scan"),
	}
}

// PortScanRequest asks for a port scan of one host. Either Ports or both
// StartPort and EndPort must be given.
type PortScanRequest struct {
	Host string `json:"host" validate:"required,max=253"`
	// Ports is a list such as "22,80,8000-8100"
	Ports     string `json:"ports,omitempty" validate:"omitempty,max=4096"`
	StartPort int    `json:"start_port,omitempty"`
	EndPort   int    `json:"end_port,omitempty"`
}

// CommonScanRequest asks for a scan of the well-known service ports of one host.
type CommonScanRequest struct {
	Host string `json:"host" validate:"required,max=253"`
}

// DiscoveryRequest asks for a liveness sweep of an IPv4 network.
type DiscoveryRequest struct {
	Network string `json:"network,omitempty" validate:"omitempty,cidrv4"`
}

// CreatePortScan handles POST /api/v1/scans/ports.
func (h *ScanHandler) CreatePortScan(w http.ResponseWriter, r *http.Request) {
	var req PortScanRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	var start jobs.Starter
	switch {
	case req.Ports != "":
		ports, err := target.ParsePortSpec(req.Ports)
		if err != nil {
			writeError(w, r, statusForError(err), err)
			return
		}
		start = func(fn scanning.ProgressFunc) (*scanning.Session, error) {
			return h.scanner.StartPortListScan(req.Host, ports, fn)
		}
	case req.StartPort != 0 || req.EndPort != 0:
		start = func(fn scanning.ProgressFunc) (*scanning.Session, error) {
			return h.scanner.StartPortScan(req.Host, req.StartPort, req.EndPort, fn)
		}
	default:
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("either ports or start_port and end_port are required"))
		return
	}

	h.submit(w, r, start)
}

// CreateCommonScan handles POST /api/v1/scans/common.
func (h *ScanHandler) CreateCommonScan(w http.ResponseWriter, r *http.Request) {
	var req CommonScanRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	h.submit(w, r, func(fn scanning.ProgressFunc) (*scanning.Session, error) {
		return h.scanner.StartCommonPortScan(req.Host, fn)
	})
}

// CreateDiscovery handles POST /api/v1/discovery. An empty body sweeps the
// default network.
func (h *ScanHandler) CreateDiscovery(w http.ResponseWriter, r *http.Request) {
	var req DiscoveryRequest
	if r.ContentLength != 0 {
		if err := parseJSON(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
	}
	network := req.Network
	if network == "" {
		network = h.defaultNetwork
	}

	h.submit(w, r, func(fn scanning.ProgressFunc) (*scanning.Session, error) {
		return h.scanner.StartHostDiscovery(r.Context(), network, fn)
	})
}

func (h *ScanHandler) submit(w http.ResponseWriter, r *http.Request, start jobs.Starter) {
	info, err := h.jobs.Submit(originAPI, start)
	if err != nil {
		h.logger.Warn("Job rejected",
			"request_id", middleware.GetRequestID(r),
			"error", err)
		writeError(w, r, statusForError(err), err)
		return
	}

	w.Header().Set("Location", "/api/v1/scans/"+info.ID)
	writeJSON(w, r, http.StatusAccepted, info)
}

// ListScans handles GET /api/v1/scans. Jobs can be filtered by kind and state.
func (h *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	params, err := getPaginationParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	kind := scanning.Kind(r.URL.Query().Get("kind"))
	state := jobs.State(r.URL.Query().Get("state"))

	all := h.jobs.List()
	filtered := make([]jobs.Info, 0, len(all))
	for _, info := range all {
		if kind != "" && info.Kind != kind {
			continue
		}
		if state != "" && info.State != state {
			continue
		}
		filtered = append(filtered, info)
	}

	writePaginatedResponse(w, r, paginate(filtered, params), params, len(filtered))
}

// GetScan handles GET /api/v1/scans/{id}. Finished jobs include their report.
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	id, err := extractIDFromPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	info, err := h.jobs.Get(id)
	if err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}
	writeJSON(w, r, http.StatusOK, info)
}

// CancelScan handles DELETE /api/v1/scans/{id}. The job keeps the probes
// already in flight and finishes with a partial report.
func (h *ScanHandler) CancelScan(w http.ResponseWriter, r *http.Request) {
	id, err := extractIDFromPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	if err := h.jobs.Cancel(id); err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}

	info, err := h.jobs.Get(id)
	if err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, info)
}
