package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anstrom/netprobe/internal/api/middleware"
	"github.com/anstrom/netprobe/internal/jobs"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/scanning"
)

const (
	writeWait       = 10 * time.Second                                   // Time allowed to write a message to the peer
	pongWait        = 60 * time.Second                                   // Time to read next pong message from peer
	pingPeriodRatio = 0.9                                                // Ratio of pongWait for pingPeriod
	pingPeriod      = time.Duration(float64(pongWait) * pingPeriodRatio) // Send pings to peer (must be < pongWait)
	maxMessageSize  = 512                                                // Maximum message size allowed from peer
)

// Message types sent on a job stream.
const (
	MessageStatus   = "status"
	MessageProgress = "progress"
	MessageResult   = "result"
)

// WebSocketHandler streams job progress over websockets.
type WebSocketHandler struct {
	jobs     *jobs.Manager
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// WebSocketMessage represents a WebSocket message structure.
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// NewWebSocketHandler creates a new WebSocket handler. checkOrigin may be nil
// to accept any origin.
func NewWebSocketHandler(manager *jobs.Manager, checkOrigin func(*http.Request) bool, logger *logging.Logger) *WebSocketHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketHandler{
		jobs:   manager,
		logger: logger.WithFields("handler", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ScanWebSocket handles GET /api/v1/scans/{id}/ws. The stream opens with a
// status message, carries one progress message per snapshot and ends with a
// result message holding the finished job and its report.
func (h *WebSocketHandler) ScanWebSocket(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)

	id, err := extractIDFromPath(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	updates, release, err := h.jobs.Subscribe(id)
	if err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", "request_id", requestID, "error", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			h.logger.Debug("Error closing WebSocket connection", "request_id", requestID, "error", err)
		}
	}()

	h.logger.Info("WebSocket stream opened", "request_id", requestID, "job_id", id, "remote_addr", r.RemoteAddr)

	gone := h.readPump(conn, requestID)
	h.writePump(conn, id, requestID, updates, gone)
}

// readPump consumes control frames until the peer goes away and reports that
// on the returned channel.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, requestID string) <-chan struct{} {
	gone := make(chan struct{})

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("WebSocket unexpected close", "request_id", requestID, "error", err)
				}
				return
			}
		}
	}()
	return gone
}

func (h *WebSocketHandler) writePump(
	conn *websocket.Conn,
	id, requestID string,
	updates <-chan scanning.Snapshot,
	gone <-chan struct{},
) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	info, err := h.jobs.Get(id)
	if err != nil {
		return
	}
	info.Report = nil
	if !h.send(conn, MessageStatus, info, requestID) {
		return
	}

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				h.finish(conn, id, requestID)
				return
			}
			if !h.send(conn, MessageProgress, snap, requestID) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("Ping failed, closing connection", "request_id", requestID, "error", err)
				return
			}
		case <-gone:
			return
		}
	}
}

// finish sends the result message and a normal close frame.
func (h *WebSocketHandler) finish(conn *websocket.Conn, id, requestID string) {
	info, err := h.jobs.Get(id)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "job evicted"),
			time.Now().Add(writeWait))
		return
	}
	if !h.send(conn, MessageResult, info, requestID) {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(info.State)),
		time.Now().Add(writeWait))
}

func (h *WebSocketHandler) send(conn *websocket.Conn, msgType string, data interface{}, requestID string) bool {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	msg := WebSocketMessage{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      data,
		RequestID: requestID,
	}
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("Write failed, closing connection", "request_id", requestID, "error", err)
		return false
	}
	return true
}
