package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/handswitch/internal/gesture"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventMessage is sent to every websocket client when an event fires.
type EventMessage struct {
	Type      string        `json:"type"`
	Kind      gesture.Class `json:"kind"`
	Timestamp float64       `json:"timestamp"`
}

// EventHub broadcasts emitted events to websocket clients on /api/events.
// It implements gesture.Handler and never fails: a client that cannot be
// written to is dropped.
type EventHub struct {
	logger *zap.SugaredLogger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewEventHub creates an EventHub.
func NewEventHub(logger *zap.SugaredLogger) *EventHub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &EventHub{
		logger:  logger,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the client registered until it disconnects.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	h.logger.Debugw("event client connected", "remote", r.RemoteAddr)

	defer h.remove(conn)

	// Clients only listen; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()

	if ok {
		conn.Close()
	}
}

// OnOpen broadcasts an open event.
func (h *EventHub) OnOpen(ts float64) error {
	h.broadcast(EventMessage{Type: "event", Kind: gesture.Open, Timestamp: ts})
	return nil
}

// OnClose broadcasts a closed event.
func (h *EventHub) OnClose(ts float64) error {
	h.broadcast(EventMessage{Type: "event", Kind: gesture.Closed, Timestamp: ts})
	return nil
}

func (h *EventHub) broadcast(msg EventMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorw("encode event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debugw("dropping event client", "error", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		delete(h.clients, conn)
	}
}
