package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messaging-service/internal/observability"
)

var ErrHandleNotFound = errors.New("connection handle not found")

// client pairs a websocket connection with a write lock; gorilla
// connections do not allow concurrent writers.
type client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maps connection handles to live websocket connections. It is a
// volatile transport table only: the durable registry decides routing,
// the hub merely resolves a handle to a socket.
type Hub struct {
	clients map[string]*client
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[string]*client), logger: logger}
}

// Add registers a live connection under its handle.
func (h *Hub) Add(connID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[connID] = &client{conn: conn, info: info}
}

// Remove drops a handle from the hub.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, connID)
}

// Len reports the number of live handles.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send marshals the event and writes it to the handle's socket. A write
// failure closes and removes the connection; the caller treats the
// push as dropped.
func (h *Hub) Send(connID string, event any) error {
	h.mu.RLock()
	cl, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrHandleNotFound
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := cl.write(payload); err != nil {
		h.logger.Warn("websocket write error", zap.String("conn_id", connID), zap.Error(err))
		cl.conn.Close()
		h.Remove(connID)
		h.publishSocketError(cl.info, err)
		return err
	}
	return nil
}

func (h *Hub) publishSocketError(info ConnInfo, cause error) {
	observability.IncWSEvent("ws_error")
	_ = observability.PublishEvent(context.Background(), "ws_events.sockets",
		observability.SocketEnvelope(observability.SocketLifecycle{
			Event:      "ws_error",
			ConnID:     info.ConnID,
			UserID:     info.UserID,
			IP:         info.IP,
			DeviceID:   info.DeviceID,
			DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
			Reason:     cause.Error(),
		}), observability.BuildHeaders(info.RequestID, info.TraceID))
}
