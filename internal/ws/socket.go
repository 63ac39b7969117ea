package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messaging-service/internal/delivery"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// SocketHandler owns the per-user live connection: one socket per user,
// established with a user_id query parameter. All chat events flow over
// it in arrival order.
type SocketHandler struct {
	hub    *Hub
	engine *delivery.Engine
	conns  repositories.ConnectionRepository
	users  repositories.UserRepository
	logger *zap.Logger
}

// NewSocketHandler constructs a SocketHandler.
func NewSocketHandler(hub *Hub, engine *delivery.Engine, conns repositories.ConnectionRepository, users repositories.UserRepository, logger *zap.Logger) *SocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SocketHandler{hub: hub, engine: engine, conns: conns, users: users, logger: logger}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, binds it to the user in the durable
// registry and runs the event loop. A connect without a resolvable
// user identity is rejected before the upgrade; the client must
// reconnect with a valid id.
func (h *SocketHandler) Handle(c *gin.Context) {
	userID, err := strconv.Atoi(c.Query("user_id"))
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user_id"})
		return
	}

	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	if _, err := h.users.GetUser(ctx, userID); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	// Registering replaces any previous handle for this user; a stale
	// socket left in the hub by an abrupt reconnect becomes
	// unroutable because the registry row now points elsewhere.
	if err := h.conns.Register(ctx, userID, info.ConnID); err != nil {
		h.logger.Error("register connection", zap.Int("user_id", userID), zap.Error(err))
		conn.Close()
		return
	}
	h.hub.Add(info.ConnID, conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.sockets",
		observability.SocketEnvelope(observability.SocketLifecycle{
			Event:    "ws_connect",
			ConnID:   info.ConnID,
			UserID:   info.UserID,
			IP:       info.IP,
			DeviceID: info.DeviceID,
		}), observability.BuildHeaders(info.RequestID, info.TraceID))

	go h.readLoop(conn, info)
}

// readLoop processes inbound frames for one connection in arrival
// order. A malformed frame fails that single operation only; the
// connection stays open for subsequent events.
func (h *SocketHandler) readLoop(conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		// Disconnect removes this handle's routing row only: after a
		// reconnect the registry points at the new socket, and the stale
		// teardown must leave that row alone. Unread counters are never
		// touched; those reset only on an explicit chat open.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.conns.Unregister(ctx, info.UserID, info.ConnID); err != nil {
			h.logger.Error("unregister connection", zap.Int("user_id", info.UserID), zap.Error(err))
		}
		h.hub.Remove(info.ConnID)
		conn.Close()

		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		_ = observability.PublishEvent(ctx, "ws_events.sockets",
			observability.SocketEnvelope(observability.SocketLifecycle{
				Event:      "ws_disconnect",
				ConnID:     info.ConnID,
				UserID:     info.UserID,
				IP:         info.IP,
				DeviceID:   info.DeviceID,
				DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
				Reason:     closeReason,
			}), observability.BuildHeaders(info.RequestID, info.TraceID))
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}
		h.dispatch(frame, info)
	}
}

func (h *SocketHandler) dispatch(frame []byte, info ConnInfo) {
	var event models.SocketEvent
	if err := json.Unmarshal(frame, &event); err != nil {
		h.logger.Warn("malformed socket frame", zap.Int("user_id", info.UserID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	observability.IncWSEvent(event.Event)

	switch event.Event {
	case models.EventJoinChat:
		var p models.JoinChatPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			h.logger.Warn("malformed join-chat payload", zap.Int("user_id", info.UserID), zap.Error(err))
			return
		}
		if err := h.engine.JoinChat(ctx, info.UserID, p.ChatID); err != nil {
			h.logger.Error("join-chat failed", zap.Int("user_id", info.UserID), zap.Int("chat_id", p.ChatID), zap.Error(err))
		}

	case models.EventSendMessage:
		var p models.SendMessagePayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			h.logger.Warn("malformed send-message payload", zap.Int("user_id", info.UserID), zap.Error(err))
			return
		}
		// The socket's identity wins over the payload's sender field.
		if _, err := h.engine.SendMessage(ctx, p.ChatID, info.UserID, p.Content); err != nil {
			h.logger.Error("send-message failed", zap.Int("user_id", info.UserID), zap.Int("chat_id", p.ChatID), zap.Error(err))
		}

	case models.EventReadMessage:
		var p models.ReadMessagePayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			h.logger.Warn("malformed read-message payload", zap.Int("user_id", info.UserID), zap.Error(err))
			return
		}
		// Chat and author come from the stored message, not the payload.
		if err := h.engine.MarkRead(ctx, p.MessageID); err != nil {
			h.logger.Error("read-message failed", zap.Int("user_id", info.UserID), zap.Int("message_id", p.MessageID), zap.Error(err))
		}

	default:
		h.logger.Debug("unknown socket event", zap.String("event", event.Event), zap.Int("user_id", info.UserID))
	}
}
