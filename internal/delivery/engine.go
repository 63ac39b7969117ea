package delivery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// Pusher writes an outbound event to a live connection handle. The hub
// implements it; tests substitute a mock.
type Pusher interface {
	Send(connID string, event any) error
}

// Engine routes newly created messages to recipients, keeps unread
// counters correct and propagates read receipts. It holds no state of
// its own: every routing decision reads the durable store fresh.
type Engine struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	conns    repositories.ConnectionRepository
	users    repositories.UserRepository
	pusher   Pusher
	logger   *zap.Logger
}

// NewEngine constructs the delivery engine.
func NewEngine(
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	conns repositories.ConnectionRepository,
	users repositories.UserRepository,
	pusher Pusher,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{chats: chats, messages: messages, conns: conns, users: users, pusher: pusher, logger: logger}
}

// SendMessage persists a message and fans it out to the other chat
// members: a new-message push for members viewing the chat, an unread
// increment plus chat-notification for everyone else. A send into a
// chat the sender is not a member of is a silent no-op. A persistence
// failure aborts the whole send; push failures are logged and dropped.
func (e *Engine) SendMessage(ctx context.Context, chatID int, senderID int, content string) (models.Message, error) {
	isMember, err := e.chats.IsMember(ctx, chatID, senderID)
	if err != nil {
		return models.Message{}, fmt.Errorf("check membership: %w", err)
	}
	if !isMember {
		e.logger.Debug("send ignored, not a member", zap.Int("user_id", senderID), zap.Int("chat_id", chatID))
		return models.Message{}, nil
	}

	// The insert reports whether this was the chat's very first message,
	// so concurrent sends into a fresh chat agree on exactly one first.
	msg, isNewChat, err := e.messages.CreateMessage(ctx, chatID, senderID, content)
	if err != nil {
		return models.Message{}, fmt.Errorf("persist message: %w", err)
	}
	observability.IncMessageSent()

	// A non-first message always resurfaces the chat for the other
	// members. For the first message the activation state set by chat
	// resolution (opener active, target hidden) is left alone.
	if !isNewChat {
		if err := e.chats.ActivateOthers(ctx, chatID, senderID); err != nil {
			// The message is already durable at this point.
			return msg, fmt.Errorf("reactivate members: %w", err)
		}
	}

	members, err := e.chats.Members(ctx, chatID)
	if err != nil {
		return msg, fmt.Errorf("load members: %w", err)
	}

	for _, member := range members {
		if member == senderID {
			continue
		}
		e.deliverTo(ctx, member, msg, isNewChat)
	}
	return msg, nil
}

// deliverTo handles one recipient. Errors here never fail the send:
// the message is already durable, so bookkeeping failures are logged
// and the remaining recipients still get processed.
func (e *Engine) deliverTo(ctx context.Context, recipient int, msg models.Message, isNewChat bool) {
	act, err := e.chats.GetActivation(ctx, msg.ChatID, recipient)
	if err != nil {
		e.logger.Error("load activation", zap.Int("chat_id", msg.ChatID), zap.Int("user_id", recipient), zap.Error(err))
		return
	}

	conn, connected, err := e.conns.Lookup(ctx, recipient)
	if err != nil {
		e.logger.Error("lookup connection", zap.Int("user_id", recipient), zap.Error(err))
		return
	}

	// Members who have the chat open and visible get the raw message,
	// never the notification form, and no unread bookkeeping.
	if connected && act.IsActive && conn.Viewing(msg.ChatID) {
		e.push(conn.ConnID, models.NewMessageEvent{Event: models.EventNewMessage, Message: msg}, "live")
		return
	}

	// The increment is durable before any push attempt, so a recipient
	// that vanishes mid-flight still sees a correct count on next load.
	if err := e.chats.IncrementUnread(ctx, msg.ChatID, recipient); err != nil {
		e.logger.Error("increment unread", zap.Int("chat_id", msg.ChatID), zap.Int("user_id", recipient), zap.Error(err))
		return
	}

	if !connected {
		return
	}

	notif, err := e.buildNotification(ctx, recipient, msg, isNewChat, act.UnreadCount+1)
	if err != nil {
		e.logger.Error("build notification", zap.Int("chat_id", msg.ChatID), zap.Int("user_id", recipient), zap.Error(err))
		return
	}

	// Re-check the handle at push time: a disconnect during processing
	// just drops the payload, the unread increment already happened.
	fresh, stillConnected, err := e.conns.Lookup(ctx, recipient)
	if err != nil || !stillConnected {
		return
	}
	e.push(fresh.ConnID, models.ChatNotificationEvent{Event: models.EventChatNotification, Notification: notif}, "notification")
}

// buildNotification assembles the aggregated push payload. First
// messages carry the full chat summary; later ones only the delta,
// since the client already holds the chat's static metadata.
func (e *Engine) buildNotification(ctx context.Context, recipient int, msg models.Message, isNewChat bool, unread int) (models.ChatNotification, error) {
	notif := models.ChatNotification{
		ChatID:      msg.ChatID,
		UnreadCount: unread,
		LastMessage: msg.Last(),
	}
	if !isNewChat {
		return notif, nil
	}

	chat, err := e.chats.GetChat(ctx, msg.ChatID)
	if err != nil {
		return models.ChatNotification{}, err
	}
	notif.IsNewChat = true
	notif.IsGroup = chat.IsGroup

	if chat.IsGroup {
		notif.Name = chat.Name
		if notif.Name == "" {
			notif.Name = "Group Chat"
		}
		notif.Pic = chat.Pic
		return notif, nil
	}

	other, err := e.otherMember(ctx, msg.ChatID, recipient)
	if err != nil {
		return models.ChatNotification{}, err
	}
	user, err := e.users.GetUser(ctx, other)
	if err != nil {
		return models.ChatNotification{}, err
	}
	notif.Name = user.Username
	notif.Pic = user.ProfilePic
	return notif, nil
}

func (e *Engine) otherMember(ctx context.Context, chatID int, userID int) (int, error) {
	members, err := e.chats.Members(ctx, chatID)
	if err != nil {
		return 0, err
	}
	for _, m := range members {
		if m != userID {
			return m, nil
		}
	}
	return 0, fmt.Errorf("chat %d has no member besides %d", chatID, userID)
}

// JoinChat is the explicit chat-open action: it marks the connection as
// viewing the chat, resurfaces it in the chat list and zeroes the
// unread counter. A join for a chat the user is not a member of is a
// silent no-op.
func (e *Engine) JoinChat(ctx context.Context, userID int, chatID int) error {
	if chatID == 0 {
		return nil
	}
	member, err := e.chats.IsMember(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		e.logger.Debug("join ignored, not a member", zap.Int("user_id", userID), zap.Int("chat_id", chatID))
		return nil
	}
	if err := e.conns.SetActiveChat(ctx, userID, chatID); err != nil {
		return fmt.Errorf("set active chat: %w", err)
	}
	if err := e.chats.SetActive(ctx, chatID, userID, true); err != nil {
		return fmt.Errorf("activate chat: %w", err)
	}
	if err := e.chats.ResetUnread(ctx, chatID, userID); err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	return nil
}

func (e *Engine) push(connID string, event any, kind string) {
	if err := e.pusher.Send(connID, event); err != nil {
		observability.IncPushDropped(kind)
		e.logger.Warn("push failed", zap.String("conn_id", connID), zap.String("kind", kind), zap.Error(err))
		return
	}
	observability.IncPushDelivered(kind)
}
