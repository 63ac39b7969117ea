package models

import "encoding/json"

// Inbound socket event names.
const (
	EventJoinChat    = "join-chat"
	EventSendMessage = "send-message"
	EventReadMessage = "read-message"
)

// Outbound socket event names.
const (
	EventNewMessage       = "new-message"
	EventChatNotification = "chat-notification"
)

// SocketEvent is the envelope for every inbound frame on a user socket.
type SocketEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// JoinChatPayload marks the connection as viewing a chat.
type JoinChatPayload struct {
	ChatID int `json:"chatId"`
}

// SendMessagePayload carries a message-send request.
type SendMessagePayload struct {
	ChatID   int    `json:"chatId"`
	SenderID int    `json:"senderId"`
	Content  string `json:"content"`
}

// ReadMessagePayload reports that the reader viewed a message authored
// by SenderID.
type ReadMessagePayload struct {
	MessageID int `json:"messageId"`
	ChatID    int `json:"chatId"`
	SenderID  int `json:"senderId"`
}

// NewMessageEvent is pushed to members actively viewing the chat.
type NewMessageEvent struct {
	Event   string  `json:"event"`
	Message Message `json:"message"`
}

// ChatNotification is the aggregated push for connected members who are
// not viewing the chat. For the first message of a chat it carries the
// full summary (resolved name/pic); afterwards only the delta fields
// are populated since the client already holds the static metadata.
type ChatNotification struct {
	ChatID      int          `json:"id"`
	Name        string       `json:"name,omitempty"`
	Pic         string       `json:"pic,omitempty"`
	IsGroup     bool         `json:"is_group,omitempty"`
	IsNewChat   bool         `json:"is_new_chat,omitempty"`
	UnreadCount int          `json:"unread_count"`
	LastMessage *LastMessage `json:"last_message"`
}

// ChatNotificationEvent wraps a ChatNotification for the wire.
type ChatNotificationEvent struct {
	Event        string           `json:"event"`
	Notification ChatNotification `json:"message"`
}

// ReadReceiptEvent tells a message's author that a recipient viewed it.
type ReadReceiptEvent struct {
	Event     string `json:"event"`
	ChatID    int    `json:"chatId"`
	MessageID int    `json:"messageId"`
}
