package models

import "time"

// Message statuses. A message only ever advances sent -> read;
// StatusDelivered is reserved and currently never set.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Message is one row of a chat's append-only message log. SentAt is
// assigned by the store at insert time and orders the chat.
type Message struct {
	ID       int       `db:"message_id" json:"id"`
	ChatID   int       `db:"chat_id" json:"chat_id"`
	SenderID int       `db:"sender_id" json:"sender_id"`
	Content  string    `db:"content" json:"content"`
	Status   string    `db:"status" json:"status"`
	SentAt   time.Time `db:"sent_at" json:"sent_at"`
}

// Last converts the message into the trimmed form embedded in chat
// summaries and notifications.
func (m Message) Last() *LastMessage {
	return &LastMessage{Content: m.Content, Status: m.Status, SentAt: m.SentAt}
}
