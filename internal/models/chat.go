package models

import "time"

// Chat is a conversation with a fixed member roster. Name and Pic are
// only meaningful for group chats; direct chats resolve them from the
// other member.
type Chat struct {
	ID        int       `db:"chat_id" json:"id"`
	IsGroup   bool      `db:"is_group" json:"is_group"`
	Name      string    `db:"name" json:"name"`
	Pic       string    `db:"pic" json:"pic"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatActivation is the per-member visibility and unread state of a chat.
// Exactly one row exists per (chat, member) for the lifetime of the
// membership.
type ChatActivation struct {
	ChatID      int  `db:"chat_id" json:"chat_id"`
	UserID      int  `db:"user_id" json:"user_id"`
	IsActive    bool `db:"is_active" json:"is_active"`
	UnreadCount int  `db:"unread_count" json:"unread_count"`
}

// ChatSummary is the API view of one entry in a user's chat list:
// resolved display name/picture, unread counter and the latest message.
type ChatSummary struct {
	ChatID      int          `json:"id"`
	Name        string       `json:"name"`
	Pic         string       `json:"pic"`
	IsGroup     bool         `json:"is_group"`
	UnreadCount int          `json:"unread_count"`
	IsActive    bool         `json:"is_active"`
	LastMessage *LastMessage `json:"last_message"`
}

// LastMessage is the trimmed tail message embedded in chat summaries
// and notifications.
type LastMessage struct {
	Content string    `json:"content"`
	Status  string    `json:"status"`
	SentAt  time.Time `json:"sent_at"`
}
