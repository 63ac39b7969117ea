package models

import (
	"database/sql"
	"time"
)

// Connection is the durable projection of "this user is reachable right
// now": at most one row per user, replaced wholesale on reconnect.
// CurrentChatID is the chat the connection is viewing, if any.
type Connection struct {
	UserID        int           `db:"user_id" json:"user_id"`
	ConnID        string        `db:"conn_id" json:"conn_id"`
	CurrentChatID sql.NullInt64 `db:"current_chat_id" json:"current_chat_id"`
	ConnectedAt   time.Time     `db:"connected_at" json:"connected_at"`
}

// Viewing reports whether the connection currently has the given chat open.
func (c Connection) Viewing(chatID int) bool {
	return c.CurrentChatID.Valid && int(c.CurrentChatID.Int64) == chatID
}
