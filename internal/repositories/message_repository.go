package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository is the append-only message log of a chat.
type MessageRepository interface {
	CreateMessage(ctx context.Context, chatID int, senderID int, content string) (models.Message, bool, error)
	ListRecent(ctx context.Context, chatID int, limit int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	MarkRead(ctx context.Context, messageID int) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage appends a message with status sent and reports whether
// it is the chat's first. The sent_at timestamp comes from the store,
// not the client, so ordering within a chat is immune to client clock
// skew. The chat row is locked for the duration of the insert, so
// concurrent sends into the same chat serialize and exactly one of
// them observes first = true.
func (r *MessageRepo) CreateMessage(ctx context.Context, chatID int, senderID int, content string) (models.Message, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var lockedChat int
	if err = tx.GetContext(ctx, &lockedChat, `SELECT chat_id FROM chats WHERE chat_id = $1 FOR UPDATE`, chatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrChatNotFound
		}
		return models.Message{}, false, err
	}

	var hasPrior bool
	if err = tx.GetContext(ctx, &hasPrior, `SELECT EXISTS(SELECT 1 FROM messages WHERE chat_id = $1)`, chatID); err != nil {
		return models.Message{}, false, err
	}

	var msg models.Message
	if err = tx.QueryRowxContext(ctx, `INSERT INTO messages (chat_id, sender_id, content, status, sent_at)
        VALUES ($1, $2, $3, 'sent', NOW())
        RETURNING message_id, chat_id, sender_id, content, status, sent_at`, chatID, senderID, content).
		StructScan(&msg); err != nil {
		return models.Message{}, false, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, false, err
	}
	return msg, !hasPrior, nil
}

// ListRecent returns the most recent messages of a chat, ascending by
// sent_at so clients can render them top to bottom.
func (r *MessageRepo) ListRecent(ctx context.Context, chatID int, limit int) ([]models.Message, error) {
	var msgs []models.Message
	query := `SELECT message_id, chat_id, sender_id, content, status, sent_at FROM (
            SELECT message_id, chat_id, sender_id, content, status, sent_at
            FROM messages
            WHERE chat_id = $1
            ORDER BY sent_at DESC
            LIMIT $2
        ) recent
        ORDER BY sent_at ASC`
	err := r.db.SelectContext(ctx, &msgs, query, chatID, limit)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT message_id, chat_id, sender_id, content, status, sent_at FROM messages WHERE message_id = $1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkRead advances the message status to read. Re-marking an already
// read message is a no-op.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET status = 'read' WHERE message_id = $1`, messageID)
	return err
}
