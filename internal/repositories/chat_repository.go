package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chats, their member rosters and the
// per-member activation records.
type ChatRepository interface {
	FindDirectChat(ctx context.Context, userID int, targetID int) (models.Chat, error)
	CreateDirectChat(ctx context.Context, openerID int, targetID int) (models.Chat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	IsMember(ctx context.Context, chatID int, userID int) (bool, error)
	Members(ctx context.Context, chatID int) ([]int, error)
	GetActivation(ctx context.Context, chatID int, userID int) (models.ChatActivation, error)
	SetActive(ctx context.Context, chatID int, userID int, active bool) error
	ActivateOthers(ctx context.Context, chatID int, senderID int) error
	IncrementUnread(ctx context.Context, chatID int, userID int) error
	ResetUnread(ctx context.Context, chatID int, userID int) error
	ListChatSummaries(ctx context.Context, userID int) ([]models.ChatSummary, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// FindDirectChat looks up the non-group chat both users belong to.
func (r *ChatRepo) FindDirectChat(ctx context.Context, userID int, targetID int) (models.Chat, error) {
	var chat models.Chat
	query := `SELECT c.chat_id, c.is_group, c.name, c.pic, c.created_at
        FROM chats c
        WHERE c.is_group = FALSE
        AND c.chat_id IN (SELECT chat_id FROM chat_members WHERE user_id = $1)
        AND c.chat_id IN (SELECT chat_id FROM chat_members WHERE user_id = $2)
        LIMIT 1`
	err := r.db.GetContext(ctx, &chat, query, userID, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// CreateDirectChat creates the chat, both memberships and both
// activation rows in one transaction. The opener's activation starts
// active, the target's hidden until a message arrives.
func (r *ChatRepo) CreateDirectChat(ctx context.Context, openerID int, targetID int) (models.Chat, error) {
	if openerID == targetID {
		return models.Chat{}, errors.New("cannot create chat with self")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var chat models.Chat
	if err = tx.QueryRowxContext(ctx, `INSERT INTO chats (is_group) VALUES (FALSE) RETURNING chat_id, is_group, name, pic, created_at`).
		StructScan(&chat); err != nil {
		return models.Chat{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2), ($1, $3)`,
		chat.ID, openerID, targetID); err != nil {
		return models.Chat{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO chat_activations (chat_id, user_id, is_active) VALUES ($1, $2, TRUE), ($1, $3, FALSE)`,
		chat.ID, openerID, targetID); err != nil {
		return models.Chat{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT chat_id, is_group, name, pic, created_at FROM chats WHERE chat_id = $1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// IsMember checks whether the user belongs to the chat roster.
func (r *ChatRepo) IsMember(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2)`, chatID, userID)
	return exists, err
}

// Members returns the user ids on the chat roster.
func (r *ChatRepo) Members(ctx context.Context, chatID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM chat_members WHERE chat_id = $1 ORDER BY user_id`, chatID)
	return ids, err
}

// GetActivation returns the member's activation row. A missing row is
// reported as an inactive zero-count record rather than an error so
// callers tolerate rosters created before activation bookkeeping.
func (r *ChatRepo) GetActivation(ctx context.Context, chatID int, userID int) (models.ChatActivation, error) {
	var act models.ChatActivation
	err := r.db.GetContext(ctx, &act, `SELECT chat_id, user_id, is_active, unread_count FROM chat_activations WHERE chat_id = $1 AND user_id = $2`, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatActivation{ChatID: chatID, UserID: userID}, nil
	}
	return act, err
}

// SetActive upserts the is_active flag for one member.
func (r *ChatRepo) SetActive(ctx context.Context, chatID int, userID int, active bool) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO chat_activations (chat_id, user_id, is_active) VALUES ($1, $2, $3)
        ON CONFLICT (chat_id, user_id) DO UPDATE SET is_active = EXCLUDED.is_active`, chatID, userID, active)
	return err
}

// ActivateOthers resurfaces the chat for every member except the sender.
func (r *ChatRepo) ActivateOthers(ctx context.Context, chatID int, senderID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE chat_activations SET is_active = TRUE WHERE chat_id = $1 AND user_id <> $2`, chatID, senderID)
	return err
}

// IncrementUnread adds one to the member's unread counter. The
// increment is relative so concurrent sends compose correctly.
func (r *ChatRepo) IncrementUnread(ctx context.Context, chatID int, userID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE chat_activations SET unread_count = unread_count + 1 WHERE chat_id = $1 AND user_id = $2`, chatID, userID)
	return err
}

// ResetUnread zeroes the member's unread counter. Only the explicit
// chat-open action calls this, never disconnects.
func (r *ChatRepo) ResetUnread(ctx context.Context, chatID int, userID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE chat_activations SET unread_count = 0 WHERE chat_id = $1 AND user_id = $2`, chatID, userID)
	return err
}

// ListChatSummaries returns the user's active chat list with resolved
// display name/picture, unread counter and last message. For direct
// chats the name and picture come from the other member; groups fall
// back to "Group Chat" when unnamed.
func (r *ChatRepo) ListChatSummaries(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	query := `SELECT
            c.chat_id,
            CASE
                WHEN c.is_group THEN COALESCE(NULLIF(c.name, ''), 'Group Chat')
                ELSE (
                    SELECT u.username
                    FROM chat_members cm2
                    JOIN users u ON u.user_id = cm2.user_id
                    WHERE cm2.chat_id = c.chat_id AND cm2.user_id <> $1
                    LIMIT 1
                )
            END AS name,
            CASE
                WHEN c.is_group THEN c.pic
                ELSE (
                    SELECT u.profile_pic
                    FROM chat_members cm2
                    JOIN users u ON u.user_id = cm2.user_id
                    WHERE cm2.chat_id = c.chat_id AND cm2.user_id <> $1
                    LIMIT 1
                )
            END AS pic,
            c.is_group,
            COALESCE(ca.unread_count, 0) AS unread_count,
            COALESCE(ca.is_active, FALSE) AS is_active,
            lm.content, lm.status, lm.sent_at
        FROM chats c
        JOIN chat_members cm ON cm.chat_id = c.chat_id
        LEFT JOIN chat_activations ca ON ca.chat_id = c.chat_id AND ca.user_id = $1
        LEFT JOIN LATERAL (
            SELECT m.content, m.status, m.sent_at
            FROM messages m
            WHERE m.chat_id = c.chat_id
            ORDER BY m.sent_at DESC
            LIMIT 1
        ) lm ON TRUE
        WHERE cm.user_id = $1
        AND COALESCE(ca.is_active, FALSE) = TRUE`

	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ChatSummary
	for rows.Next() {
		var (
			summary models.ChatSummary
			name    sql.NullString
			pic     sql.NullString
			content sql.NullString
			status  sql.NullString
			sentAt  sql.NullTime
		)
		if err := rows.Scan(&summary.ChatID, &name, &pic, &summary.IsGroup,
			&summary.UnreadCount, &summary.IsActive, &content, &status, &sentAt); err != nil {
			return nil, err
		}
		summary.Name = name.String
		summary.Pic = pic.String
		if content.Valid {
			summary.LastMessage = &models.LastMessage{Content: content.String, Status: status.String, SentAt: sentAt.Time}
		}
		result = append(result, summary)
	}
	return result, rows.Err()
}
