package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// ConnectionRepository is the durable registry of live connections. The
// rows are the single source of truth for routing; the websocket hub
// only maps conn ids back to transport handles.
type ConnectionRepository interface {
	Register(ctx context.Context, userID int, connID string) error
	SetActiveChat(ctx context.Context, userID int, chatID int) error
	Lookup(ctx context.Context, userID int) (models.Connection, bool, error)
	Unregister(ctx context.Context, userID int, connID string) error
}

// ConnectionRepo is a sqlx implementation of ConnectionRepository.
type ConnectionRepo struct {
	db *sqlx.DB
}

// NewConnectionRepo constructs a ConnectionRepo.
func NewConnectionRepo(db *sqlx.DB) *ConnectionRepo {
	return &ConnectionRepo{db: db}
}

// Register upserts the connection row for the user. A reconnect under a
// new conn id overwrites the old handle and clears the viewed chat.
func (r *ConnectionRepo) Register(ctx context.Context, userID int, connID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO connections (user_id, conn_id, current_chat_id, connected_at)
        VALUES ($1, $2, NULL, NOW())
        ON CONFLICT (user_id) DO UPDATE SET conn_id = EXCLUDED.conn_id, current_chat_id = NULL, connected_at = NOW()`,
		userID, connID)
	return err
}

// SetActiveChat records which chat the user's connection is viewing.
func (r *ConnectionRepo) SetActiveChat(ctx context.Context, userID int, chatID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE connections SET current_chat_id = $2 WHERE user_id = $1`, userID, chatID)
	return err
}

// Lookup returns the user's live connection, or false if not connected.
func (r *ConnectionRepo) Lookup(ctx context.Context, userID int) (models.Connection, bool, error) {
	var conn models.Connection
	err := r.db.GetContext(ctx, &conn, `SELECT user_id, conn_id, current_chat_id, connected_at FROM connections WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Connection{}, false, nil
	}
	if err != nil {
		return models.Connection{}, false, err
	}
	return conn, true, nil
}

// Unregister deletes the connection row, but only if it still belongs
// to the given handle: a stale socket closing after a reconnect must
// not tear down the replacement registration. Activation state is
// untouched.
func (r *ConnectionRepo) Unregister(ctx context.Context, userID int, connID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE user_id = $1 AND conn_id = $2`, userID, connID)
	return err
}
