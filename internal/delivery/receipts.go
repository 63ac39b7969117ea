package delivery

import (
	"context"
	"fmt"

	"messaging-service/internal/models"
)

// MarkRead advances a message to read and notifies its author, if
// connected, with a read-message push. The chat and author are resolved
// from the stored message, never from the client's payload. Marking an
// already read message again is harmless; the receipt is best-effort
// and dropped when the author has no live handle.
func (e *Engine) MarkRead(ctx context.Context, messageID int) error {
	msg, err := e.messages.GetMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}

	if err := e.messages.MarkRead(ctx, messageID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	conn, connected, err := e.conns.Lookup(ctx, msg.SenderID)
	if err != nil {
		return fmt.Errorf("lookup author: %w", err)
	}
	if !connected {
		return nil
	}

	e.push(conn.ConnID, models.ReadReceiptEvent{
		Event:     models.EventReadMessage,
		ChatID:    msg.ChatID,
		MessageID: messageID,
	}, "receipt")
	return nil
}
