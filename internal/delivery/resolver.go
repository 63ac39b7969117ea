package delivery

import (
	"context"
	"errors"
	"fmt"

	"messaging-service/internal/repositories"
)

// Resolver finds or lazily creates the direct chat between two users.
type Resolver struct {
	chats repositories.ChatRepository
}

// NewResolver constructs a Resolver.
func NewResolver(chats repositories.ChatRepository) *Resolver {
	return &Resolver{chats: chats}
}

// OpenResult reports whether the chat already existed and its id.
type OpenResult struct {
	Existed bool `json:"isChatExist"`
	ChatID  int  `json:"chatId"`
}

// OpenDirectChat returns the direct chat shared by both users, creating
// it atomically on first contact. Reopening a chat the requester had
// hidden resurfaces it; the other side's activation is never touched
// here. History is never lost by closing a chat, only hidden.
func (r *Resolver) OpenDirectChat(ctx context.Context, userID int, targetID int) (OpenResult, error) {
	chat, err := r.chats.FindDirectChat(ctx, userID, targetID)
	if err == nil {
		act, err := r.chats.GetActivation(ctx, chat.ID, userID)
		if err != nil {
			return OpenResult{}, fmt.Errorf("load activation: %w", err)
		}
		if !act.IsActive {
			if err := r.chats.SetActive(ctx, chat.ID, userID, true); err != nil {
				return OpenResult{}, fmt.Errorf("reactivate chat: %w", err)
			}
		}
		return OpenResult{Existed: true, ChatID: chat.ID}, nil
	}
	if !errors.Is(err, repositories.ErrChatNotFound) {
		return OpenResult{}, fmt.Errorf("find direct chat: %w", err)
	}

	created, err := r.chats.CreateDirectChat(ctx, userID, targetID)
	if err != nil {
		return OpenResult{}, fmt.Errorf("create direct chat: %w", err)
	}
	return OpenResult{Existed: false, ChatID: created.ID}, nil
}
