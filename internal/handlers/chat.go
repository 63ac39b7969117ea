package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/delivery"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// messagePageSize is how many messages a chat load returns.
const messagePageSize = 15

// ChatHandler serves the request/response surface clients use around
// the live connection.
type ChatHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	resolver    *delivery.Resolver
	logger      *zap.Logger
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, resolver *delivery.Resolver, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{chatRepo: chatRepo, messageRepo: messageRepo, resolver: resolver, logger: logger}
}

// ListChats returns the user's active chat list with resolved names,
// unread counters and last messages.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	summaries, err := h.chatRepo.ListChatSummaries(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list chats", zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if summaries == nil {
		summaries = []models.ChatSummary{}
	}

	c.JSON(http.StatusOK, summaries)
}

// OpenChat resolves or lazily creates the direct chat between the
// requester and the target user.
func (h *ChatHandler) OpenChat(c *gin.Context) {
	userID, err := strconv.Atoi(c.Query("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	targetID, err := strconv.Atoi(c.Query("target_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}

	result, err := h.resolver.OpenDirectChat(c.Request.Context(), userID, targetID)
	if err != nil {
		h.logger.Error("open chat", zap.Int("user_id", userID), zap.Int("target_id", targetID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetChatMessages returns the most recent messages of a chat, ascending
// by sent_at. Non-members are rejected.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	userID, err := strconv.Atoi(c.Query("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	member, err := h.chatRepo.IsMember(c.Request.Context(), chatID, userID)
	if err != nil {
		h.logger.Error("check membership", zap.Int("chat_id", chatID), zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if !member {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "this user is not a member of the chat"})
		return
	}

	msgs, err := h.messageRepo.ListRecent(c.Request.Context(), chatID, messagePageSize)
	if err != nil {
		h.logger.Error("list messages", zap.Int("chat_id", chatID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, msgs)
}

// Health is the liveness endpoint.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
