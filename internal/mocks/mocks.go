package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) FindDirectChat(ctx context.Context, userID int, targetID int) (models.Chat, error) {
	args := m.Called(ctx, userID, targetID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) CreateDirectChat(ctx context.Context, openerID int, targetID int) (models.Chat, error) {
	args := m.Called(ctx, openerID, targetID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) IsMember(ctx context.Context, chatID int, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) Members(ctx context.Context, chatID int) ([]int, error) {
	args := m.Called(ctx, chatID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *ChatRepositoryMock) GetActivation(ctx context.Context, chatID int, userID int) (models.ChatActivation, error) {
	args := m.Called(ctx, chatID, userID)
	var act models.ChatActivation
	if val := args.Get(0); val != nil {
		act = val.(models.ChatActivation)
	}
	return act, args.Error(1)
}

func (m *ChatRepositoryMock) SetActive(ctx context.Context, chatID int, userID int, active bool) error {
	args := m.Called(ctx, chatID, userID, active)
	return args.Error(0)
}

func (m *ChatRepositoryMock) ActivateOthers(ctx context.Context, chatID int, senderID int) error {
	args := m.Called(ctx, chatID, senderID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) IncrementUnread(ctx context.Context, chatID int, userID int) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) ResetUnread(ctx context.Context, chatID int, userID int) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) ListChatSummaries(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, chatID int, senderID int, content string) (models.Message, bool, error) {
	args := m.Called(ctx, chatID, senderID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) ListRecent(ctx context.Context, chatID int, limit int) ([]models.Message, error) {
	args := m.Called(ctx, chatID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type ConnectionRepositoryMock struct {
	mock.Mock
}

func (m *ConnectionRepositoryMock) Register(ctx context.Context, userID int, connID string) error {
	args := m.Called(ctx, userID, connID)
	return args.Error(0)
}

func (m *ConnectionRepositoryMock) SetActiveChat(ctx context.Context, userID int, chatID int) error {
	args := m.Called(ctx, userID, chatID)
	return args.Error(0)
}

func (m *ConnectionRepositoryMock) Lookup(ctx context.Context, userID int) (models.Connection, bool, error) {
	args := m.Called(ctx, userID)
	var conn models.Connection
	if val := args.Get(0); val != nil {
		conn = val.(models.Connection)
	}
	return conn, args.Bool(1), args.Error(2)
}

func (m *ConnectionRepositoryMock) Unregister(ctx context.Context, userID int, connID string) error {
	args := m.Called(ctx, userID, connID)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

type PusherMock struct {
	mock.Mock
}

func (m *PusherMock) Send(connID string, event any) error {
	args := m.Called(connID, event)
	return args.Error(0)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ConnectionRepository = (*ConnectionRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
