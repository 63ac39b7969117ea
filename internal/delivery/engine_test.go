package delivery

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

func newTestEngine(chats *mocks.ChatRepositoryMock, messages *mocks.MessageRepositoryMock, conns *mocks.ConnectionRepositoryMock, users *mocks.UserRepositoryMock, pusher *mocks.PusherMock) *Engine {
	return NewEngine(chats, messages, conns, users, pusher, zap.NewNop())
}

func viewing(connID string, chatID int) models.Connection {
	return models.Connection{ConnID: connID, CurrentChatID: sql.NullInt64{Int64: int64(chatID), Valid: true}}
}

func TestSendMessageNonMemberSenderIgnored(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	conns := new(mocks.ConnectionRepositoryMock)
	pusher := new(mocks.PusherMock)
	engine := newTestEngine(chats, messages, conns, new(mocks.UserRepositoryMock), pusher)

	chats.On("IsMember", mock.Anything, 5, 99).Return(false, nil).Once()

	got, err := engine.SendMessage(context.Background(), 5, 99, "intrude")

	require.NoError(t, err)
	require.Zero(t, got)
	// Nothing is persisted and no member sees any effect.
	messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	chats.AssertNotCalled(t, "IncrementUnread", mock.Anything, mock.Anything, mock.Anything)
	pusher.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	chats.AssertExpectations(t)
}

func TestSendMessageFirstMessageOfflineRecipient(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	conns := new(mocks.ConnectionRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	pusher := new(mocks.PusherMock)
	engine := newTestEngine(chats, messages, conns, users, pusher)

	msg := models.Message{ID: 1, ChatID: 5, SenderID: 1, Content: "hi", Status: models.StatusSent}
	chats.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	messages.On("CreateMessage", mock.Anything, 5, 1, "hi").Return(msg, true, nil).Once()
	chats.On("Members", mock.Anything, 5).Return([]int{1, 2}, nil)
	chats.On("GetActivation", mock.Anything, 5, 2).Return(models.ChatActivation{ChatID: 5, UserID: 2}, nil).Once()
	conns.On("Lookup", mock.Anything, 2).Return(models.Connection{}, false, nil).Once()
	chats.On("IncrementUnread", mock.Anything, 5, 2).Return(nil).Once()

	got, err := engine.SendMessage(context.Background(), 5, 1, "hi")

	require.NoError(t, err)
	require.Equal(t, msg, got)
	// First message: activation state from chat resolution stays untouched.
	chats.AssertNotCalled(t, "ActivateOthers", mock.Anything, mock.Anything, mock.Anything)
	pusher.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	chats.AssertExpectations(t)
	messages.AssertExpectations(t)
	conns.AssertExpectations(t)
}

func TestSendMessageViewingRecipientGetsLivePush(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	conns := new(mocks.ConnectionRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	pusher := new(mocks.PusherMock)
	engine := newTestEngine(chats, messages, conns, users, pusher)

	msg := models.Message{ID: 9, ChatID: 5, SenderID: 1, Content: "again", Status: models.StatusSent}
	chats.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	messages.On("CreateMessage", mock.Anything, 5, 1, "again").Return(msg, false, nil).Once()
	chats.On("ActivateOthers", mock.Anything, 5, 1).Return(nil).Once()
	chats.On("Members", mock.Anything, 5).Return([]int{1, 2}, nil)
	chats.On("GetActivation", mock.Anything, 5, 2).Return(models.ChatActivation{ChatID: 5, UserID: 2, IsActive: true}, nil).Once()
	conns.On("Lookup", mock.Anything, 2).Return(viewing("h2", 5), true, nil).Once()
	pusher.On("Send", "h2", models.NewMessageEvent{Event: models.EventNewMessage, Message: msg}).Return(nil).Once()

	_, err := engine.SendMessage(context.Background(), 5, 1, "again")

	require.NoError(t, err)
	// Actively viewing members never get the notification form and no
	// unread bookkeeping.
	chats.AssertNotCalled(t, "IncrementUnread", mock.Anything, mock.Anything, mock.Anything)
	chats.AssertExpectations(t)
	messages.AssertExpectations(t)
	conns.AssertExpectations(t)
	pusher.AssertExpectations(t)
}

func TestSendMessageConnectedButNotViewingGetsNotification(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	conns := new(mocks.ConnectionRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	pusher := new(mocks.PusherMock)
	engine := newTestEngine(chats, messages, conns, users, pusher)

	msg := models.Message{ID: 10, ChatID: 5, SenderID: 1, Content: "ping", Status: models.StatusSent}
	chats.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	messages.On("CreateMessage", mock.Anything, 5, 1, "ping").Return(msg, false, nil).Once()
	chats.On("ActivateOthers", mock.Anything, 5, 1).Return(nil).Once()
	chats.On("Members", mock.Anything, 5).Return([]int{1, 2}, nil)
	chats.On("GetActivation", mock.Anything, 5, 2).Return(models.ChatActivation{ChatID: 5, UserID: 2, IsActive: true, UnreadCount: 2}, nil).Once()
	// Connected but viewing another chat.
	conns.On("Lookup", mock.Anything, 2).Return(viewing("h2", 7), true, nil)
	chats.On("IncrementUnread", mock.Anything, 5, 2).Return(nil).Once()
	pusher.On("Send", "h2", mock.MatchedBy(func(event any) bool {
		e, ok := event.(models.ChatNotificationEvent)
		if !ok {
			return false
		}
		n := e.Notification
		// Delta shape only: no name/pic, counter reflects the new message.
		return e.Event == models.EventChatNotification &&
			n.ChatID == 5 && n.UnreadCount == 3 && !n.IsNewChat &&
			n.Name == "" && n.LastMessage != nil && n.LastMessage.Content == "ping"
	})).Return(nil).Once()

	_, err := engine.SendMessage(context.Background(), 5, 1, "ping")

	require.NoError(t, err)
	chats.AssertExpectations(t)
	pusher.AssertExpectations(t)
}

func TestSendMessageNewChatNotificationCarriesFullSummary(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	conns := new(mocks.ConnectionRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	pusher := new(mocks.PusherMock)
	engine := newTestEngine(chats, messages, conns, users, pusher)

	msg := models.Message{ID: 1, ChatID: 5, SenderID: 1, Content: "hello", Status: models.StatusSent}
	chats.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	messages.On("CreateMessage", mock.Anything, 5, 1, "hello").Return(msg, true, nil).Once()
	chats.On("Members", mock.Anything, 5).Return([]int{1, 2}, nil)
	chats.On("GetActivation", mock.Anything, 5, 2).Return(models.ChatActivation{ChatID: 5, UserID: 2}, nil).Once()
	conns.On("Lookup", mock.Anything, 2).Return(viewing("h2", 0), true, nil)
	chats.On("IncrementUnread", mock.Anything, 5, 2).Return(nil).Once()
	chats.On("GetChat", mock.Anything, 5).Return(models.Chat{ID: 5}, nil).Once()
	users.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice", ProfilePic: "pic.png"}, nil).Once()
	pusher.On("Send", "h2", mock.MatchedBy(func(event any) bool {
		e, ok := event.(models.ChatNotificationEvent)
		if !ok {
			return false
		}
		n := e.Notification
		// For a direct chat the summary resolves to the other member.
		return n.IsNewChat && n.Name == "alice" && n.Pic == "pic.png" &&
			n.ChatID == 5 && n.UnreadCount == 1
	})).Return(nil).Once()

	_, err := engine.SendMessage(context.Background(), 5, 1, "hello")

	require.NoError(t, err)
	chats.AssertExpectations(t)
	users.AssertExpectations(t)
	pusher.AssertExpectations(t)
}

func TestSendMessageGroupFallbackName(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	conns := new(mocks.ConnectionRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	pusher := new(mocks.PusherMock)
	engine := newTestEngine(chats, messages, conns, users, pusher)

	msg := models.Message{ID: 1, ChatID: 8, SenderID: 1, Content: "yo", Status: models.StatusSent}
	chats.On("IsMember", mock.Anything, 8, 1).Return(true, nil).Once()
	messages.On("CreateMessage", mock.Anything, 8, 1, "yo").Return(msg, true, nil).Once()
	chats.On("Members", mock.Anything, 8).Return([]int{1, 2}, nil)
	chats.On("GetActivation", mock.Anything, 8, 2).Return(models.ChatActivation{ChatID: 8, UserID: 2}, nil).Once()
	conns.On("Lookup", mock.Anything, 2).Return(viewing("h2", 0), true, nil)
	chats.On("IncrementUnread", mock.Anything, 8, 2).Return(nil).Once()
	chats.On("GetChat", mock.Anything, 8).Return(models.Chat{ID: 8, IsGroup: true}, nil).Once()
	pusher.On("Send", "h2", mock.MatchedBy(func(event any) bool {
		e, ok := event.(models.ChatNotificationEvent)
		return ok && e.Notification.Name == "Group Chat" && e.Notification.IsGroup
	})).Return(nil).Once()

	_, err := engine.SendMessage(context.Background(), 8, 1, "yo")

	require.NoError(t, err)
	users.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
	pusher.AssertExpectations(t)
}

func TestSendMessageDisconnectDuringProcessingDropsPushKeepsUnread(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	conns := new(mocks.ConnectionRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	pusher := new(mocks.PusherMock)
	engine := newTestEngine(chats, messages, conns, users, pusher)

	msg := models.Message{ID: 2, ChatID: 5, SenderID: 1, Content: "gone", Status: models.StatusSent}
	chats.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	messages.On("CreateMessage", mock.Anything, 5, 1, "gone").Return(msg, false, nil).Once()
	chats.On("ActivateOthers", mock.Anything, 5, 1).Return(nil).Once()
	chats.On("Members", mock.Anything, 5).Return([]int{1, 2}, nil)
	chats.On("GetActivation", mock.Anything, 5, 2).Return(models.ChatActivation{ChatID: 5, UserID: 2}, nil).Once()
	// Connected at partition time, gone at push time.
	conns.On("Lookup", mock.Anything, 2).Return(viewing("h2", 0), true, nil).Once()
	chats.On("IncrementUnread", mock.Anything, 5, 2).Return(nil).Once()
	conns.On("Lookup", mock.Anything, 2).Return(models.Connection{}, false, nil).Once()

	_, err := engine.SendMessage(context.Background(), 5, 1, "gone")

	require.NoError(t, err)
	pusher.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	chats.AssertExpectations(t)
	conns.AssertExpectations(t)
}

func TestSendMessagePersistFailureAbortsDelivery(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	conns := new(mocks.ConnectionRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	pusher := new(mocks.PusherMock)
	engine := newTestEngine(chats, messages, conns, users, pusher)

	chats.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	messages.On("CreateMessage", mock.Anything, 5, 1, "x").Return(models.Message{}, false, context.DeadlineExceeded).Once()

	_, err := engine.SendMessage(context.Background(), 5, 1, "x")

	require.Error(t, err)
	chats.AssertNotCalled(t, "ActivateOthers", mock.Anything, mock.Anything, mock.Anything)
	chats.AssertNotCalled(t, "Members", mock.Anything, mock.Anything)
	chats.AssertNotCalled(t, "IncrementUnread", mock.Anything, mock.Anything, mock.Anything)
	pusher.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSendMessageExcludesSenderAndFansOut(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	conns := new(mocks.ConnectionRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	pusher := new(mocks.PusherMock)
	engine := newTestEngine(chats, messages, conns, users, pusher)

	msg := models.Message{ID: 3, ChatID: 9, SenderID: 2, Content: "all", Status: models.StatusSent}
	chats.On("IsMember", mock.Anything, 9, 2).Return(true, nil).Once()
	messages.On("CreateMessage", mock.Anything, 9, 2, "all").Return(msg, false, nil).Once()
	chats.On("ActivateOthers", mock.Anything, 9, 2).Return(nil).Once()
	chats.On("Members", mock.Anything, 9).Return([]int{1, 2, 3}, nil)
	for _, member := range []int{1, 3} {
		chats.On("GetActivation", mock.Anything, 9, member).Return(models.ChatActivation{ChatID: 9, UserID: member}, nil).Once()
		conns.On("Lookup", mock.Anything, member).Return(models.Connection{}, false, nil).Once()
		chats.On("IncrementUnread", mock.Anything, 9, member).Return(nil).Once()
	}

	_, err := engine.SendMessage(context.Background(), 9, 2, "all")

	require.NoError(t, err)
	chats.AssertNotCalled(t, "GetActivation", mock.Anything, 9, 2)
	chats.AssertExpectations(t)
	conns.AssertExpectations(t)
}

func TestJoinChatResetsUnreadAndActivates(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	conns := new(mocks.ConnectionRepositoryMock)
	engine := newTestEngine(chats, new(mocks.MessageRepositoryMock), conns, new(mocks.UserRepositoryMock), new(mocks.PusherMock))

	chats.On("IsMember", mock.Anything, 5, 2).Return(true, nil).Once()
	conns.On("SetActiveChat", mock.Anything, 2, 5).Return(nil).Once()
	chats.On("SetActive", mock.Anything, 5, 2, true).Return(nil).Once()
	chats.On("ResetUnread", mock.Anything, 5, 2).Return(nil).Once()

	require.NoError(t, engine.JoinChat(context.Background(), 2, 5))
	chats.AssertExpectations(t)
	conns.AssertExpectations(t)
}

func TestJoinChatNonMemberIsSilentNoop(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	conns := new(mocks.ConnectionRepositoryMock)
	engine := newTestEngine(chats, new(mocks.MessageRepositoryMock), conns, new(mocks.UserRepositoryMock), new(mocks.PusherMock))

	chats.On("IsMember", mock.Anything, 5, 9).Return(false, nil).Once()

	require.NoError(t, engine.JoinChat(context.Background(), 9, 5))
	conns.AssertNotCalled(t, "SetActiveChat", mock.Anything, mock.Anything, mock.Anything)
	chats.AssertNotCalled(t, "ResetUnread", mock.Anything, mock.Anything, mock.Anything)
}

func TestJoinChatZeroChatIDIgnored(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	engine := newTestEngine(chats, new(mocks.MessageRepositoryMock), new(mocks.ConnectionRepositoryMock), new(mocks.UserRepositoryMock), new(mocks.PusherMock))

	require.NoError(t, engine.JoinChat(context.Background(), 2, 0))
	chats.AssertNotCalled(t, "IsMember", mock.Anything, mock.Anything, mock.Anything)
}
