package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/delivery"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

// memoryRegistry is an in-memory stand-in for the durable connection
// registry, recording registrations in order.
type memoryRegistry struct {
	mu   sync.Mutex
	rows map[int]models.Connection
	seen []string
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{rows: make(map[int]models.Connection)}
}

func (r *memoryRegistry) Register(ctx context.Context, userID int, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[userID] = models.Connection{UserID: userID, ConnID: connID, ConnectedAt: time.Now()}
	r.seen = append(r.seen, connID)
	return nil
}

func (r *memoryRegistry) SetActiveChat(ctx context.Context, userID int, chatID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.rows[userID]
	row.CurrentChatID.Int64 = int64(chatID)
	row.CurrentChatID.Valid = true
	r.rows[userID] = row
	return nil
}

func (r *memoryRegistry) Lookup(ctx context.Context, userID int) (models.Connection, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[userID]
	return row, ok, nil
}

func (r *memoryRegistry) Unregister(ctx context.Context, userID int, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[userID]; ok && row.ConnID == connID {
		delete(r.rows, userID)
	}
	return nil
}

func (r *memoryRegistry) registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestStaleSocketCloseKeepsNewRegistration(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := newMemoryRegistry()
	users := new(mocks.UserRepositoryMock)
	users.On("GetUser", mock.Anything, 7).Return(models.User{ID: 7, Username: "sam"}, nil)

	hub := NewHub(nil)
	engine := delivery.NewEngine(new(mocks.ChatRepositoryMock), new(mocks.MessageRepositoryMock), registry, users, hub, nil)
	handler := NewSocketHandler(hub, engine, registry, users, nil)

	router := gin.New()
	router.GET("/ws", handler.Handle)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user_id=7"

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(registry.registered()) == 1 }, time.Second, 10*time.Millisecond)

	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer second.Close()
	require.Eventually(t, func() bool { return len(registry.registered()) == 2 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return hub.Len() == 2 }, time.Second, 10*time.Millisecond)

	handles := registry.registered()

	// Closing the stale first socket must not tear down the replacement
	// registration.
	first.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	conn, connected, err := registry.Lookup(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, connected)
	require.Equal(t, handles[1], conn.ConnID)

	// The replacement handle is still live and writable.
	require.NoError(t, hub.Send(handles[1], models.NewMessageEvent{Event: models.EventNewMessage}))
}
