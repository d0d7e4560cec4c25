package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engagement-service/internal/models"
	"engagement-service/internal/repositories"
)

var testSecret = []byte("socket-test-secret")

// memMessages implements the message store contract in memory, including the
// per-room chain back-pointers set at insert time.
type memMessages struct {
	mu   sync.Mutex
	rows []models.Message
	fail bool
}

func (m *memMessages) CreateMessage(ctx context.Context, roomID int, senderID int, receiverID *int, text string) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return models.Message{}, errors.New("store unavailable")
	}

	msg := models.Message{
		ID:        len(m.rows) + 1,
		RoomID:    roomID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if receiverID != nil {
		id := *receiverID
		msg.ReceiverID = &id
	}
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].RoomID == roomID {
			prevID := m.rows[i].ID
			prevDate := m.rows[i].CreatedAt
			msg.LastMessageID = &prevID
			msg.LastMessageDate = &prevDate
			break
		}
	}
	m.rows = append(m.rows, msg)
	return msg, nil
}

func (m *memMessages) ListRoomMessages(ctx context.Context, roomID int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var msgs []models.Message
	for _, row := range m.rows {
		if row.RoomID == roomID {
			msgs = append(msgs, row)
		}
	}
	return msgs, nil
}

func (m *memMessages) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == messageID {
			return row, nil
		}
	}
	return models.Message{}, repositories.ErrMessageNotFound
}

func (m *memMessages) MarkRead(ctx context.Context, messageID int) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == messageID {
			m.rows[i].IsRead = true
			return m.rows[i], nil
		}
	}
	return models.Message{}, repositories.ErrMessageNotFound
}

func (m *memMessages) UnreadForUser(ctx context.Context, userID int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var msgs []models.Message
	for _, row := range m.rows {
		if row.ReceiverID != nil && *row.ReceiverID == userID && !row.IsRead {
			msgs = append(msgs, row)
		}
	}
	return msgs, nil
}

var _ repositories.MessageRepository = (*memMessages)(nil)

type awarderSpy struct {
	calls chan string
}

func (a *awarderSpy) AwardAsync(userID int, actionID string) {
	a.calls <- actionID
}

func makeToken(t *testing.T, userID int) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userID})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func newSocketServer(t *testing.T, store *memMessages, awarder Awarder) (*Hub, *Registry, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	registry := NewRegistry()
	handler := NewHandler(hub, registry, store, awarder, testSecret)

	router := gin.New()
	router.GET("/ws", handler.Handle)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return hub, registry, srv.URL
}

func dialWS(t *testing.T, baseURL string, userID int) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws?token=" + makeToken(t, userID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSession(t *testing.T, registry *Registry, userID int) *Client {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := registry.Lookup(userID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	client, _ := registry.Lookup(userID)
	return client
}

func readEvent(t *testing.T, conn *websocket.Conn) models.ChatEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var event models.ChatEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	return event
}

func TestSocketRejectsMissingToken(t *testing.T) {
	_, _, baseURL := newSocketServer(t, &memMessages{}, nil)

	resp, err := http.Get(baseURL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSocketRejectsBadToken(t *testing.T) {
	_, _, baseURL := newSocketServer(t, &memMessages{}, nil)

	resp, err := http.Get(baseURL + "/ws?token=garbage")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSocketMessageFlow(t *testing.T) {
	store := &memMessages{}
	awarder := &awarderSpy{calls: make(chan string, 4)}
	hub, registry, baseURL := newSocketServer(t, store, awarder)

	senderConn := dialWS(t, baseURL, 1)
	memberConn := dialWS(t, baseURL, 2)

	sender := waitForSession(t, registry, 1)
	member := waitForSession(t, registry, 2)
	hub.Join(5, sender)
	hub.Join(5, member)

	require.NoError(t, senderConn.WriteJSON(models.ClientEvent{
		Type: "chat_message", RoomID: 5, Text: "first",
	}))

	broadcast := readEvent(t, senderConn)
	require.Equal(t, "message", broadcast.Type)
	require.NotNil(t, broadcast.Message)
	assert.Equal(t, 5, broadcast.Message.RoomID)
	assert.Equal(t, 1, broadcast.Message.SenderID)
	assert.Equal(t, "first", broadcast.Message.Text)
	assert.Nil(t, broadcast.Message.LastMessageID)

	ack := readEvent(t, senderConn)
	require.Equal(t, "message_ack", ack.Type)
	require.NotNil(t, ack.Message)
	assert.Equal(t, broadcast.Message.ID, ack.Message.ID)

	memberCopy := readEvent(t, memberConn)
	assert.Equal(t, "message", memberCopy.Type)

	select {
	case action := <-awarder.calls:
		assert.Equal(t, "send_message", action)
	case <-time.After(2 * time.Second):
		t.Fatal("no points award triggered")
	}

	// second message chains to the first
	require.NoError(t, memberConn.WriteJSON(models.ClientEvent{
		Type: "chat_message", RoomID: 5, Text: "second",
	}))
	second := readEvent(t, memberConn)
	require.Equal(t, "message", second.Type)
	require.NotNil(t, second.Message.LastMessageID)
	assert.Equal(t, broadcast.Message.ID, *second.Message.LastMessageID)
}

func TestSocketInvalidMessageRejected(t *testing.T) {
	store := &memMessages{}
	_, registry, baseURL := newSocketServer(t, store, nil)

	conn := dialWS(t, baseURL, 1)
	waitForSession(t, registry, 1)

	require.NoError(t, conn.WriteJSON(models.ClientEvent{Type: "chat_message", RoomID: 5}))

	event := readEvent(t, conn)
	assert.Equal(t, "error", event.Type)
	assert.Empty(t, store.rows)
}

func TestSocketPersistFailureIsNotBroadcast(t *testing.T) {
	store := &memMessages{fail: true}
	hub, registry, baseURL := newSocketServer(t, store, nil)

	senderConn := dialWS(t, baseURL, 1)
	memberConn := dialWS(t, baseURL, 2)
	hub.Join(5, waitForSession(t, registry, 1))
	hub.Join(5, waitForSession(t, registry, 2))

	require.NoError(t, senderConn.WriteJSON(models.ClientEvent{
		Type: "chat_message", RoomID: 5, Text: "doomed",
	}))

	event := readEvent(t, senderConn)
	assert.Equal(t, "error", event.Type)

	// the other member must see nothing
	require.NoError(t, memberConn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := memberConn.ReadMessage()
	assert.Error(t, err)
}

func TestSocketUnknownEventType(t *testing.T) {
	_, registry, baseURL := newSocketServer(t, &memMessages{}, nil)

	conn := dialWS(t, baseURL, 1)
	waitForSession(t, registry, 1)

	require.NoError(t, conn.WriteJSON(models.ClientEvent{Type: "ping"}))

	event := readEvent(t, conn)
	assert.Equal(t, "error", event.Type)
}

func TestSocketDisconnectUnregisters(t *testing.T) {
	_, registry, baseURL := newSocketServer(t, &memMessages{}, nil)

	conn := dialWS(t, baseURL, 1)
	waitForSession(t, registry, 1)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		_, ok := registry.Lookup(1)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}
