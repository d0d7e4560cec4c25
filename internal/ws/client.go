package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"engagement-service/internal/models"
)

// Client is one live websocket session for an authenticated user. Writes are
// serialized through a mutex because broadcasts and unicast acks may race.
type Client struct {
	ConnID      string
	UserID      int
	IP          string
	DeviceID    string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time

	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, userID int) *Client {
	return &Client{
		ConnID:      newConnID(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		conn:        conn,
	}
}

// Send marshals an event and writes it to this client only.
func (c *Client) Send(event models.ChatEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.write(payload)
}

func (c *Client) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
