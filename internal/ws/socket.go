package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"engagement-service/internal/middleware"
	"engagement-service/internal/models"
	"engagement-service/internal/observability"
	"engagement-service/internal/repositories"
)

// Awarder awards engagement points without blocking the chat path.
type Awarder interface {
	AwardAsync(userID int, actionID string)
}

// Handler owns the websocket endpoint: session registration, the read loop
// and the message submission protocol.
type Handler struct {
	hub      *Hub
	registry *Registry
	messages repositories.MessageRepository
	awarder  Awarder
	secret   []byte
}

// NewHandler constructs a Handler. awarder may be nil.
func NewHandler(hub *Hub, registry *Registry, messages repositories.MessageRepository, awarder Awarder, secret []byte) *Handler {
	return &Handler{hub: hub, registry: registry, messages: messages, awarder: awarder, secret: secret}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// messageWriteTimeout bounds a single message persist so a stuck store cannot
// wedge a client's read loop forever.
const messageWriteTimeout = 10 * time.Second

// Handle upgrades the connection, registers the session and runs the read
// loop until disconnect.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("engagement-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}

	userID, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID)
	client.IP = observability.IPFromRequest(c.Request)
	client.DeviceID = observability.DeviceIDFromRequest(c.Request)
	client.RequestID = observability.RequestIDFromRequest(c.Request)
	client.TraceID = span.SpanContext().TraceID().String()

	h.registry.Register(client)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishSessionEvent(ctx, client, "ws_connect", "")

	go h.readLoop(client)
}

func (h *Handler) readLoop(client *Client) {
	var closeReason string
	defer func() {
		h.hub.LeaveAll(client)
		h.registry.Unregister(client)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishSessionEvent(context.Background(), client, "ws_disconnect", closeReason)
		client.Close()
	}()

	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}

		var event models.ClientEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			client.Send(models.ChatEvent{Type: "error", Error: "malformed event"})
			continue
		}

		switch event.Type {
		case "chat_message":
			h.handleChatMessage(client, event)
		default:
			client.Send(models.ChatEvent{Type: "error", Error: "unknown event type"})
		}
	}
}

// handleChatMessage validates, persists and fans out one submitted message.
// The sender always gets exactly one response: an ack with the stored row, or
// an error event. Persistence failures never take the process down and never
// leak an unsaved message into a broadcast.
func (h *Handler) handleChatMessage(client *Client, event models.ClientEvent) {
	if event.RoomID == 0 || event.Text == "" {
		observability.IncWSEvent("invalid_message")
		client.Send(models.ChatEvent{Type: "error", RoomID: event.RoomID, Error: "room_id and text are required"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), messageWriteTimeout)
	defer cancel()

	msg, err := h.messages.CreateMessage(ctx, event.RoomID, client.UserID, event.ReceiverID, event.Text)
	if err != nil {
		log.Error().Err(err).Int("room_id", event.RoomID).Int("sender_id", client.UserID).
			Msg("message persist failed")
		observability.IncWSEvent("persist_error")
		client.Send(models.ChatEvent{Type: "error", RoomID: event.RoomID, Error: "failed to store message"})
		return
	}

	observability.IncWSEvent("chat_message")
	h.hub.Broadcast(msg.RoomID, models.ChatEvent{Type: "message", RoomID: msg.RoomID, Message: &msg})
	client.Send(models.ChatEvent{Type: "message_ack", RoomID: msg.RoomID, Message: &msg})

	if h.awarder != nil {
		h.awarder.AwardAsync(client.UserID, "send_message")
	}
}

func (h *Handler) validateToken(header string) (int, error) {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return middleware.ParseToken(h.secret, header[len(prefix):])
	}
	return 0, middleware.ErrInvalidToken
}

func (h *Handler) publishSessionEvent(ctx context.Context, client *Client, name, reason string) {
	payload := map[string]interface{}{
		"conn_id": client.ConnID,
		"user_id": client.UserID,
		"ip":      client.IP,
		"event":   name,
	}
	if client.DeviceID != "" {
		payload["device_id"] = client.DeviceID
	}
	if reason != "" {
		payload["reason"] = reason
	}
	_ = observability.PublishEvent(ctx, "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload:   payload,
	}, observability.BuildHeaders(client.RequestID, client.TraceID))
}
