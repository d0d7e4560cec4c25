package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"engagement-service/internal/models"
	"engagement-service/internal/repositories"
	"engagement-service/internal/ws"
)

// ChatHandler manages chat rooms and the HTTP message path.
type ChatHandler struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	hub      *ws.Hub
	registry *ws.Registry
	awarder  ws.Awarder
}

// NewChatHandler builds a ChatHandler. awarder may be nil.
func NewChatHandler(rooms repositories.RoomRepository, messages repositories.MessageRepository, hub *ws.Hub, registry *ws.Registry, awarder ws.Awarder) *ChatHandler {
	return &ChatHandler{
		rooms:    rooms,
		messages: messages,
		hub:      hub,
		registry: registry,
		awarder:  awarder,
	}
}

// CreateRoom creates a chat room.
func (h *ChatHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room name is required"})
		return
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"room": room})
}

// GetRoomMessages returns a room's history, oldest first.
func (h *ChatHandler) GetRoomMessages(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	if _, err := h.rooms.GetRoom(c.Request.Context(), roomID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "room not found"})
		return
	}

	msgs, err := h.messages.ListRoomMessages(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage persists a message and broadcasts it to the room's subscribers.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	var req struct {
		Text       string `json:"text" binding:"required"`
		ReceiverID *int   `json:"receiver_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	userID := c.GetInt("userID")
	if _, err := h.rooms.GetRoom(c.Request.Context(), roomID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "room not found"})
		return
	}

	msg, err := h.messages.CreateMessage(c.Request.Context(), roomID, userID, req.ReceiverID, req.Text)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.hub.Broadcast(roomID, models.ChatEvent{Type: "message", RoomID: roomID, Message: &msg})

	if h.awarder != nil {
		h.awarder.AwardAsync(userID, "send_message")
	}

	c.JSON(http.StatusCreated, msg)
}

// JoinRoom subscribes the caller's live session to a room. A user without a
// registered session cannot join.
func (h *ChatHandler) JoinRoom(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	client, connected := h.registry.Lookup(userID)
	if !connected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user not connected"})
		return
	}

	if _, err := h.rooms.GetRoom(c.Request.Context(), roomID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "room not found"})
		return
	}

	h.hub.Join(roomID, client)

	// ack only the joining socket, then announce to the room
	client.Send(models.ChatEvent{Type: "room_joined", RoomID: roomID, UserID: userID})
	h.hub.Broadcast(roomID, models.ChatEvent{Type: "user_joined", RoomID: roomID, UserID: userID})

	c.JSON(http.StatusOK, gin.H{"joined": true, "room_id": roomID})
}

// LeaveRoom unsubscribes the caller's session from a room. Leaving without a
// live session, or a room never joined, is a no-op.
func (h *ChatHandler) LeaveRoom(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if client, connected := h.registry.Lookup(userID); connected {
		h.hub.Leave(roomID, client)
	}

	c.JSON(http.StatusOK, gin.H{"left": true, "room_id": roomID})
}

// GetMessage returns a single message by id.
func (h *ChatHandler) GetMessage(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	msg, err := h.messages.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// MarkMessageRead flags a message as read.
func (h *ChatHandler) MarkMessageRead(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	msg, err := h.messages.MarkRead(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// GetUnreadMessages lists unread messages addressed to the caller.
func (h *ChatHandler) GetUnreadMessages(c *gin.Context) {
	userID := c.GetInt("userID")

	msgs, err := h.messages.UnreadForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unread messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func parseRoomID(c *gin.Context) (int, bool) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return 0, false
	}
	return roomID, true
}
