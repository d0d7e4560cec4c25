package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"engagement-service/internal/models"
	"engagement-service/internal/observability"
)

// Hub maintains room membership and fans events out to room subscribers.
type Hub struct {
	mu    sync.RWMutex
	rooms map[int]map[*Client]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[int]map[*Client]bool)}
}

// Join subscribes a client to a room. Rejoining is idempotent.
func (h *Hub) Join(roomID int, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
}

// Leave unsubscribes a client from a room; empty rooms are pruned. Leaving a
// room the client is not in is a no-op.
func (h *Hub) Leave(roomID int, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// LeaveAll removes the client from every room, used on disconnect.
func (h *Hub) LeaveAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID, members := range h.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// InRoom reports whether the client is subscribed to the room.
func (h *Hub) InRoom(roomID int, client *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID][client]
}

// Broadcast sends an event to every client subscribed to the room, and only
// to them. Members whose write fails are closed and dropped.
func (h *Hub) Broadcast(roomID int, event models.ChatEvent) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[roomID]))
	for client := range h.rooms[roomID] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Int("room_id", roomID).Msg("broadcast marshal failed")
		return
	}

	for _, client := range members {
		if err := client.write(payload); err != nil {
			log.Warn().Err(err).Str("conn_id", client.ConnID).Msg("websocket write failed")
			client.Close()
			h.LeaveAll(client)
			observability.IncWSEvent("ws_error")
		}
	}
}
