package models

import "time"

// Room is a named broadcast group for chat messages.
type Room struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Message is a persisted chat message. LastMessageID links it to the previous
// message of the same room, forming a backward singly linked history keyed by
// insertion order. LastMessageDate is a denormalized copy of that message's
// timestamp so "time since last message" queries need no self-join.
type Message struct {
	ID              int        `db:"id" json:"id"`
	RoomID          int        `db:"room_id" json:"room_id"`
	SenderID        int        `db:"sender_id" json:"sender_id"`
	ReceiverID      *int       `db:"receiver_id" json:"receiver_id,omitempty"`
	Text            string     `db:"text" json:"text"`
	IsRead          bool       `db:"is_read" json:"is_read"`
	LastMessageID   *int       `db:"last_message_id" json:"last_message_id,omitempty"`
	LastMessageDate *time.Time `db:"last_message_date" json:"last_message_date,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// ChatEvent is the envelope written to websocket clients.
type ChatEvent struct {
	Type    string   `json:"type"`
	RoomID  int      `json:"room_id,omitempty"`
	UserID  int      `json:"user_id,omitempty"`
	Message *Message `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ClientEvent is the envelope read from websocket clients.
type ClientEvent struct {
	Type       string `json:"type"`
	RoomID     int    `json:"room_id"`
	ReceiverID *int   `json:"receiver_id,omitempty"`
	Text       string `json:"text"`
}
