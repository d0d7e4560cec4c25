package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"engagement-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, roomID int, senderID int, receiverID *int, text string) (models.Message, error)
	ListRoomMessages(ctx context.Context, roomID int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	MarkRead(ctx context.Context, messageID int) (models.Message, error)
	UnreadForUser(ctx context.Context, userID int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// advisory lock namespace for per-room message chaining.
const messagesLockNamespace = 2

const messageColumns = `id, room_id, sender_id, receiver_id, text, is_read,
        last_message_id, last_message_date, created_at`

// CreateMessage stores a message with a server-assigned timestamp, chained to
// the room's previous message. The predecessor read and the insert share a
// transaction under a per-room advisory lock, so the chain always reflects the
// commit order of the store, with exactly one head per room.
func (r *MessageRepo) CreateMessage(ctx context.Context, roomID int, senderID int, receiverID *int, text string) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, fmt.Errorf("begin message tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock($1, $2)`, messagesLockNamespace, roomID); err != nil {
		return models.Message{}, fmt.Errorf("acquire room lock: %w", err)
	}

	var prev models.Message
	err = tx.GetContext(ctx, &prev,
		`SELECT `+messageColumns+` FROM messages WHERE room_id=$1 ORDER BY id DESC LIMIT 1`, roomID)
	var lastID *int
	var lastDate *time.Time
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// first message in the room, chain head
	case err != nil:
		return models.Message{}, fmt.Errorf("read previous message: %w", err)
	default:
		lastID = &prev.ID
		lastDate = &prev.CreatedAt
	}

	var msg models.Message
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (room_id, sender_id, receiver_id, text, last_message_id, last_message_date)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING `+messageColumns,
		roomID, senderID, receiverID, text, lastID, lastDate).
		StructScan(&msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, fmt.Errorf("commit message tx: %w", err)
	}
	return msg, nil
}

// ListRoomMessages returns a room's messages oldest first.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE room_id=$1 ORDER BY id ASC`, roomID)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkRead flags a message as read and returns the updated row.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET is_read = TRUE WHERE id=$1 RETURNING `+messageColumns, messageID).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// UnreadForUser lists unread messages addressed to a user, oldest first.
func (r *MessageRepo) UnreadForUser(ctx context.Context, userID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages
         WHERE receiver_id=$1 AND is_read = FALSE
         ORDER BY created_at ASC`, userID)
	return msgs, err
}
