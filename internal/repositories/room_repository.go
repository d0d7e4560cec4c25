package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"engagement-service/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomRepository abstracts chat room persistence.
type RoomRepository interface {
	CreateRoom(ctx context.Context, name string) (models.Room, error)
	GetRoom(ctx context.Context, roomID int) (models.Room, error)
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// CreateRoom inserts a new chat room.
func (r *RoomRepo) CreateRoom(ctx context.Context, name string) (models.Room, error) {
	var room models.Room
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO chat_rooms (name) VALUES ($1) RETURNING id, name, created_at`, name).
		Scan(&room.ID, &room.Name, &room.CreatedAt)
	return room, err
}

// GetRoom fetches a room by id.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID int) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room,
		`SELECT id, name, created_at FROM chat_rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}
