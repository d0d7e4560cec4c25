package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"engagement-service/internal/models"
	"engagement-service/internal/repositories"
)

type ActionRepositoryMock struct {
	mock.Mock
}

func (m *ActionRepositoryMock) GetAction(ctx context.Context, actionID string) (models.Action, error) {
	args := m.Called(ctx, actionID)
	var action models.Action
	if val := args.Get(0); val != nil {
		action = val.(models.Action)
	}
	return action, args.Error(1)
}

type PointsRepositoryMock struct {
	mock.Mock
}

func (m *PointsRepositoryMock) LastAward(ctx context.Context, userID int, actionID string) (models.PointAward, error) {
	args := m.Called(ctx, userID, actionID)
	var award models.PointAward
	if val := args.Get(0); val != nil {
		award = val.(models.PointAward)
	}
	return award, args.Error(1)
}

func (m *PointsRepositoryMock) InsertAward(ctx context.Context, userID int, actionID string, points int, throttle time.Duration) (models.PointAward, error) {
	args := m.Called(ctx, userID, actionID, points, throttle)
	var award models.PointAward
	if val := args.Get(0); val != nil {
		award = val.(models.PointAward)
	}
	return award, args.Error(1)
}

func (m *PointsRepositoryMock) TotalPoints(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *PointsRepositoryMock) History(ctx context.Context, userID int, limit int, offset int) ([]models.PointsHistoryEntry, error) {
	args := m.Called(ctx, userID, limit, offset)
	var entries []models.PointsHistoryEntry
	if val := args.Get(0); val != nil {
		entries = val.([]models.PointsHistoryEntry)
	}
	return entries, args.Error(1)
}

func (m *PointsRepositoryMock) CountAwards(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) CreateRoom(ctx context.Context, name string) (models.Room, error) {
	args := m.Called(ctx, name)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID int) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, roomID int, senderID int, receiverID *int, text string) (models.Message, error) {
	args := m.Called(ctx, roomID, senderID, receiverID, text)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListRoomMessages(ctx context.Context, roomID int) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) UnreadForUser(ctx context.Context, userID int) ([]models.Message, error) {
	args := m.Called(ctx, userID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

var _ repositories.ActionRepository = (*ActionRepositoryMock)(nil)
var _ repositories.PointsRepository = (*PointsRepositoryMock)(nil)
var _ repositories.RoomRepository = (*RoomRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
