package chat

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kazihub/kazi/core"
)

var (
	// errors
	ErrRoomNotFound = errors.New("room not found")
)

// RoomSubject returns the broker subject a room's live messages are published on.
func RoomSubject(roomID string) string {
	return "chat.room." + roomID
}

type (
	Repository interface {
		CreateRoom(ctx context.Context, room Room) (Room, error)
		QueryRooms(ctx context.Context) ([]Room, error)
		GetRoomByID(ctx context.Context, id string) (Room, error)
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// QueryMessages returns a room's messages older than filter.Before,
		// newest first, at most filter.Limit of them.
		QueryMessages(ctx context.Context, roomID string, filter HistoryFilter) ([]Message, error)
	}

	Service interface {
		CreateRoom(ctx context.Context, nr NewRoom, createdBy string) (Room, error)
		QueryRooms(ctx context.Context) ([]Room, error)
		GetRoom(ctx context.Context, id string) (Room, error)
		PostMessage(ctx context.Context, roomID, senderID, senderName string, nm NewMessage) (Message, error)
		History(ctx context.Context, roomID string, filter HistoryFilter) ([]Message, error)
	}

	service struct {
		repo   Repository
		broker core.Broker
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, broker core.Broker, logger core.Logger) Service {
	return &service{
		repo:   repo,
		broker: broker,
		logger: logger,
	}
}

func (svc *service) CreateRoom(ctx context.Context, nr NewRoom, createdBy string) (Room, error) {
	room := Room{
		ID:        uuid.New().String(),
		Name:      nr.Name,
		IsTeam:    nr.IsTeam,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateRoom(ctx, room)
}

func (svc *service) QueryRooms(ctx context.Context) ([]Room, error) {
	return svc.repo.QueryRooms(ctx)
}

func (svc *service) GetRoom(ctx context.Context, id string) (Room, error) {
	return svc.repo.GetRoomByID(ctx, id)
}

func (svc *service) PostMessage(ctx context.Context, roomID, senderID, senderName string, nm NewMessage) (Message, error) {
	if _, err := svc.repo.GetRoomByID(ctx, roomID); err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:         uuid.New().String(),
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       nm.Body,
		CreatedAt:  time.Now().UTC(),
	}
	msg, err := svc.repo.CreateMessage(ctx, msg)
	if err != nil {
		return Message{}, err
	}

	if svc.broker != nil {
		if data, err := json.Marshal(msg); err != nil {
			svc.logger.Error("marshalling chat message", err)
		} else if err := svc.broker.Publish(RoomSubject(roomID), data); err != nil {
			svc.logger.Error("publishing chat message", err)
		}
	}
	return msg, nil
}

func (svc *service) History(ctx context.Context, roomID string, filter HistoryFilter) ([]Message, error) {
	filter.Clean()
	if _, err := svc.repo.GetRoomByID(ctx, roomID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMessages(ctx, roomID, filter)
}
