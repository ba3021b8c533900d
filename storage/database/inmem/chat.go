package inmemdb

import (
	"context"
	"sort"

	"github.com/kazihub/kazi/core/chat"
)

type chatRepository struct {
	rooms *roomTable
	msgs  *messageTable
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *DB) *chatRepository {
	return &chatRepository{rooms: db.room, msgs: db.message}
}

func (repo *chatRepository) CreateRoom(ctx context.Context, room chat.Room) (chat.Room, error) {
	repo.rooms.Lock()
	defer repo.rooms.Unlock()
	repo.rooms.table[room.ID] = &room
	return room, nil
}

func (repo *chatRepository) QueryRooms(ctx context.Context) ([]chat.Room, error) {
	repo.rooms.RLock()
	defer repo.rooms.RUnlock()

	rooms := make([]chat.Room, 0, len(repo.rooms.table))
	for _, r := range repo.rooms.table {
		rooms = append(rooms, *r)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })
	return rooms, nil
}

func (repo *chatRepository) GetRoomByID(ctx context.Context, id string) (chat.Room, error) {
	repo.rooms.RLock()
	defer repo.rooms.RUnlock()

	if room, ok := repo.rooms.table[id]; ok {
		return *room, nil
	}
	return chat.Room{}, chat.ErrRoomNotFound
}

func (repo *chatRepository) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	repo.msgs.Lock()
	defer repo.msgs.Unlock()
	repo.msgs.table[msg.ID] = &msg
	return msg, nil
}

func (repo *chatRepository) QueryMessages(ctx context.Context, roomID string, filter chat.HistoryFilter) ([]chat.Message, error) {
	repo.msgs.RLock()
	defer repo.msgs.RUnlock()

	var msgs []chat.Message
	for _, m := range repo.msgs.table {
		if m.RoomID != roomID {
			continue
		}
		if !filter.Before.IsZero() && !m.CreatedAt.Before(filter.Before.UTC()) {
			continue
		}
		msgs = append(msgs, *m)
	}

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })
	if filter.Limit > 0 && len(msgs) > filter.Limit {
		msgs = msgs[:filter.Limit]
	}
	return msgs, nil
}
