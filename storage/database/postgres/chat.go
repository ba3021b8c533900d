package postgresrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/kazihub/kazi/core/chat"
)

type chatRoomRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	IsTeam    bool      `db:"is_team"`
	CreatedBy string    `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *chatRoomRow) toRoom() chat.Room {
	return chat.Room{
		ID:        r.ID,
		Name:      r.Name,
		IsTeam:    r.IsTeam,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
	}
}

type chatMessageRow struct {
	ID         string    `db:"id"`
	RoomID     string    `db:"room_id"`
	SenderID   string    `db:"sender_id"`
	SenderName string    `db:"sender_name"`
	Body       string    `db:"body"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r *chatMessageRow) toMessage() chat.Message {
	return chat.Message{
		ID:         r.ID,
		RoomID:     r.RoomID,
		SenderID:   r.SenderID,
		SenderName: r.SenderName,
		Body:       r.Body,
		CreatedAt:  r.CreatedAt,
	}
}

type chatRepository struct {
	db *sqlx.DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *sqlx.DB) *chatRepository {
	return &chatRepository{db: db}
}

func (repo chatRepository) CreateRoom(ctx context.Context, room chat.Room) (chat.Room, error) {
	query, args, err := psql.Insert("chat_room").
		Columns("id", "name", "is_team", "created_by", "created_at").
		Values(room.ID, room.Name, room.IsTeam, room.CreatedBy, room.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return chat.Room{}, errors.Wrap(err, "building room insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return chat.Room{}, errors.Wrap(err, "inserting room")
	}
	return room, nil
}

func (repo chatRepository) QueryRooms(ctx context.Context) ([]chat.Room, error) {
	query, args, err := psql.Select("*").From("chat_room").OrderBy("created_at ASC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building rooms query")
	}
	var rows []chatRoomRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying rooms")
	}
	rooms := make([]chat.Room, 0, len(rows))
	for i := range rows {
		rooms = append(rooms, rows[i].toRoom())
	}
	return rooms, nil
}

func (repo chatRepository) GetRoomByID(ctx context.Context, id string) (chat.Room, error) {
	query, args, err := psql.Select("*").From("chat_room").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return chat.Room{}, errors.Wrap(err, "building room query")
	}
	var row chatRoomRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return chat.Room{}, chat.ErrRoomNotFound
		}
		return chat.Room{}, errors.Wrap(err, "finding room")
	}
	return row.toRoom(), nil
}

func (repo chatRepository) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	query, args, err := psql.Insert("chat_message").
		Columns("id", "room_id", "sender_id", "sender_name", "body", "created_at").
		Values(msg.ID, msg.RoomID, msg.SenderID, msg.SenderName, msg.Body, msg.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "building message insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return chat.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo chatRepository) QueryMessages(ctx context.Context, roomID string, filter chat.HistoryFilter) ([]chat.Message, error) {
	qb := psql.Select("*").From("chat_message").Where(sq.Eq{"room_id": roomID})
	if !filter.Before.IsZero() {
		qb = qb.Where(sq.Lt{"created_at": filter.Before.UTC()})
	}

	query, args, err := qb.OrderBy("created_at DESC").Limit(uint64(filter.Limit)).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building messages query")
	}

	var rows []chatMessageRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]chat.Message, 0, len(rows))
	for i := range rows {
		msgs = append(msgs, rows[i].toMessage())
	}
	return msgs, nil
}
