package chat

import (
	"time"

	"github.com/kazihub/kazi/core"
)

type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsTeam    bool      `json:"is_team"` // team-wide room, every active user is a member
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type Message struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

// NewRoom contains information needed to create a new Room.
type NewRoom struct {
	Name   string `json:"name" validate:"required"`
	IsTeam bool   `json:"is_team"`
}

func (nr *NewRoom) Validate() error {
	nr.Name = core.CleanString(nr.Name)
	return core.Validate.Struct(nr)
}

// NewMessage contains information needed to post a Message to a Room.
type NewMessage struct {
	Body string `json:"body" validate:"required,max=4000"`
}

func (nm *NewMessage) Validate() error {
	nm.Body = core.CleanString(nm.Body)
	return core.Validate.Struct(nm)
}

// HistoryFilter pages backwards through a room's messages.
type HistoryFilter struct {
	Before time.Time `query:"before"` // messages strictly older than this; zero means "now"
	Limit  int       `query:"limit"`
}

func (hf *HistoryFilter) Clean() {
	if hf.Limit <= 0 || hf.Limit > 200 {
		hf.Limit = 50
	}
}
