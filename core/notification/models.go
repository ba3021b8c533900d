package notification

import (
	"time"

	"github.com/kazihub/kazi/core"
)

// Urgent is an urgent notification addressed to a single user.
// Broadcasts fan out to one Urgent row per active user so each
// recipient acknowledges it independently.
type Urgent struct {
	ID             string     `json:"id"`
	SenderID       string     `json:"sender_id"`
	SenderName     string     `json:"sender_name"`
	RecipientID    string     `json:"recipient_id"`
	Broadcast      bool       `json:"broadcast"`
	Message        string     `json:"message"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"` // UTC
	CreatedAt      time.Time  `json:"created_at"`      // UTC
}

// NewUrgent contains information needed to send an urgent notification.
// Leaving RecipientID empty and setting Broadcast sends to the whole team.
type NewUrgent struct {
	RecipientID string `json:"recipient_id" validate:"required_without=Broadcast,omitempty,uuid4"`
	Broadcast   bool   `json:"broadcast"`
	Message     string `json:"message" validate:"required,max=1000"`
}

func (nu *NewUrgent) Validate() error {
	nu.Message = core.CleanString(nu.Message)
	nu.RecipientID = core.CleanString(nu.RecipientID, true /* lower */)
	return core.Validate.Struct(nu)
}

type QueryFilter struct {
	RecipientID  string `query:"-"`
	SenderID     string `query:"sender_id"`
	Acknowledged *bool  `query:"acknowledged"`
	Broadcast    *bool  `query:"broadcast"`
}
