package presence

import (
	"time"

	"github.com/kazihub/kazi/core"
)

// Statuses
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusOffline = "offline"
)

var AllStatuses = []string{StatusOnline, StatusAway, StatusOffline}

// Presence is a user's last known state and position.
// Coordinates are optional; desk staff report no position.
type Presence struct {
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	Latitude   *float64  `json:"latitude"`
	Longitude  *float64  `json:"longitude"`
	Accuracy   *float64  `json:"accuracy"`    // meters
	RecordedAt time.Time `json:"recorded_at"` // UTC; when the position was last accepted
	LastSeen   time.Time `json:"last_seen"`   // UTC; bumped on every beat, throttled or not
}

func (p *Presence) HasPosition() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// IsOnline reports whether the user was seen within the cutoff.
func (p *Presence) IsOnline(now time.Time, cutoff time.Duration) bool {
	return p.Status != StatusOffline && now.Sub(p.LastSeen) <= cutoff
}

// Heartbeat is a single beat from a client.
type Heartbeat struct {
	Status    string   `json:"status" validate:"required,presencestatus"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
	Accuracy  *float64 `json:"accuracy" validate:"omitempty,gte=0"`
}

func (hb *Heartbeat) Validate() error {
	hb.Status = core.CleanString(hb.Status, true /* lower */)
	return core.Validate.Struct(hb)
}
