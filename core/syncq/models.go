package syncq

import (
	"time"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/task"
)

// Actions a queued offline write may carry.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionStatus = "status"
	ActionDelete = "delete"
)

var AllActions = []string{ActionCreate, ActionUpdate, ActionStatus, ActionDelete}

// Op is a single write a client queued while offline.
// ClientRef is generated client-side and must be unique per user;
// it is what makes replaying the same queue twice harmless.
type Op struct {
	ClientRef string `json:"client_ref" validate:"required,max=100"`
	Action    string `json:"action" validate:"required,syncaction"`
	// TaskID is either a server task ID or the client_ref of an earlier
	// create op in the same batch (for tasks created while offline).
	TaskID   string    `json:"task_id" validate:"required_unless=Action create"`
	QueuedAt time.Time `json:"queued_at"`

	Create *task.NewTask      `json:"create,omitempty"`
	Update *task.UpdateTask   `json:"update,omitempty"`
	Status *task.ChangeStatus `json:"status,omitempty"`
}

func (op *Op) Validate() error {
	op.ClientRef = core.CleanString(op.ClientRef)
	op.Action = core.CleanString(op.Action, true /* lower */)
	return core.Validate.Struct(op)
}

// Batch is an ordered queue of offline writes replayed on reconnect.
type Batch struct {
	Ops []Op `json:"ops" validate:"required,min=1,max=500"`
}

func (b *Batch) Validate() error { return core.Validate.Struct(b) }

// Result statuses
const (
	ResultApplied = "applied"
	ResultSkipped = "skipped" // already applied in an earlier replay
	ResultFailed  = "failed"
)

// Result reports the outcome of replaying one Op.
type Result struct {
	ClientRef string `json:"client_ref"`
	Status    string `json:"status"`
	TaskID    string `json:"task_id,omitempty"`
	Error     string `json:"error,omitempty"`
}
