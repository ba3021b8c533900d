package task

import (
	"context"
	"time"

	"github.com/kazihub/kazi/core"
)

// Statuses. A task starts its life as an RFQ in the estimation pipeline
// and moves to production once the client approves the quote.
const (
	StatusRFQ          = "rfq"
	StatusEstimating   = "estimating"
	StatusQuoteSent    = "quote_sent"
	StatusApproved     = "approved"
	StatusInDesign     = "in_design"
	StatusInProduction = "in_production"
	StatusReview       = "review"
	StatusDone         = "done"
	StatusOnHold       = "on_hold"
	StatusCancelled    = "cancelled"
)

// Priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var (
	AllStatuses = []string{
		StatusRFQ, StatusEstimating, StatusQuoteSent, StatusApproved,
		StatusInDesign, StatusInProduction, StatusReview, StatusDone,
		StatusOnHold, StatusCancelled,
	}

	// OpenStatuses are the statuses a task can still progress from.
	OpenStatuses = []string{
		StatusRFQ, StatusEstimating, StatusQuoteSent, StatusApproved,
		StatusInDesign, StatusInProduction, StatusReview, StatusOnHold,
	}

	AllPriorities = []string{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

	// statusTransitions maps a status to the statuses reachable from it.
	statusTransitions = map[string][]string{
		StatusRFQ:          {StatusEstimating, StatusOnHold, StatusCancelled},
		StatusEstimating:   {StatusQuoteSent, StatusOnHold, StatusCancelled},
		StatusQuoteSent:    {StatusApproved, StatusEstimating, StatusOnHold, StatusCancelled},
		StatusApproved:     {StatusInDesign, StatusOnHold, StatusCancelled},
		StatusInDesign:     {StatusInProduction, StatusOnHold, StatusCancelled},
		StatusInProduction: {StatusReview, StatusOnHold, StatusCancelled},
		StatusReview:       {StatusDone, StatusInDesign, StatusInProduction, StatusCancelled},
		// a held task may resume anywhere in the open pipeline
		StatusOnHold: {
			StatusRFQ, StatusEstimating, StatusQuoteSent, StatusApproved,
			StatusInDesign, StatusInProduction, StatusReview, StatusCancelled,
		},
	}
)

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsOpenStatus reports whether tasks in this status can still progress.
func IsOpenStatus(status string) bool {
	for _, s := range OpenStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Client      string `json:"client"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	AssigneeID  string `json:"assignee_id"`
	CreatedBy   string `json:"created_by"`
	// EscalatedLevel is the highest escalation rule level applied since the
	// last status change; it resets to 0 whenever the status moves.
	EscalatedLevel  int        `json:"escalated_level"`
	StatusChangedAt time.Time  `json:"status_changed_at"` // UTC
	DueAt           time.Time  `json:"due_at"`            // UTC; zero when unset
	CreatedAt       time.Time  `json:"created_at"`        // UTC
	UpdatedAt       time.Time  `json:"updated_at"`        // UTC
	DeletedAt       *time.Time `json:"deleted_at"`        // UTC; soft-delete marker
}

func (t *Task) IsDeleted() bool { return t.DeletedAt != nil }
func (t *Task) IsOpen() bool    { return IsOpenStatus(t.Status) }

// IdleFor returns how long the task has sat in its current status.
func (t *Task) IdleFor(now time.Time) time.Duration {
	if t.StatusChangedAt.IsZero() {
		return 0
	}
	return now.Sub(t.StatusChangedAt)
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Client      string    `json:"client"`
	Priority    string    `json:"priority" validate:"omitempty,taskpriority"`
	AssigneeID  string    `json:"assignee_id" validate:"omitempty,uuid4"`
	DueAt       time.Time `json:"due_at"`
}

func (nt *NewTask) Validate() error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.Client = core.CleanString(nt.Client)
	if nt.Priority == "" {
		nt.Priority = PriorityNormal
	}
	return core.Validate.Struct(nt)
}

// UpdateTask defines what information may be provided to modify an existing Task.
// Status changes go through ChangeStatus, not here.
type UpdateTask struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Client      *string    `json:"client"`
	Priority    string     `json:"priority" validate:"omitempty,taskpriority"`
	AssigneeID  *string    `json:"assignee_id"`
	DueAt       *time.Time `json:"due_at"`
}

func (ut *UpdateTask) Validate(orig Task) error {
	title := core.CleanString(ut.Title)
	if title != "" {
		ut.Title = title
	} else {
		ut.Title = orig.Title
	}
	return core.Validate.Struct(ut)
}

type ChangeStatus struct {
	Status string `json:"status" validate:"required,taskstatus"`
}

func (cs *ChangeStatus) Validate() error {
	cs.Status = core.CleanString(cs.Status, true /* lower */)
	return core.Validate.Struct(cs)
}

type AssignTask struct {
	AssigneeID string `json:"assignee_id" validate:"required,uuid4"`
}

func (at *AssignTask) Validate(ctx context.Context) error {
	at.AssigneeID = core.CleanString(at.AssigneeID, true /* lower */)
	return core.Validate.Struct(at)
}

type QueryFilter struct {
	Search     string   `query:"search"`
	Status     []string `query:"status"`
	Priority   []string `query:"priority"`
	AssigneeID string   `query:"assignee_id"`
	Client     string   `query:"client"`

	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
	DueFrom     time.Time `query:"due_from"`
	DueTo       time.Time `query:"due_to"`

	// staleness scan (not bound from query params)
	StatusChangedBefore time.Time `query:"-"`
	EscalatedBelow      *int      `query:"-"`

	IncludeDeleted bool `query:"include_deleted"`
	OnlyDeleted    bool `query:"only_deleted"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Client = core.CleanString(qf.Client)
}
