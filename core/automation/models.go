package automation

import (
	"time"

	"github.com/kazihub/kazi/core"
)

// Actions
const (
	ActionNotifyAssignee = "notify_assignee"
	ActionNotifyRoles    = "notify_roles"
	ActionBroadcast      = "broadcast"
	ActionReassign       = "reassign"
)

var AllActions = []string{ActionNotifyAssignee, ActionNotifyRoles, ActionBroadcast, ActionReassign}

// Rule escalates tasks stuck in FromStatus for at least Threshold.
// The Threshold in whole hours doubles as the rule's level: a task
// remembers the highest level applied to it so a rule never fires twice
// for the same stuck period, and a stronger rule shadows weaker ones.
type Rule struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	FromStatus   string        `json:"from_status"` // empty means any open status
	Threshold    time.Duration `json:"threshold"`
	Action       string        `json:"action"`
	TargetStatus string        `json:"target_status"` // optional status move applied with the action
	NotifyRoles  []string      `json:"notify_roles"`  // recipients for notify_roles, eligibility for reassign
	IsActive     bool          `json:"is_active"`
	CreatedAt    time.Time     `json:"created_at"` // UTC
	UpdatedAt    time.Time     `json:"updated_at"` // UTC
}

// Level is the rule's escalation level, its threshold in whole hours.
func (r *Rule) Level() int {
	return int(r.Threshold / time.Hour)
}

// NewRule contains information needed to create a new Rule.
type NewRule struct {
	Name         string        `json:"name" validate:"required"`
	FromStatus   string        `json:"from_status" validate:"omitempty,taskstatus"`
	Threshold    time.Duration `json:"threshold" validate:"required,min=3600000000000"` // >= 1h
	Action       string        `json:"action" validate:"required,automationaction"`
	TargetStatus string        `json:"target_status" validate:"omitempty,taskstatus"`
	NotifyRoles  []string      `json:"notify_roles" validate:"omitempty,allroles"`
	IsActive     *bool         `json:"is_active"`
}

func (nr *NewRule) Validate() error {
	nr.Name = core.CleanString(nr.Name)
	nr.FromStatus = core.CleanString(nr.FromStatus, true /* lower */)
	nr.Action = core.CleanString(nr.Action, true /* lower */)
	nr.TargetStatus = core.CleanString(nr.TargetStatus, true /* lower */)
	return core.Validate.Struct(nr)
}

// UpdateRule defines what information may be provided to modify an existing Rule.
type UpdateRule struct {
	Name         string         `json:"name"`
	FromStatus   *string        `json:"from_status" validate:"omitempty,taskstatus"`
	Threshold    *time.Duration `json:"threshold" validate:"omitempty,min=3600000000000"`
	Action       string         `json:"action" validate:"omitempty,automationaction"`
	TargetStatus *string        `json:"target_status"`
	NotifyRoles  []string       `json:"notify_roles" validate:"omitempty,allroles"`
	IsActive     *bool          `json:"is_active"`
}

func (ur *UpdateRule) Validate(orig Rule) error {
	name := core.CleanString(ur.Name)
	if name != "" {
		ur.Name = name
	} else {
		ur.Name = orig.Name
	}
	ur.Action = core.CleanString(ur.Action, true /* lower */)
	return core.Validate.Struct(ur)
}

// RunSummary reports what a single engine run did.
type RunSummary struct {
	StartedAt  time.Time     `json:"started_at"` // UTC
	Duration   time.Duration `json:"duration"`
	Rules      int           `json:"rules"`
	Scanned    int           `json:"scanned"`
	Notified   int           `json:"notified"`
	Reassigned int           `json:"reassigned"`
	Moved      int           `json:"moved"`
	Failures   int           `json:"failures"`
}
