package automation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// errors
	ErrRuleNotFound = errors.New("automation rule not found")
)

type (
	Repository interface {
		CreateRule(ctx context.Context, rule Rule) (Rule, error)
		// QueryRules returns rules ordered by descending threshold so the
		// strongest applicable rule is evaluated first.
		QueryRules(ctx context.Context, onlyActive bool) ([]Rule, error)
		GetRuleByID(ctx context.Context, id string) (Rule, error)
		UpdateRule(ctx context.Context, rule Rule) (Rule, error)
		DeleteRulesByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		Create(ctx context.Context, nr NewRule) (Rule, error)
		Query(ctx context.Context, onlyActive bool) ([]Rule, error)
		GetByID(ctx context.Context, id string) (Rule, error)
		Update(ctx context.Context, id string, ur UpdateRule) (Rule, error)
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nr NewRule) (Rule, error) {
	now := time.Now().UTC()
	rule := Rule{
		ID:           uuid.New().String(),
		Name:         nr.Name,
		FromStatus:   nr.FromStatus,
		Threshold:    nr.Threshold,
		Action:       nr.Action,
		TargetStatus: nr.TargetStatus,
		NotifyRoles:  nr.NotifyRoles,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if nr.IsActive != nil {
		rule.IsActive = *nr.IsActive
	}
	return svc.repo.CreateRule(ctx, rule)
}

func (svc *service) Query(ctx context.Context, onlyActive bool) ([]Rule, error) {
	return svc.repo.QueryRules(ctx, onlyActive)
}

func (svc *service) GetByID(ctx context.Context, id string) (Rule, error) {
	return svc.repo.GetRuleByID(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, ur UpdateRule) (Rule, error) {
	orig, err := svc.repo.GetRuleByID(ctx, id)
	if err != nil {
		return Rule{}, err
	}

	rule := orig
	rule.Name = ur.Name
	rule.UpdatedAt = time.Now().UTC()
	if ur.FromStatus != nil {
		rule.FromStatus = *ur.FromStatus
	}
	if ur.Threshold != nil {
		rule.Threshold = *ur.Threshold
	}
	if ur.Action != "" {
		rule.Action = ur.Action
	}
	if ur.TargetStatus != nil {
		rule.TargetStatus = *ur.TargetStatus
	}
	if ur.NotifyRoles != nil {
		rule.NotifyRoles = ur.NotifyRoles
	}
	if ur.IsActive != nil {
		rule.IsActive = *ur.IsActive
	}
	return svc.repo.UpdateRule(ctx, rule)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteRulesByID(ctx, ids...)
}

// DefaultLadder is the escalation ladder seeded on a fresh install:
// the longer a task sits untouched, the wider the alarm spreads.
func DefaultLadder() []Rule {
	now := time.Now().UTC()
	mk := func(name string, threshold time.Duration, action string, roles []string) Rule {
		return Rule{
			ID:          uuid.New().String(),
			Name:        name,
			Threshold:   threshold,
			Action:      action,
			NotifyRoles: roles,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return []Rule{
		mk("Nudge assignee", 2*time.Hour, ActionNotifyAssignee, nil),
		mk("Alert admins", 3*time.Hour, ActionNotifyRoles, []string{"admin:"}),
		mk("Broadcast to team", 4*time.Hour, ActionBroadcast, nil),
		mk("Reassign to least busy", 5*time.Hour, ActionReassign, nil),
	}
}
