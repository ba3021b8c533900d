package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/notification"
	"github.com/kazihub/kazi/core/task"
	"github.com/kazihub/kazi/core/user"
)

// systemSender appears as the author of engine-generated notifications.
var systemSender = user.User{Name: "Kazi Automation"}

// Engine evaluates the active escalation rules against stuck tasks.
// Rules are applied strongest first; each task remembers the highest
// level applied so a level never fires twice for the same stuck period.
// A failure on one task is logged and the scan moves on.
type Engine struct {
	svc      Service
	taskSvc  task.Service
	usrSvc   user.Service
	notifSvc notification.Service
	logger   core.Logger
}

func NewEngine(
	svc Service,
	taskSvc task.Service,
	usrSvc user.Service,
	notifSvc notification.Service,
	logger core.Logger,
) *Engine {
	return &Engine{
		svc:      svc,
		taskSvc:  taskSvc,
		usrSvc:   usrSvc,
		notifSvc: notifSvc,
		logger:   logger,
	}
}

// Run performs a single scan of all active rules.
func (e *Engine) Run(ctx context.Context) (RunSummary, error) {
	started := time.Now().UTC()
	summary := RunSummary{StartedAt: started}

	rules, err := e.svc.Query(ctx, true /* onlyActive */)
	if err != nil {
		return summary, errors.Wrap(err, "querying automation rules")
	}
	summary.Rules = len(rules)

	for _, rule := range rules {
		var statuses []string
		if rule.FromStatus != "" {
			statuses = []string{rule.FromStatus}
		}

		stale, err := e.taskSvc.FindStale(ctx, statuses, rule.Threshold, rule.Level())
		if err != nil {
			e.logger.Error(fmt.Sprintf("rule %q: finding stale tasks", rule.Name), err)
			summary.Failures++
			continue
		}
		summary.Scanned += len(stale)

		for _, tsk := range stale {
			if err := e.apply(ctx, rule, tsk, &summary); err != nil {
				// one bad task must not stop the scan
				e.logger.Error(fmt.Sprintf("rule %q: escalating task %s", rule.Name, tsk.ID), err)
				summary.Failures++
				continue
			}
			if err := e.taskSvc.MarkEscalated(ctx, tsk.ID, rule.Level()); err != nil {
				e.logger.Error(fmt.Sprintf("rule %q: marking task %s escalated", rule.Name, tsk.ID), err)
				summary.Failures++
			}
		}
	}

	summary.Duration = time.Since(started)
	return summary, nil
}

func (e *Engine) apply(ctx context.Context, rule Rule, tsk task.Task, summary *RunSummary) error {
	idle := tsk.IdleFor(time.Now().UTC()).Round(time.Minute)
	msg := fmt.Sprintf("Task %q has been stuck in %q for %s", tsk.Title, tsk.Status, idle)

	switch rule.Action {
	case ActionNotifyAssignee:
		if tsk.AssigneeID == "" {
			return nil // nobody to nudge
		}
		if _, err := e.notifSvc.Send(ctx, systemSender, notification.NewUrgent{
			RecipientID: tsk.AssigneeID,
			Message:     msg,
		}); err != nil {
			return errors.Wrap(err, "notifying assignee")
		}
		summary.Notified++

	case ActionNotifyRoles:
		recipients, err := e.usersWithRoles(ctx, rule.NotifyRoles)
		if err != nil {
			return err
		}
		for _, rcpt := range recipients {
			if _, err := e.notifSvc.Send(ctx, systemSender, notification.NewUrgent{
				RecipientID: rcpt.ID,
				Message:     msg,
			}); err != nil {
				return errors.Wrap(err, "notifying "+rcpt.Username)
			}
			summary.Notified++
		}

	case ActionBroadcast:
		if _, err := e.notifSvc.Send(ctx, systemSender, notification.NewUrgent{
			Broadcast: true,
			Message:   msg,
		}); err != nil {
			return errors.Wrap(err, "broadcasting")
		}
		summary.Notified++

	case ActionReassign:
		assignee, err := e.leastBusy(ctx, rule.NotifyRoles, tsk.AssigneeID)
		if err != nil {
			return err
		}
		if assignee.ID == "" {
			return nil // nobody eligible
		}
		if _, err := e.taskSvc.Assign(ctx, tsk.ID, assignee.ID); err != nil {
			return errors.Wrap(err, "reassigning")
		}
		if _, err := e.notifSvc.Send(ctx, systemSender, notification.NewUrgent{
			RecipientID: assignee.ID,
			Message:     fmt.Sprintf("Task %q was reassigned to you after sitting in %q for %s", tsk.Title, tsk.Status, idle),
		}); err != nil {
			return errors.Wrap(err, "notifying new assignee")
		}
		summary.Reassigned++

	default:
		return errors.Errorf("unknown action %q", rule.Action)
	}

	if rule.TargetStatus != "" && rule.TargetStatus != tsk.Status {
		if _, err := e.taskSvc.ChangeStatus(ctx, tsk.ID, rule.TargetStatus); err != nil {
			return errors.Wrap(err, "moving task to "+rule.TargetStatus)
		}
		summary.Moved++
	}
	return nil
}

func (e *Engine) usersWithRoles(ctx context.Context, roles []string) ([]user.User, error) {
	if len(roles) == 0 {
		roles = []string{user.RoleAdmin}
	}
	active := true
	users, err := e.usrSvc.Query(ctx, &user.QueryFilter{Roles: roles, IsActive: &active}, nil)
	return users, errors.Wrap(err, "querying users by role")
}

// leastBusy picks the active user with the fewest open tasks among those
// holding one of the given roles (all non-admin staff when empty),
// excluding the current assignee.
func (e *Engine) leastBusy(ctx context.Context, roles []string, excludeID string) (user.User, error) {
	if len(roles) == 0 {
		roles = []string{user.RoleEstimation, user.RoleOperations, user.RoleDesigner}
	}
	candidates, err := e.usersWithRoles(ctx, roles)
	if err != nil {
		return user.User{}, err
	}

	counts, err := e.taskSvc.CountOpenByAssignee(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "counting open tasks")
	}

	var best user.User
	bestCount := -1
	for _, cand := range candidates {
		if cand.ID == excludeID {
			continue
		}
		if n := counts[cand.ID]; bestCount < 0 || n < bestCount {
			best = cand
			bestCount = n
		}
	}
	return best, nil
}
