package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kazihub/kazi/core"
)

var (
	// errors
	ErrNotFound          = errors.New("task not found")
	ErrDeleted           = errors.New("task has been deleted")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type (
	Repository interface {
		CreateTask(ctx context.Context, tsk Task) (Task, error)
		// QueryTasks applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// Task.Title, Task.Description or Task.Client. Soft-deleted tasks
		// are excluded unless IncludeDeleted or OnlyDeleted is set.
		QueryTasks(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Task, error)
		GetTaskByID(ctx context.Context, id string) (Task, error)
		UpdateTask(ctx context.Context, tsk Task) (Task, error)
		// SetTaskStatus stamps StatusChangedAt and resets EscalatedLevel.
		SetTaskStatus(ctx context.Context, id, status string, at time.Time) (Task, error)
		SetTaskEscalatedLevel(ctx context.Context, id string, level int) error
		SetTaskDeletedAt(ctx context.Context, id string, deletedAt *time.Time) error
		DeleteTasksByID(ctx context.Context, ids ...string) error
		// CountOpenTasksByAssignee returns open (non-deleted) task counts keyed by assignee ID.
		CountOpenTasksByAssignee(ctx context.Context) (map[string]int, error)
	}

	Service interface {
		Create(ctx context.Context, nt NewTask, createdBy string) (Task, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Task, error)
		GetByID(ctx context.Context, id string) (Task, error)
		Update(ctx context.Context, id string, ut UpdateTask) (Task, error)
		ChangeStatus(ctx context.Context, id, status string) (Task, error)
		Assign(ctx context.Context, id, assigneeID string) (Task, error)
		SoftDelete(ctx context.Context, ids ...string) error
		Restore(ctx context.Context, id string) (Task, error)
		Delete(ctx context.Context, ids ...string) error
		// FindStale returns open tasks sitting in one of `statuses` for at least
		// `idleFor`, whose escalated level is below `level`.
		FindStale(ctx context.Context, statuses []string, idleFor time.Duration, level int) ([]Task, error)
		MarkEscalated(ctx context.Context, id string, level int) error
		CountOpenByAssignee(ctx context.Context) (map[string]int, error)
	}

	service struct {
		repo   Repository
		broker core.Broker
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, broker core.Broker, logger core.Logger) Service {
	return &service{
		repo:   repo,
		broker: broker,
		logger: logger,
	}
}

func (svc *service) Create(ctx context.Context, nt NewTask, createdBy string) (Task, error) {
	now := time.Now().UTC()
	tsk := Task{
		ID:              uuid.New().String(),
		Title:           nt.Title,
		Description:     nt.Description,
		Client:          nt.Client,
		Status:          StatusRFQ,
		Priority:        nt.Priority,
		AssigneeID:      nt.AssigneeID,
		CreatedBy:       createdBy,
		StatusChangedAt: now,
		DueAt:           nt.DueAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tsk, err := svc.repo.CreateTask(ctx, tsk)
	if err != nil {
		return Task{}, err
	}
	svc.publish("tasks.created", tsk)
	return tsk, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Task, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryTasks(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Task, error) {
	return svc.repo.GetTaskByID(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, ut UpdateTask) (Task, error) {
	tsk := Task{
		ID:        id,
		Title:     ut.Title,
		Priority:  ut.Priority,
		UpdatedAt: time.Now().UTC(),
	}
	if ut.Description != nil {
		tsk.Description = *ut.Description
	}
	if ut.Client != nil {
		tsk.Client = *ut.Client
	}
	if ut.AssigneeID != nil {
		tsk.AssigneeID = *ut.AssigneeID
	}
	if ut.DueAt != nil {
		tsk.DueAt = *ut.DueAt
	}

	tsk, err := svc.repo.UpdateTask(ctx, tsk)
	if err != nil {
		return Task{}, err
	}
	svc.publish("tasks.updated", tsk)
	return tsk, nil
}

func (svc *service) ChangeStatus(ctx context.Context, id, status string) (Task, error) {
	tsk, err := svc.repo.GetTaskByID(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if tsk.IsDeleted() {
		return Task{}, ErrDeleted
	}
	if !CanTransition(tsk.Status, status) {
		return Task{}, core.NewValidationError(
			ErrInvalidTransition,
			core.FieldError{Field: "status", Error: fmt.Sprintf("cannot move task from %q to %q", tsk.Status, status)},
		)
	}

	tsk, err = svc.repo.SetTaskStatus(ctx, id, status, time.Now().UTC())
	if err != nil {
		return Task{}, err
	}
	svc.publish("tasks.status", tsk)
	return tsk, nil
}

func (svc *service) Assign(ctx context.Context, id, assigneeID string) (Task, error) {
	tsk, err := svc.repo.UpdateTask(ctx, Task{ID: id, AssigneeID: assigneeID, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return Task{}, err
	}
	svc.publish("tasks.assigned", tsk)
	return tsk, nil
}

func (svc *service) SoftDelete(ctx context.Context, ids ...string) error {
	now := time.Now().UTC()
	for _, id := range ids {
		if err := svc.repo.SetTaskDeletedAt(ctx, id, &now); err != nil {
			return err
		}
	}
	return nil
}

func (svc *service) Restore(ctx context.Context, id string) (Task, error) {
	if err := svc.repo.SetTaskDeletedAt(ctx, id, nil); err != nil {
		return Task{}, err
	}
	return svc.repo.GetTaskByID(ctx, id)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteTasksByID(ctx, ids...)
}

func (svc *service) FindStale(ctx context.Context, statuses []string, idleFor time.Duration, level int) ([]Task, error) {
	if len(statuses) == 0 {
		statuses = OpenStatuses
	}
	filter := &QueryFilter{
		Status:              statuses,
		StatusChangedBefore: time.Now().UTC().Add(-idleFor),
		EscalatedBelow:      &level,
	}
	return svc.repo.QueryTasks(ctx, filter, []core.DBOrdering{{Field: "status_changed_at", Ascending: true}})
}

func (svc *service) MarkEscalated(ctx context.Context, id string, level int) error {
	return svc.repo.SetTaskEscalatedLevel(ctx, id, level)
}

func (svc *service) CountOpenByAssignee(ctx context.Context) (map[string]int, error) {
	return svc.repo.CountOpenTasksByAssignee(ctx)
}

func (svc *service) publish(subject string, tsk Task) {
	if svc.broker == nil {
		return
	}
	data, err := json.Marshal(tsk)
	if err != nil {
		svc.logger.Error("marshalling task event", err)
		return
	}
	if err := svc.broker.Publish(subject, data); err != nil {
		svc.logger.Error("publishing "+subject, err)
	}
}
