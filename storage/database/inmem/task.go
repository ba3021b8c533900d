package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/task"
)

type taskRepository struct {
	db *taskTable
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *DB) *taskRepository {
	return &taskRepository{db: db.task}
}

func (repo *taskRepository) query() []task.Task {
	tasks := make([]task.Task, 0, len(repo.db.table))
	for _, t := range repo.db.table {
		tasks = append(tasks, *t)
	}
	return tasks
}

func (repo *taskRepository) CreateTask(ctx context.Context, tsk task.Task) (task.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[tsk.ID] = &tsk
	return tsk, nil
}

func (repo *taskRepository) QueryTasks(ctx context.Context, filter *task.QueryFilter, ordering []core.DBOrdering) ([]task.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tasks := repo.query()

	switch {
	case filter == nil || (!filter.IncludeDeleted && !filter.OnlyDeleted):
		var filtered []task.Task
		for _, t := range tasks {
			if !t.IsDeleted() {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	case filter.OnlyDeleted:
		var filtered []task.Task
		for _, t := range tasks {
			if t.IsDeleted() {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	if filter != nil {
		if filter.Search != "" {
			search := strings.ToLower(filter.Search)
			var filtered []task.Task
			for _, t := range tasks {
				if strings.Contains(strings.ToLower(t.Title), search) ||
					strings.Contains(strings.ToLower(t.Description), search) ||
					strings.Contains(strings.ToLower(t.Client), search) {
					filtered = append(filtered, t)
				}
			}
			tasks = filtered
		}
		if len(filter.Status) > 0 {
			var filtered []task.Task
			for _, t := range tasks {
				for _, s := range filter.Status {
					if t.Status == s {
						filtered = append(filtered, t)
						break
					}
				}
			}
			tasks = filtered
		}
		if len(filter.Priority) > 0 {
			var filtered []task.Task
			for _, t := range tasks {
				for _, p := range filter.Priority {
					if t.Priority == p {
						filtered = append(filtered, t)
						break
					}
				}
			}
			tasks = filtered
		}
		if filter.AssigneeID != "" {
			var filtered []task.Task
			for _, t := range tasks {
				if t.AssigneeID == filter.AssigneeID {
					filtered = append(filtered, t)
				}
			}
			tasks = filtered
		}
		if filter.Client != "" {
			var filtered []task.Task
			for _, t := range tasks {
				if strings.EqualFold(t.Client, filter.Client) {
					filtered = append(filtered, t)
				}
			}
			tasks = filtered
		}
		if !filter.CreatedFrom.IsZero() {
			from := filter.CreatedFrom.UTC()
			var filtered []task.Task
			for _, t := range tasks {
				if !t.CreatedAt.Before(from) {
					filtered = append(filtered, t)
				}
			}
			tasks = filtered
		}
		if !filter.CreatedTo.IsZero() {
			to := filter.CreatedTo.UTC()
			var filtered []task.Task
			for _, t := range tasks {
				if !t.CreatedAt.After(to) {
					filtered = append(filtered, t)
				}
			}
			tasks = filtered
		}
		if !filter.DueFrom.IsZero() {
			from := filter.DueFrom.UTC()
			var filtered []task.Task
			for _, t := range tasks {
				if !t.DueAt.IsZero() && !t.DueAt.Before(from) {
					filtered = append(filtered, t)
				}
			}
			tasks = filtered
		}
		if !filter.DueTo.IsZero() {
			to := filter.DueTo.UTC()
			var filtered []task.Task
			for _, t := range tasks {
				if !t.DueAt.IsZero() && !t.DueAt.After(to) {
					filtered = append(filtered, t)
				}
			}
			tasks = filtered
		}
		if !filter.StatusChangedBefore.IsZero() {
			before := filter.StatusChangedBefore.UTC()
			var filtered []task.Task
			for _, t := range tasks {
				if !t.StatusChangedAt.After(before) {
					filtered = append(filtered, t)
				}
			}
			tasks = filtered
		}
		if filter.EscalatedBelow != nil {
			var filtered []task.Task
			for _, t := range tasks {
				if t.EscalatedLevel < *filter.EscalatedBelow {
					filtered = append(filtered, t)
				}
			}
			tasks = filtered
		}
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	return tasks, nil
}

func (repo *taskRepository) GetTaskByID(ctx context.Context, id string) (task.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if tsk, ok := repo.db.table[id]; ok {
		return *tsk, nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) UpdateTask(ctx context.Context, tsk task.Task) (task.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// only save set fields
	orig, ok := repo.db.table[tsk.ID]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	if tsk.Title != "" {
		orig.Title = tsk.Title
	}
	if tsk.Description != "" {
		orig.Description = tsk.Description
	}
	if tsk.Client != "" {
		orig.Client = tsk.Client
	}
	if tsk.Priority != "" {
		orig.Priority = tsk.Priority
	}
	if tsk.AssigneeID != "" {
		orig.AssigneeID = tsk.AssigneeID
	}
	if !tsk.DueAt.IsZero() {
		orig.DueAt = tsk.DueAt
	}
	if !tsk.UpdatedAt.IsZero() {
		orig.UpdatedAt = tsk.UpdatedAt
	}
	return *orig, nil
}

func (repo *taskRepository) SetTaskStatus(ctx context.Context, id, status string, at time.Time) (task.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	tsk, ok := repo.db.table[id]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	tsk.Status = status
	tsk.StatusChangedAt = at.UTC()
	tsk.EscalatedLevel = 0
	tsk.UpdatedAt = at.UTC()
	return *tsk, nil
}

func (repo *taskRepository) SetTaskEscalatedLevel(ctx context.Context, id string, level int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	tsk, ok := repo.db.table[id]
	if !ok {
		return task.ErrNotFound
	}
	tsk.EscalatedLevel = level
	return nil
}

func (repo *taskRepository) SetTaskDeletedAt(ctx context.Context, id string, deletedAt *time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	tsk, ok := repo.db.table[id]
	if !ok {
		return task.ErrNotFound
	}
	tsk.DeletedAt = deletedAt
	return nil
}

func (repo *taskRepository) DeleteTasksByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func (repo *taskRepository) CountOpenTasksByAssignee(ctx context.Context) (map[string]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[string]int)
	for _, t := range repo.query() {
		if t.IsDeleted() || t.AssigneeID == "" || !t.IsOpen() {
			continue
		}
		counts[t.AssigneeID]++
	}
	return counts, nil
}
