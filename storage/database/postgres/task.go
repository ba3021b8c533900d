package postgresrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/task"
)

type taskRow struct {
	ID              string      `db:"id"`
	Title           string      `db:"title"`
	Description     null.String `db:"description"`
	Client          null.String `db:"client"`
	Status          string      `db:"status"`
	Priority        string      `db:"priority"`
	AssigneeID      null.String `db:"assignee_id"`
	CreatedBy       null.String `db:"created_by"`
	EscalatedLevel  int         `db:"escalated_level"`
	StatusChangedAt time.Time   `db:"status_changed_at"`
	DueAt           null.Time   `db:"due_at"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
	DeletedAt       null.Time   `db:"deleted_at"`
}

func (r *taskRow) toTask() task.Task {
	return task.Task{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description.String,
		Client:          r.Client.String,
		Status:          r.Status,
		Priority:        r.Priority,
		AssigneeID:      r.AssigneeID.String,
		CreatedBy:       r.CreatedBy.String,
		EscalatedLevel:  r.EscalatedLevel,
		StatusChangedAt: r.StatusChangedAt,
		DueAt:           r.DueAt.Time,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		DeletedAt:       timePtr(r.DeletedAt),
	}
}

func timePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

type taskRepository struct {
	db *sqlx.DB
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *sqlx.DB) *taskRepository {
	return &taskRepository{db: db}
}

func (repo taskRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return task.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo taskRepository) CreateTask(ctx context.Context, tsk task.Task) (task.Task, error) {
	query, args, err := psql.Insert("task").
		Columns(
			"id", "title", "description", "client", "status", "priority",
			"assignee_id", "created_by", "escalated_level", "status_changed_at",
			"due_at", "created_at", "updated_at",
		).
		Values(
			tsk.ID, tsk.Title, tsk.Description, tsk.Client, tsk.Status, tsk.Priority,
			null.NewString(tsk.AssigneeID, tsk.AssigneeID != ""), tsk.CreatedBy,
			tsk.EscalatedLevel, tsk.StatusChangedAt.UTC(),
			null.NewTime(tsk.DueAt.UTC(), !tsk.DueAt.IsZero()), tsk.CreatedAt.UTC(), tsk.UpdatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return task.Task{}, errors.Wrap(err, "building task insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return tsk, nil
}

func (repo taskRepository) QueryTasks(ctx context.Context, filter *task.QueryFilter, ordering []core.DBOrdering) ([]task.Task, error) {
	qb := psql.Select("*").From("task")

	switch {
	case filter == nil || (!filter.IncludeDeleted && !filter.OnlyDeleted):
		qb = qb.Where(sq.Eq{"deleted_at": nil})
	case filter.OnlyDeleted:
		qb = qb.Where(sq.NotEq{"deleted_at": nil})
	}

	if filter != nil {
		// tasks with Title, Description or Client matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			qb = qb.Where(sq.Or{
				sq.ILike{"title": val},
				sq.ILike{"description": val},
				sq.ILike{"client": val},
			})
		}
		if len(filter.Status) > 0 {
			qb = qb.Where(sq.Eq{"status": filter.Status})
		}
		if len(filter.Priority) > 0 {
			qb = qb.Where(sq.Eq{"priority": filter.Priority})
		}
		if filter.AssigneeID != "" {
			qb = qb.Where(sq.Eq{"assignee_id": filter.AssigneeID})
		}
		if filter.Client != "" {
			qb = qb.Where(sq.ILike{"client": filter.Client})
		}
		if !filter.CreatedFrom.IsZero() {
			qb = qb.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			qb = qb.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
		if !filter.DueFrom.IsZero() {
			qb = qb.Where(sq.GtOrEq{"due_at": filter.DueFrom.UTC()})
		}
		if !filter.DueTo.IsZero() {
			qb = qb.Where(sq.LtOrEq{"due_at": filter.DueTo.UTC()})
		}
		if !filter.StatusChangedBefore.IsZero() {
			qb = qb.Where(sq.LtOrEq{"status_changed_at": filter.StatusChangedBefore.UTC()})
		}
		if filter.EscalatedBelow != nil {
			qb = qb.Where(sq.Lt{"escalated_level": *filter.EscalatedBelow})
		}
	}

	query, args, err := qb.OrderBy(orderClause(ordering, "created_at DESC")).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building tasks query")
	}

	var rows []taskRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}

	tasks := make([]task.Task, 0, len(rows))
	for i := range rows {
		tasks = append(tasks, rows[i].toTask())
	}
	return tasks, nil
}

func (repo taskRepository) GetTaskByID(ctx context.Context, id string) (task.Task, error) {
	query, args, err := psql.Select("*").From("task").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return task.Task{}, errors.Wrap(err, "building task query")
	}
	var row taskRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return task.Task{}, repo.trapNoRowsErr(err, "finding task")
	}
	return row.toTask(), nil
}

func (repo taskRepository) UpdateTask(ctx context.Context, tsk task.Task) (task.Task, error) {
	qb := psql.Update("task").Where(sq.Eq{"id": tsk.ID})

	// zero values mean "leave unchanged"
	if tsk.Title != "" {
		qb = qb.Set("title", tsk.Title)
	}
	if tsk.Description != "" {
		qb = qb.Set("description", tsk.Description)
	}
	if tsk.Client != "" {
		qb = qb.Set("client", tsk.Client)
	}
	if tsk.Priority != "" {
		qb = qb.Set("priority", tsk.Priority)
	}
	if tsk.AssigneeID != "" {
		qb = qb.Set("assignee_id", tsk.AssigneeID)
	}
	if !tsk.DueAt.IsZero() {
		qb = qb.Set("due_at", tsk.DueAt.UTC())
	}
	if !tsk.UpdatedAt.IsZero() {
		qb = qb.Set("updated_at", tsk.UpdatedAt.UTC())
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return task.Task{}, errors.Wrap(err, "building task update")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "updating task")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return task.Task{}, task.ErrNotFound
	}
	return repo.GetTaskByID(ctx, tsk.ID)
}

func (repo taskRepository) SetTaskStatus(ctx context.Context, id, status string, at time.Time) (task.Task, error) {
	query, args, err := psql.Update("task").
		Set("status", status).
		Set("status_changed_at", at.UTC()).
		Set("escalated_level", 0).
		Set("updated_at", at.UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return task.Task{}, errors.Wrap(err, "building task status update")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "updating task status")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return task.Task{}, task.ErrNotFound
	}
	return repo.GetTaskByID(ctx, id)
}

func (repo taskRepository) SetTaskEscalatedLevel(ctx context.Context, id string, level int) error {
	query, args, err := psql.Update("task").
		Set("escalated_level", level).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building task escalation update")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "updating task escalation")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return task.ErrNotFound
	}
	return nil
}

func (repo taskRepository) SetTaskDeletedAt(ctx context.Context, id string, deletedAt *time.Time) error {
	val := null.TimeFromPtr(deletedAt)
	if deletedAt != nil {
		val = null.TimeFrom(deletedAt.UTC())
	}
	query, args, err := psql.Update("task").
		Set("deleted_at", val).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building task soft delete")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "soft deleting task")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return task.ErrNotFound
	}
	return nil
}

func (repo taskRepository) DeleteTasksByID(ctx context.Context, ids ...string) error {
	query, args, err := psql.Delete("task").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building task delete")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting tasks")
	}
	return nil
}

func (repo taskRepository) CountOpenTasksByAssignee(ctx context.Context) (map[string]int, error) {
	query, args, err := psql.Select("assignee_id", "COUNT(*) AS cnt").
		From("task").
		Where(sq.Eq{"deleted_at": nil}).
		Where(sq.Eq{"status": task.OpenStatuses}).
		Where(sq.NotEq{"assignee_id": nil}).
		GroupBy("assignee_id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building open task counts query")
	}

	var rows []struct {
		AssigneeID string `db:"assignee_id"`
		Cnt        int    `db:"cnt"`
	}
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "counting open tasks")
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.AssigneeID] = row.Cnt
	}
	return counts, nil
}
