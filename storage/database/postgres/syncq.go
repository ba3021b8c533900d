package postgresrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kazihub/kazi/core/syncq"
)

type appliedOpRow struct {
	UserID    string      `db:"user_id"`
	ClientRef string      `db:"client_ref"`
	TaskID    null.String `db:"task_id"`
	AppliedAt time.Time   `db:"applied_at"`
}

type syncRepository struct {
	db *sqlx.DB
}

var _ syncq.Repository = (*syncRepository)(nil) // interface compliance check

func NewSyncRepository(db *sqlx.DB) *syncRepository {
	return &syncRepository{db: db}
}

func (repo syncRepository) GetAppliedOp(ctx context.Context, userID, clientRef string) (syncq.AppliedOp, error) {
	query, args, err := psql.Select("*").
		From("sync_applied_op").
		Where(sq.Eq{"user_id": userID, "client_ref": clientRef}).
		ToSql()
	if err != nil {
		return syncq.AppliedOp{}, errors.Wrap(err, "building applied op query")
	}

	var row appliedOpRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return syncq.AppliedOp{}, syncq.ErrRefNotFound
		}
		return syncq.AppliedOp{}, errors.Wrap(err, "finding applied op")
	}
	return syncq.AppliedOp{
		UserID:    row.UserID,
		ClientRef: row.ClientRef,
		TaskID:    row.TaskID.String,
		AppliedAt: row.AppliedAt,
	}, nil
}

func (repo syncRepository) CreateAppliedOp(ctx context.Context, op syncq.AppliedOp) error {
	query, args, err := psql.Insert("sync_applied_op").
		Columns("user_id", "client_ref", "task_id", "applied_at").
		Values(op.UserID, op.ClientRef, null.NewString(op.TaskID, op.TaskID != ""), op.AppliedAt.UTC()).
		Suffix("ON CONFLICT (user_id, client_ref) DO NOTHING").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building applied op insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "inserting applied op")
	}
	return nil
}
