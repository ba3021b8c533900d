package postgresrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kazihub/kazi/core/notification"
)

type notificationRow struct {
	ID             string    `db:"id"`
	SenderID       string    `db:"sender_id"`
	SenderName     string    `db:"sender_name"`
	RecipientID    string    `db:"recipient_id"`
	Broadcast      bool      `db:"broadcast"`
	Message        string    `db:"message"`
	Acknowledged   bool      `db:"acknowledged"`
	AcknowledgedAt null.Time `db:"acknowledged_at"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r *notificationRow) toUrgent() notification.Urgent {
	return notification.Urgent{
		ID:             r.ID,
		SenderID:       r.SenderID,
		SenderName:     r.SenderName,
		RecipientID:    r.RecipientID,
		Broadcast:      r.Broadcast,
		Message:        r.Message,
		Acknowledged:   r.Acknowledged,
		AcknowledgedAt: timePtr(r.AcknowledgedAt),
		CreatedAt:      r.CreatedAt,
	}
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo notificationRepository) CreateNotifications(ctx context.Context, notifs ...notification.Urgent) ([]notification.Urgent, error) {
	if len(notifs) == 0 {
		return nil, nil
	}

	qb := psql.Insert("notification").
		Columns("id", "sender_id", "sender_name", "recipient_id", "broadcast", "message", "acknowledged", "created_at")
	for _, n := range notifs {
		qb = qb.Values(n.ID, n.SenderID, n.SenderName, n.RecipientID, n.Broadcast, n.Message, n.Acknowledged, n.CreatedAt.UTC())
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building notification insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return nil, errors.Wrap(err, "inserting notifications")
	}
	return notifs, nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, filter *notification.QueryFilter) ([]notification.Urgent, error) {
	qb := psql.Select("*").From("notification")

	if filter != nil {
		if filter.RecipientID != "" {
			qb = qb.Where(sq.Eq{"recipient_id": filter.RecipientID})
		}
		if filter.SenderID != "" {
			qb = qb.Where(sq.Eq{"sender_id": filter.SenderID})
		}
		if filter.Acknowledged != nil {
			qb = qb.Where(sq.Eq{"acknowledged": *filter.Acknowledged})
		}
		if filter.Broadcast != nil {
			qb = qb.Where(sq.Eq{"broadcast": *filter.Broadcast})
		}
	}

	query, args, err := qb.OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building notifications query")
	}

	var rows []notificationRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Urgent, 0, len(rows))
	for i := range rows {
		notifs = append(notifs, rows[i].toUrgent())
	}
	return notifs, nil
}

func (repo notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Urgent, error) {
	query, args, err := psql.Select("*").From("notification").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return notification.Urgent{}, errors.Wrap(err, "building notification query")
	}
	var row notificationRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return notification.Urgent{}, notification.ErrNotFound
		}
		return notification.Urgent{}, errors.Wrap(err, "finding notification")
	}
	return row.toUrgent(), nil
}

func (repo notificationRepository) SetNotificationAcknowledged(ctx context.Context, id string, at time.Time) (notification.Urgent, error) {
	query, args, err := psql.Update("notification").
		Set("acknowledged", true).
		Set("acknowledged_at", at.UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return notification.Urgent{}, errors.Wrap(err, "building acknowledgement update")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return notification.Urgent{}, errors.Wrap(err, "acknowledging notification")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return notification.Urgent{}, notification.ErrNotFound
	}
	return repo.GetNotificationByID(ctx, id)
}
