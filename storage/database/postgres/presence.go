package postgresrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kazihub/kazi/core/presence"
)

type presenceRow struct {
	UserID     string       `db:"user_id"`
	Status     string       `db:"status"`
	Latitude   null.Float64 `db:"latitude"`
	Longitude  null.Float64 `db:"longitude"`
	Accuracy   null.Float64 `db:"accuracy"`
	RecordedAt time.Time    `db:"recorded_at"`
	LastSeen   time.Time    `db:"last_seen"`
}

func (r *presenceRow) toPresence() presence.Presence {
	return presence.Presence{
		UserID:     r.UserID,
		Status:     r.Status,
		Latitude:   r.Latitude.Ptr(),
		Longitude:  r.Longitude.Ptr(),
		Accuracy:   r.Accuracy.Ptr(),
		RecordedAt: r.RecordedAt,
		LastSeen:   r.LastSeen,
	}
}

type presenceRepository struct {
	db *sqlx.DB
}

var _ presence.Repository = (*presenceRepository)(nil) // interface compliance check

func NewPresenceRepository(db *sqlx.DB) *presenceRepository {
	return &presenceRepository{db: db}
}

func (repo presenceRepository) GetPresence(ctx context.Context, userID string) (presence.Presence, error) {
	query, args, err := psql.Select("*").From("presence").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return presence.Presence{}, errors.Wrap(err, "building presence query")
	}
	var row presenceRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return presence.Presence{}, presence.ErrNotFound
		}
		return presence.Presence{}, errors.Wrap(err, "finding presence")
	}
	return row.toPresence(), nil
}

func (repo presenceRepository) UpsertPresence(ctx context.Context, p presence.Presence) (presence.Presence, error) {
	query, args, err := psql.Insert("presence").
		Columns("user_id", "status", "latitude", "longitude", "accuracy", "recorded_at", "last_seen").
		Values(
			p.UserID, p.Status,
			null.Float64FromPtr(p.Latitude), null.Float64FromPtr(p.Longitude), null.Float64FromPtr(p.Accuracy),
			p.RecordedAt.UTC(), p.LastSeen.UTC(),
		).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			status = EXCLUDED.status,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			accuracy = EXCLUDED.accuracy,
			recorded_at = EXCLUDED.recorded_at,
			last_seen = EXCLUDED.last_seen`).
		ToSql()
	if err != nil {
		return presence.Presence{}, errors.Wrap(err, "building presence upsert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return presence.Presence{}, errors.Wrap(err, "upserting presence")
	}
	return p, nil
}

func (repo presenceRepository) TouchPresence(ctx context.Context, userID, status string, lastSeen time.Time) (presence.Presence, error) {
	query, args, err := psql.Update("presence").
		Set("status", status).
		Set("last_seen", lastSeen.UTC()).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return presence.Presence{}, errors.Wrap(err, "building presence touch")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return presence.Presence{}, errors.Wrap(err, "touching presence")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return presence.Presence{}, presence.ErrNotFound
	}
	return repo.GetPresence(ctx, userID)
}

func (repo presenceRepository) QuerySeenSince(ctx context.Context, since time.Time) ([]presence.Presence, error) {
	query, args, err := psql.Select("*").
		From("presence").
		Where(sq.GtOrEq{"last_seen": since.UTC()}).
		OrderBy("last_seen DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building presences query")
	}

	var rows []presenceRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying presences")
	}
	presences := make([]presence.Presence, 0, len(rows))
	for i := range rows {
		presences = append(presences, rows[i].toPresence())
	}
	return presences, nil
}
