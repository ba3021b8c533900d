package postgresrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kazihub/kazi/core/automation"
)

type automationRuleRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	FromStatus   null.String    `db:"from_status"`
	ThresholdSec int64          `db:"threshold_seconds"`
	Action       string         `db:"action"`
	TargetStatus null.String    `db:"target_status"`
	NotifyRoles  pq.StringArray `db:"notify_roles"`
	IsActive     bool           `db:"is_active"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *automationRuleRow) toRule() automation.Rule {
	return automation.Rule{
		ID:           r.ID,
		Name:         r.Name,
		FromStatus:   r.FromStatus.String,
		Threshold:    time.Duration(r.ThresholdSec) * time.Second,
		Action:       r.Action,
		TargetStatus: r.TargetStatus.String,
		NotifyRoles:  r.NotifyRoles,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type automationRepository struct {
	db *sqlx.DB
}

var _ automation.Repository = (*automationRepository)(nil) // interface compliance check

func NewAutomationRepository(db *sqlx.DB) *automationRepository {
	return &automationRepository{db: db}
}

func (repo automationRepository) CreateRule(ctx context.Context, rule automation.Rule) (automation.Rule, error) {
	query, args, err := psql.Insert("automation_rule").
		Columns("id", "name", "from_status", "threshold_seconds", "action", "target_status", "notify_roles", "is_active", "created_at", "updated_at").
		Values(
			rule.ID, rule.Name,
			null.NewString(rule.FromStatus, rule.FromStatus != ""),
			int64(rule.Threshold/time.Second), rule.Action,
			null.NewString(rule.TargetStatus, rule.TargetStatus != ""),
			pq.StringArray(rule.NotifyRoles), rule.IsActive,
			rule.CreatedAt.UTC(), rule.UpdatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return automation.Rule{}, errors.Wrap(err, "building rule insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return automation.Rule{}, errors.Wrap(err, "inserting rule")
	}
	return rule, nil
}

func (repo automationRepository) QueryRules(ctx context.Context, onlyActive bool) ([]automation.Rule, error) {
	qb := psql.Select("*").From("automation_rule")
	if onlyActive {
		qb = qb.Where(sq.Eq{"is_active": true})
	}

	query, args, err := qb.OrderBy("threshold_seconds DESC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building rules query")
	}

	var rows []automationRuleRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying rules")
	}
	rules := make([]automation.Rule, 0, len(rows))
	for i := range rows {
		rules = append(rules, rows[i].toRule())
	}
	return rules, nil
}

func (repo automationRepository) GetRuleByID(ctx context.Context, id string) (automation.Rule, error) {
	query, args, err := psql.Select("*").From("automation_rule").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return automation.Rule{}, errors.Wrap(err, "building rule query")
	}
	var row automationRuleRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return automation.Rule{}, automation.ErrRuleNotFound
		}
		return automation.Rule{}, errors.Wrap(err, "finding rule")
	}
	return row.toRule(), nil
}

func (repo automationRepository) UpdateRule(ctx context.Context, rule automation.Rule) (automation.Rule, error) {
	query, args, err := psql.Update("automation_rule").
		Set("name", rule.Name).
		Set("from_status", null.NewString(rule.FromStatus, rule.FromStatus != "")).
		Set("threshold_seconds", int64(rule.Threshold/time.Second)).
		Set("action", rule.Action).
		Set("target_status", null.NewString(rule.TargetStatus, rule.TargetStatus != "")).
		Set("notify_roles", pq.StringArray(rule.NotifyRoles)).
		Set("is_active", rule.IsActive).
		Set("updated_at", rule.UpdatedAt.UTC()).
		Where(sq.Eq{"id": rule.ID}).
		ToSql()
	if err != nil {
		return automation.Rule{}, errors.Wrap(err, "building rule update")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return automation.Rule{}, errors.Wrap(err, "updating rule")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return automation.Rule{}, automation.ErrRuleNotFound
	}
	return repo.GetRuleByID(ctx, rule.ID)
}

func (repo automationRepository) DeleteRulesByID(ctx context.Context, ids ...string) error {
	query, args, err := psql.Delete("automation_rule").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building rule delete")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting rules")
	}
	return nil
}
