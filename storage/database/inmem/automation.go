package inmemdb

import (
	"context"
	"sort"

	"github.com/kazihub/kazi/core/automation"
)

type automationRepository struct {
	db *ruleTable
}

var _ automation.Repository = (*automationRepository)(nil) // interface compliance check

func NewAutomationRepository(db *DB) *automationRepository {
	return &automationRepository{db: db.rule}
}

func (repo *automationRepository) CreateRule(ctx context.Context, rule automation.Rule) (automation.Rule, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[rule.ID] = &rule
	return rule, nil
}

func (repo *automationRepository) QueryRules(ctx context.Context, onlyActive bool) ([]automation.Rule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rules := make([]automation.Rule, 0, len(repo.db.table))
	for _, r := range repo.db.table {
		if onlyActive && !r.IsActive {
			continue
		}
		rules = append(rules, *r)
	}

	sort.Slice(rules, func(i, j int) bool { return rules[i].Threshold > rules[j].Threshold })
	return rules, nil
}

func (repo *automationRepository) GetRuleByID(ctx context.Context, id string) (automation.Rule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rule, ok := repo.db.table[id]; ok {
		return *rule, nil
	}
	return automation.Rule{}, automation.ErrRuleNotFound
}

func (repo *automationRepository) UpdateRule(ctx context.Context, rule automation.Rule) (automation.Rule, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[rule.ID]; !ok {
		return automation.Rule{}, automation.ErrRuleNotFound
	}
	repo.db.table[rule.ID] = &rule
	return rule, nil
}

func (repo *automationRepository) DeleteRulesByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
