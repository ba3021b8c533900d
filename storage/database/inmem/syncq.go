package inmemdb

import (
	"context"

	"github.com/kazihub/kazi/core/syncq"
)

type syncRepository struct {
	db *appliedOpTable
}

var _ syncq.Repository = (*syncRepository)(nil) // interface compliance check

func NewSyncRepository(db *DB) *syncRepository {
	return &syncRepository{db: db.appliedOp}
}

func (repo *syncRepository) key(userID, clientRef string) string {
	return userID + "/" + clientRef
}

func (repo *syncRepository) GetAppliedOp(ctx context.Context, userID, clientRef string) (syncq.AppliedOp, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if op, ok := repo.db.table[repo.key(userID, clientRef)]; ok {
		return *op, nil
	}
	return syncq.AppliedOp{}, syncq.ErrRefNotFound
}

func (repo *syncRepository) CreateAppliedOp(ctx context.Context, op syncq.AppliedOp) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := repo.key(op.UserID, op.ClientRef)
	if _, ok := repo.db.table[key]; ok {
		return nil
	}
	repo.db.table[key] = &op
	return nil
}
