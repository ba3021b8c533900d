package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/kazihub/kazi/core/presence"
)

type presenceRepository struct {
	db *presenceTable
}

var _ presence.Repository = (*presenceRepository)(nil) // interface compliance check

func NewPresenceRepository(db *DB) *presenceRepository {
	return &presenceRepository{db: db.presence}
}

func (repo *presenceRepository) GetPresence(ctx context.Context, userID string) (presence.Presence, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.table[userID]; ok {
		return *p, nil
	}
	return presence.Presence{}, presence.ErrNotFound
}

func (repo *presenceRepository) UpsertPresence(ctx context.Context, p presence.Presence) (presence.Presence, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[p.UserID] = &p
	return p, nil
}

func (repo *presenceRepository) TouchPresence(ctx context.Context, userID, status string, lastSeen time.Time) (presence.Presence, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p, ok := repo.db.table[userID]
	if !ok {
		return presence.Presence{}, presence.ErrNotFound
	}
	p.Status = status
	p.LastSeen = lastSeen.UTC()
	return *p, nil
}

func (repo *presenceRepository) QuerySeenSince(ctx context.Context, since time.Time) ([]presence.Presence, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sinceUTC := since.UTC()
	var presences []presence.Presence
	for _, p := range repo.db.table {
		if p.LastSeen.Before(sinceUTC) {
			continue
		}
		presences = append(presences, *p)
	}

	sort.Slice(presences, func(i, j int) bool { return presences[i].LastSeen.After(presences[j].LastSeen) })
	return presences, nil
}
