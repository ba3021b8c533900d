package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/kazihub/kazi/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) CreateNotifications(ctx context.Context, notifs ...notification.Urgent) ([]notification.Urgent, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for i := range notifs {
		n := notifs[i]
		repo.db.table[n.ID] = &n
	}
	return notifs, nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, filter *notification.QueryFilter) ([]notification.Urgent, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var notifs []notification.Urgent
	for _, n := range repo.db.table {
		if filter != nil {
			if filter.RecipientID != "" && n.RecipientID != filter.RecipientID {
				continue
			}
			if filter.SenderID != "" && n.SenderID != filter.SenderID {
				continue
			}
			if filter.Acknowledged != nil && n.Acknowledged != *filter.Acknowledged {
				continue
			}
			if filter.Broadcast != nil && n.Broadcast != *filter.Broadcast {
				continue
			}
		}
		notifs = append(notifs, *n)
	}

	sort.Slice(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	return notifs, nil
}

func (repo *notificationRepository) GetNotificationByID(ctx context.Context, id string) (notification.Urgent, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return *n, nil
	}
	return notification.Urgent{}, notification.ErrNotFound
}

func (repo *notificationRepository) SetNotificationAcknowledged(ctx context.Context, id string, at time.Time) (notification.Urgent, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n, ok := repo.db.table[id]
	if !ok {
		return notification.Urgent{}, notification.ErrNotFound
	}
	atUTC := at.UTC()
	n.Acknowledged = true
	n.AcknowledgedAt = &atUTC
	return *n, nil
}
