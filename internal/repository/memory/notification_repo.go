package memory

import (
	"context"
	"fmt"
	"sort"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/repository"
)

type NotificationRepository struct {
	s *Store
}

func (r *NotificationRepository) Save(ctx context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.notifs[n.ID]; exists {
		return fmt.Errorf("%w: notification %s", repository.ErrDuplicate, n.ID)
	}

	c := *n
	r.s.notifs[c.ID] = &c
	r.s.notifIndex[c.UserID] = append(r.s.notifIndex[c.UserID], c.ID)

	return nil
}

func (r *NotificationRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := r.s.notifIndex[userID]
	result := make([]*domain.Notification, 0, len(ids))
	for _, id := range ids {
		c := *r.s.notifs[id]
		result = append(result, &c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, exists := r.s.notifs[id]
	if !exists {
		return fmt.Errorf("%w: notification %s", repository.ErrNotFound, id)
	}

	n.Read = true

	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, id := range r.s.notifIndex[userID] {
		r.s.notifs[id].Read = true
	}

	return nil
}
