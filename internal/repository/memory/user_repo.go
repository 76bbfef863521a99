package memory

import (
	"context"
	"fmt"
	"sort"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/repository"
)

type UserRepository struct {
	s *Store
}

func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.users[user.ID]; exists {
		return fmt.Errorf("%w: user %s", repository.ErrDuplicate, user.ID)
	}

	c := *user
	r.s.users[c.ID] = &c

	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, exists := r.s.users[id]
	if !exists {
		return nil, fmt.Errorf("%w: user %s", repository.ErrNotFound, id)
	}
	c := *user
	return &c, nil
}

func (r *UserRepository) GetAll(ctx context.Context) ([]*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]*domain.User, 0, len(r.s.users))
	for _, user := range r.s.users {
		c := *user
		result = append(result, &c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.users[user.ID]; !exists {
		return fmt.Errorf("%w: user %s", repository.ErrNotFound, user.ID)
	}

	c := *user
	r.s.users[c.ID] = &c

	return nil
}
