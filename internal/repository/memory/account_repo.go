package memory

import (
	"context"
	"fmt"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/repository"
)

type AccountRepository struct {
	s *Store
}

func (r *AccountRepository) Save(ctx context.Context, account *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.accounts[account.UserID]; exists {
		return fmt.Errorf("%w: account for user %s", repository.ErrDuplicate, account.UserID)
	}
	if _, exists := r.s.users[account.UserID]; !exists {
		return fmt.Errorf("%w: user %s", repository.ErrNotFound, account.UserID)
	}

	c := *account
	r.s.accounts[c.UserID] = &c

	return nil
}

func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	account, exists := r.s.accounts[userID]
	if !exists {
		return nil, fmt.Errorf("%w: account for user %s", repository.ErrNotFound, userID)
	}
	c := *account
	return &c, nil
}
