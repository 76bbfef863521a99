package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/repository"
)

type TransactionRepository struct {
	s *Store
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tx, exists := r.s.transactions[id]
	if !exists {
		return nil, fmt.Errorf("%w: transaction %s", repository.ErrNotFound, id)
	}
	c := *tx
	return &c, nil
}

func (r *TransactionRepository) GetByReceiptID(ctx context.Context, receiptID string) (*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, exists := r.s.receiptIndex[receiptID]
	if !exists {
		return nil, fmt.Errorf("%w: receipt %s", repository.ErrNotFound, receiptID)
	}
	c := *r.s.transactions[id]
	return &c, nil
}

func (r *TransactionRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := r.s.txIndex[userID]
	result := make([]*domain.Transaction, 0, len(ids))
	for _, id := range ids {
		c := *r.s.transactions[id]
		result = append(result, &c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return paginate(result, limit, offset), nil
}

func (r *TransactionRepository) GetBySender(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := r.s.senderIndex[userID]
	result := make([]*domain.Transaction, 0, len(ids))
	for _, id := range ids {
		c := *r.s.transactions[id]
		result = append(result, &c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *TransactionRepository) GetByStatus(ctx context.Context, status domain.TransactionStatus, limit, offset int) ([]*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range r.s.transactions {
		if tx.Status == status {
			c := *tx
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return paginate(result, limit, offset), nil
}

func (r *TransactionRepository) GetFlagged(ctx context.Context) ([]*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range r.s.transactions {
		if tx.Flagged {
			c := *tx
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *TransactionRepository) Count(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return len(r.s.transactions), nil
}

func (r *TransactionRepository) CompletedVolume(ctx context.Context) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	total := decimal.Zero
	for _, tx := range r.s.transactions {
		if tx.Status == domain.StatusCompleted {
			total = total.Add(tx.Amount)
		}
	}

	return total, nil
}

func paginate(txs []*domain.Transaction, limit, offset int) []*domain.Transaction {
	if offset >= len(txs) {
		return []*domain.Transaction{}
	}
	end := len(txs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return txs[offset:end]
}
