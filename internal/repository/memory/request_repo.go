package memory

import (
	"context"
	"fmt"
	"sort"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/repository"
)

type RequestRepository struct {
	s *Store
}

func (r *RequestRepository) Save(ctx context.Context, request *domain.PaymentRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.requests[request.ID]; exists {
		return fmt.Errorf("%w: payment request %s", repository.ErrDuplicate, request.ID)
	}

	c := *request
	r.s.requests[c.ID] = &c

	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*domain.PaymentRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	request, exists := r.s.requests[id]
	if !exists {
		return nil, fmt.Errorf("%w: payment request %s", repository.ErrNotFound, id)
	}
	c := *request
	return &c, nil
}

func (r *RequestRepository) GetSent(ctx context.Context, userID string) ([]*domain.PaymentRequest, error) {
	return r.filter(func(req *domain.PaymentRequest) bool {
		return req.FromUserID == userID
	})
}

func (r *RequestRepository) GetReceived(ctx context.Context, userID string) ([]*domain.PaymentRequest, error) {
	return r.filter(func(req *domain.PaymentRequest) bool {
		return req.ToUserID == userID
	})
}

func (r *RequestRepository) filter(keep func(*domain.PaymentRequest) bool) ([]*domain.PaymentRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.PaymentRequest
	for _, request := range r.s.requests {
		if keep(request) {
			c := *request
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}
