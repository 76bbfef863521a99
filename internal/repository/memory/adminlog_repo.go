package memory

import (
	"context"

	"wallet_ledger/internal/domain"
)

type AdminLogRepository struct {
	s *Store
}

func (r *AdminLogRepository) GetAll(ctx context.Context, limit int) ([]*domain.AdminLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	// newest first
	var result []*domain.AdminLog
	for i := len(r.s.adminLogs) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		c := *r.s.adminLogs[i]
		result = append(result, &c)
	}

	return result, nil
}
