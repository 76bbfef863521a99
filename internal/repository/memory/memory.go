package memory

import (
	"wallet_ledger/internal/repository"
)

var (
	_ repository.Store                    = (*Store)(nil)
	_ repository.UserRepository           = (*UserRepository)(nil)
	_ repository.AccountRepository        = (*AccountRepository)(nil)
	_ repository.TransactionRepository    = (*TransactionRepository)(nil)
	_ repository.PaymentRequestRepository = (*RequestRepository)(nil)
	_ repository.AdminLogRepository       = (*AdminLogRepository)(nil)
	_ repository.NotificationRepository   = (*NotificationRepository)(nil)
)
