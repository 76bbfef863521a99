package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"wallet_ledger/internal/domain"
)

type UserRepository interface {
	Save(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetAll(ctx context.Context) ([]*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type AccountRepository interface {
	Save(ctx context.Context, account *domain.Account) error
	GetByUserID(ctx context.Context, userID string) (*domain.Account, error)
}

type TransactionRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetByReceiptID(ctx context.Context, receiptID string) (*domain.Transaction, error)
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error)
	GetBySender(ctx context.Context, userID string) ([]*domain.Transaction, error)
	GetByStatus(ctx context.Context, status domain.TransactionStatus, limit, offset int) ([]*domain.Transaction, error)
	GetFlagged(ctx context.Context) ([]*domain.Transaction, error)
	Count(ctx context.Context) (int, error)
	CompletedVolume(ctx context.Context) (decimal.Decimal, error)
}

type PaymentRequestRepository interface {
	Save(ctx context.Context, request *domain.PaymentRequest) error
	GetByID(ctx context.Context, id string) (*domain.PaymentRequest, error)
	GetSent(ctx context.Context, userID string) ([]*domain.PaymentRequest, error)
	GetReceived(ctx context.Context, userID string) ([]*domain.PaymentRequest, error)
}

type AdminLogRepository interface {
	GetAll(ctx context.Context, limit int) ([]*domain.AdminLog, error)
}

type NotificationRepository interface {
	Save(ctx context.Context, n *domain.Notification) error
	GetByUserID(ctx context.Context, userID string) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// Txn is the view of the store inside one atomic unit of work. Every
// mutation either commits with the whole unit or is rolled back; reads see
// the unit's own writes.
type Txn interface {
	User(id string) (*domain.User, error)
	Account(userID string) (*domain.Account, error)
	Transaction(id string) (*domain.Transaction, error)
	Request(id string) (*domain.PaymentRequest, error)

	Credit(userID string, amount decimal.Decimal) error
	Debit(userID string, amount decimal.Decimal) error
	AppendTransaction(tx *domain.Transaction) error
	SetTransactionStatus(id string, status domain.TransactionStatus) error
	SetTransactionFlag(id string, flagged bool, reason string) error
	SetUserStatus(id string, status domain.UserStatus) error
	SetDailySpent(id string, spent decimal.Decimal, resetDate time.Time) error
	SetDailyLimit(id string, limit decimal.Decimal) error
	SetRequestStatus(id string, status domain.RequestStatus) error
	AppendAdminLog(entry *domain.AdminLog) error
}

// Store bundles the repositories with the atomic unit of work that the
// money-movement path requires. Atomically runs fn isolated from every
// other unit; if fn returns an error no mutation it made is observable.
// Implementations with optimistic concurrency surface ErrConflict, which
// callers may retry.
type Store interface {
	Users() UserRepository
	Accounts() AccountRepository
	Transactions() TransactionRepository
	Requests() PaymentRequestRepository
	AdminLogs() AdminLogRepository
	Notifications() NotificationRepository

	Atomically(ctx context.Context, fn func(txn Txn) error) error
}

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate entry")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("transaction conflict")
)
