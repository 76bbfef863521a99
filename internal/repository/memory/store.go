package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/repository"
)

// Store keeps every collection behind one RWMutex. Atomically takes the
// write lock for the whole unit of work, so units are serializable by
// construction; an undo journal reverses applied mutations when the unit
// fails partway through.
type Store struct {
	mu sync.RWMutex

	users        map[string]*domain.User
	accounts     map[string]*domain.Account
	transactions map[string]*domain.Transaction
	txIndex      map[string][]string // userID -> transaction ids, either side
	senderIndex  map[string][]string // fromUserID -> transaction ids
	receiptIndex map[string]string
	requests     map[string]*domain.PaymentRequest
	adminLogs    []*domain.AdminLog
	notifs       map[string]*domain.Notification
	notifIndex   map[string][]string
}

func NewStore() *Store {
	return &Store{
		users:        make(map[string]*domain.User),
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string]*domain.Transaction),
		txIndex:      make(map[string][]string),
		senderIndex:  make(map[string][]string),
		receiptIndex: make(map[string]string),
		requests:     make(map[string]*domain.PaymentRequest),
		notifs:       make(map[string]*domain.Notification),
		notifIndex:   make(map[string][]string),
	}
}

func (s *Store) Users() repository.UserRepository               { return &UserRepository{s: s} }
func (s *Store) Accounts() repository.AccountRepository         { return &AccountRepository{s: s} }
func (s *Store) Transactions() repository.TransactionRepository { return &TransactionRepository{s: s} }
func (s *Store) Requests() repository.PaymentRequestRepository  { return &RequestRepository{s: s} }
func (s *Store) AdminLogs() repository.AdminLogRepository       { return &AdminLogRepository{s: s} }
func (s *Store) Notifications() repository.NotificationRepository {
	return &NotificationRepository{s: s}
}

func (s *Store) Atomically(ctx context.Context, fn func(txn repository.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txn{s: s}
	if err := fn(t); err != nil {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		return err
	}
	return nil
}

// txn mutates the store directly (the write lock is held) and records an
// undo step per mutation.
type txn struct {
	s    *Store
	undo []func()
}

func (t *txn) User(id string) (*domain.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", repository.ErrNotFound, id)
	}
	c := *u
	return &c, nil
}

func (t *txn) Account(userID string) (*domain.Account, error) {
	a, ok := t.s.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("%w: account for user %s", repository.ErrNotFound, userID)
	}
	c := *a
	return &c, nil
}

func (t *txn) Transaction(id string) (*domain.Transaction, error) {
	tx, ok := t.s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", repository.ErrNotFound, id)
	}
	c := *tx
	return &c, nil
}

func (t *txn) Request(id string) (*domain.PaymentRequest, error) {
	r, ok := t.s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment request %s", repository.ErrNotFound, id)
	}
	c := *r
	return &c, nil
}

func (t *txn) Credit(userID string, amount decimal.Decimal) error {
	a, ok := t.s.accounts[userID]
	if !ok {
		return fmt.Errorf("%w: account for user %s", repository.ErrNotFound, userID)
	}

	prevBalance, prevActivity := a.Balance, a.LastActivityAt
	a.Balance = a.Balance.Add(amount)
	a.LastActivityAt = time.Now()
	t.undo = append(t.undo, func() {
		a.Balance, a.LastActivityAt = prevBalance, prevActivity
	})
	return nil
}

func (t *txn) Debit(userID string, amount decimal.Decimal) error {
	a, ok := t.s.accounts[userID]
	if !ok {
		return fmt.Errorf("%w: account for user %s", repository.ErrNotFound, userID)
	}
	if a.Balance.LessThan(amount) {
		return fmt.Errorf("%w: account for user %s", repository.ErrInsufficientFunds, userID)
	}

	prevBalance, prevActivity := a.Balance, a.LastActivityAt
	a.Balance = a.Balance.Sub(amount)
	a.LastActivityAt = time.Now()
	t.undo = append(t.undo, func() {
		a.Balance, a.LastActivityAt = prevBalance, prevActivity
	})
	return nil
}

func (t *txn) AppendTransaction(tx *domain.Transaction) error {
	if _, exists := t.s.transactions[tx.ID]; exists {
		return fmt.Errorf("%w: transaction %s", repository.ErrDuplicate, tx.ID)
	}

	c := *tx
	c.UpdatedAt = time.Now()
	t.s.transactions[c.ID] = &c
	t.s.txIndex[c.FromUserID] = append(t.s.txIndex[c.FromUserID], c.ID)
	if c.ToUserID != c.FromUserID {
		t.s.txIndex[c.ToUserID] = append(t.s.txIndex[c.ToUserID], c.ID)
	}
	t.s.senderIndex[c.FromUserID] = append(t.s.senderIndex[c.FromUserID], c.ID)
	if c.ReceiptID != "" {
		t.s.receiptIndex[c.ReceiptID] = c.ID
	}

	t.undo = append(t.undo, func() {
		delete(t.s.transactions, c.ID)
		t.s.txIndex[c.FromUserID] = dropLast(t.s.txIndex[c.FromUserID], c.ID)
		if c.ToUserID != c.FromUserID {
			t.s.txIndex[c.ToUserID] = dropLast(t.s.txIndex[c.ToUserID], c.ID)
		}
		t.s.senderIndex[c.FromUserID] = dropLast(t.s.senderIndex[c.FromUserID], c.ID)
		if c.ReceiptID != "" {
			delete(t.s.receiptIndex, c.ReceiptID)
		}
	})
	return nil
}

func (t *txn) SetTransactionStatus(id string, status domain.TransactionStatus) error {
	tx, ok := t.s.transactions[id]
	if !ok {
		return fmt.Errorf("%w: transaction %s", repository.ErrNotFound, id)
	}

	prevStatus, prevUpdated := tx.Status, tx.UpdatedAt
	tx.Status = status
	tx.UpdatedAt = time.Now()
	t.undo = append(t.undo, func() {
		tx.Status, tx.UpdatedAt = prevStatus, prevUpdated
	})
	return nil
}

func (t *txn) SetTransactionFlag(id string, flagged bool, reason string) error {
	tx, ok := t.s.transactions[id]
	if !ok {
		return fmt.Errorf("%w: transaction %s", repository.ErrNotFound, id)
	}

	prev := *tx
	tx.Flagged = flagged
	tx.FlagReason = reason
	if flagged {
		tx.Status = domain.StatusFlagged
	} else if tx.Status == domain.StatusFlagged {
		tx.Status = domain.StatusCompleted
	}
	tx.UpdatedAt = time.Now()
	t.undo = append(t.undo, func() { *tx = prev })
	return nil
}

func (t *txn) SetUserStatus(id string, status domain.UserStatus) error {
	u, ok := t.s.users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", repository.ErrNotFound, id)
	}

	prev := u.Status
	u.Status = status
	t.undo = append(t.undo, func() { u.Status = prev })
	return nil
}

func (t *txn) SetDailySpent(id string, spent decimal.Decimal, resetDate time.Time) error {
	u, ok := t.s.users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", repository.ErrNotFound, id)
	}

	prevSpent, prevReset := u.DailySpent, u.LastResetDate
	u.DailySpent = spent
	u.LastResetDate = resetDate
	t.undo = append(t.undo, func() {
		u.DailySpent, u.LastResetDate = prevSpent, prevReset
	})
	return nil
}

func (t *txn) SetDailyLimit(id string, limit decimal.Decimal) error {
	u, ok := t.s.users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", repository.ErrNotFound, id)
	}

	prev := u.DailyLimit
	u.DailyLimit = limit
	t.undo = append(t.undo, func() { u.DailyLimit = prev })
	return nil
}

func (t *txn) SetRequestStatus(id string, status domain.RequestStatus) error {
	r, ok := t.s.requests[id]
	if !ok {
		return fmt.Errorf("%w: payment request %s", repository.ErrNotFound, id)
	}

	prevStatus, prevUpdated := r.Status, r.UpdatedAt
	r.Status = status
	r.UpdatedAt = time.Now()
	t.undo = append(t.undo, func() {
		r.Status, r.UpdatedAt = prevStatus, prevUpdated
	})
	return nil
}

func (t *txn) AppendAdminLog(entry *domain.AdminLog) error {
	c := *entry
	t.s.adminLogs = append(t.s.adminLogs, &c)
	t.undo = append(t.undo, func() {
		t.s.adminLogs = t.s.adminLogs[:len(t.s.adminLogs)-1]
	})
	return nil
}

func dropLast(ids []string, id string) []string {
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
