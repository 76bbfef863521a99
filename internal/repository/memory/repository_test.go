package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/repository"
)

func TestUserRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	u := domain.NewUser("alice", domain.RoleUser)
	if err := store.Users().Save(ctx, u); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := store.Users().GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != "alice" || got.Status != domain.UserActive {
		t.Errorf("unexpected user: %+v", got)
	}
	if !got.DailyLimit.Equal(domain.DefaultDailyLimit) {
		t.Errorf("expected default daily limit, got %s", got.DailyLimit)
	}

	if err := store.Users().Save(ctx, u); !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("expected duplicate error, got %v", err)
	}
	if _, err := store.Users().GetByID(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUserRepository_ReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	u := domain.NewUser("alice", domain.RoleUser)
	_ = store.Users().Save(ctx, u)

	got, _ := store.Users().GetByID(ctx, u.ID)
	got.Status = domain.UserBlocked

	again, _ := store.Users().GetByID(ctx, u.ID)
	if again.Status != domain.UserActive {
		t.Errorf("mutating a read result leaked into the store: %+v", again)
	}
}

func TestAtomically_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	u := domain.NewUser("alice", domain.RoleUser)
	_ = store.Users().Save(ctx, u)
	_ = store.Accounts().Save(ctx, domain.NewAccount(u.ID, decimal.NewFromInt(100)))

	boom := fmt.Errorf("boom")
	tx := domain.NewTransaction(domain.TypeTransfer, u.ID, "other", decimal.NewFromInt(40))

	err := store.Atomically(ctx, func(txn repository.Txn) error {
		if err := txn.Debit(u.ID, decimal.NewFromInt(40)); err != nil {
			return err
		}
		if err := txn.AppendTransaction(tx); err != nil {
			return err
		}
		if err := txn.SetUserStatus(u.ID, domain.UserSuspended); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	acct, _ := store.Accounts().GetByUserID(ctx, u.ID)
	if !acct.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected debit rolled back, balance %s", acct.Balance)
	}
	if _, err := store.Transactions().GetByID(ctx, tx.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected transaction rolled back, got %v", err)
	}
	if got, _ := store.Users().GetByID(ctx, u.ID); got.Status != domain.UserActive {
		t.Errorf("expected status rolled back, got %s", got.Status)
	}
}

func TestAtomically_DebitRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	u := domain.NewUser("alice", domain.RoleUser)
	_ = store.Users().Save(ctx, u)
	_ = store.Accounts().Save(ctx, domain.NewAccount(u.ID, decimal.NewFromInt(10)))

	err := store.Atomically(ctx, func(txn repository.Txn) error {
		return txn.Debit(u.ID, decimal.NewFromInt(20))
	})
	if !errors.Is(err, repository.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	acct, _ := store.Accounts().GetByUserID(ctx, u.ID)
	if !acct.Balance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected balance unchanged, got %s", acct.Balance)
	}
}

func TestTransactionRepository_Indexes(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	tx := domain.NewTransaction(domain.TypeTransfer, "u1", "u2", decimal.NewFromInt(100))
	tx.Status = domain.StatusCompleted
	tx.ReceiptID = "receipt-1"
	err := store.Atomically(ctx, func(txn repository.Txn) error {
		return txn.AppendTransaction(tx)
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	byReceipt, err := store.Transactions().GetByReceiptID(ctx, "receipt-1")
	if err != nil || byReceipt.ID != tx.ID {
		t.Errorf("receipt lookup failed: %v %+v", err, byReceipt)
	}

	for _, userID := range []string{"u1", "u2"} {
		txs, _ := store.Transactions().GetByUserID(ctx, userID, 10, 0)
		if len(txs) != 1 {
			t.Errorf("expected 1 transaction for %s, got %d", userID, len(txs))
		}
	}

	sent, _ := store.Transactions().GetBySender(ctx, "u2")
	if len(sent) != 0 {
		t.Errorf("expected no sent transactions for recipient, got %d", len(sent))
	}
}

func TestTransactionRepository_Pagination(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		tx := domain.NewTransaction(domain.TypeTransfer, "u1", "u2", decimal.NewFromInt(int64(i+1)))
		tx.Status = domain.StatusCompleted
		tx.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		err := store.Atomically(ctx, func(txn repository.Txn) error {
			return txn.AppendTransaction(tx)
		})
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	page, _ := store.Transactions().GetByUserID(ctx, "u1", 2, 0)
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
	// Newest first: the last appended amount comes back first.
	if !page[0].Amount.Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected newest first, got amount %s", page[0].Amount)
	}

	rest, _ := store.Transactions().GetByUserID(ctx, "u1", 10, 4)
	if len(rest) != 1 {
		t.Errorf("expected 1 remaining at offset 4, got %d", len(rest))
	}
	empty, _ := store.Transactions().GetByUserID(ctx, "u1", 10, 99)
	if len(empty) != 0 {
		t.Errorf("expected empty page past the end, got %d", len(empty))
	}
}

func TestNotificationRepository_ReadTracking(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	n1 := domain.NewNotification("u1", "a", "first", domain.NotifyInfo)
	n2 := domain.NewNotification("u1", "b", "second", domain.NotifyAlert)
	_ = store.Notifications().Save(ctx, n1)
	_ = store.Notifications().Save(ctx, n2)

	if err := store.Notifications().MarkRead(ctx, n1.ID); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}

	all, _ := store.Notifications().GetByUserID(ctx, "u1")
	if len(all) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(all))
	}
	unread := 0
	for _, n := range all {
		if !n.Read {
			unread++
		}
	}
	if unread != 1 {
		t.Errorf("expected 1 unread, got %d", unread)
	}

	if err := store.Notifications().MarkAllRead(ctx, "u1"); err != nil {
		t.Fatalf("mark all read failed: %v", err)
	}
	all, _ = store.Notifications().GetByUserID(ctx, "u1")
	for _, n := range all {
		if !n.Read {
			t.Errorf("expected all read, %s still unread", n.ID)
		}
	}
}

func TestRequestRepository_SentAndReceived(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	r1 := domain.NewPaymentRequest("u1", "u2", decimal.NewFromInt(10), "")
	r2 := domain.NewPaymentRequest("u2", "u1", decimal.NewFromInt(20), "")
	_ = store.Requests().Save(ctx, r1)
	_ = store.Requests().Save(ctx, r2)

	sent, _ := store.Requests().GetSent(ctx, "u1")
	if len(sent) != 1 || sent[0].ID != r1.ID {
		t.Errorf("unexpected sent listing: %+v", sent)
	}
	received, _ := store.Requests().GetReceived(ctx, "u1")
	if len(received) != 1 || received[0].ID != r2.ID {
		t.Errorf("unexpected received listing: %+v", received)
	}
}
