package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/repository"
	"wallet_ledger/internal/repository/memory"
)

type stubReceipts struct{}

func (stubReceipts) Receipt(txID string, amount decimal.Decimal, createdAt time.Time) string {
	return "receipt-" + txID
}

func seedUser(t *testing.T, store *memory.Store, name string, role domain.UserRole, balance int64, ageDays int) *domain.User {
	t.Helper()
	ctx := context.Background()

	u := domain.NewUser(name, role)
	u.CreatedAt = time.Now().AddDate(0, 0, -ageDays)
	if err := store.Users().Save(ctx, u); err != nil {
		t.Fatalf("save user failed: %v", err)
	}
	if err := store.Accounts().Save(ctx, domain.NewAccount(u.ID, decimal.NewFromInt(balance))); err != nil {
		t.Fatalf("save account failed: %v", err)
	}
	return u
}

func seedTransaction(t *testing.T, store *memory.Store, from, to string, amount int64, createdAt time.Time) {
	t.Helper()
	tx := domain.NewTransaction(domain.TypeTransfer, from, to, decimal.NewFromInt(amount))
	tx.Status = domain.StatusCompleted
	tx.CreatedAt = createdAt
	err := store.Atomically(context.Background(), func(txn repository.Txn) error {
		return txn.AppendTransaction(tx)
	})
	if err != nil {
		t.Fatalf("seed transaction failed: %v", err)
	}
}

func balanceOf(t *testing.T, store *memory.Store, userID string) decimal.Decimal {
	t.Helper()
	acct, err := store.Accounts().GetByUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	return acct.Balance
}

func TestTransferProcessor_Transfer_Success(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	sender := seedUser(t, store, "alice", domain.RoleUser, 1000, 30)
	recipient := seedUser(t, store, "bob", domain.RoleUser, 500, 30)

	proc := NewTransferProcessor(store, nil, nil, stubReceipts{}, nil)

	result, err := proc.Transfer(ctx, sender.ID, recipient.ID, decimal.NewFromInt(200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := balanceOf(t, store, sender.ID); !got.Equal(decimal.NewFromInt(800)) {
		t.Errorf("expected sender balance 800, got %s", got)
	}
	if got := balanceOf(t, store, recipient.ID); !got.Equal(decimal.NewFromInt(700)) {
		t.Errorf("expected recipient balance 700, got %s", got)
	}
	if result.Transaction.Status != domain.StatusCompleted {
		t.Errorf("expected status completed, got %s", result.Transaction.Status)
	}
	if result.Transaction.ReceiptID == "" {
		t.Error("expected receipt id to be set")
	}

	updated, _ := store.Users().GetByID(ctx, sender.ID)
	if !updated.DailySpent.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected daily spent 200, got %s", updated.DailySpent)
	}
}

func TestTransferProcessor_Transfer_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	sender := seedUser(t, store, "alice", domain.RoleUser, 100, 30)
	recipient := seedUser(t, store, "bob", domain.RoleUser, 0, 30)

	proc := NewTransferProcessor(store, nil, nil, nil, nil)

	_, err := proc.Transfer(ctx, sender.ID, recipient.ID, decimal.NewFromInt(150))

	var policyErr *PolicyError
	if !errors.As(err, &policyErr) || policyErr.Kind != PolicyInsufficient {
		t.Fatalf("expected insufficient balance policy error, got %v", err)
	}
	if got := balanceOf(t, store, sender.ID); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected sender balance unchanged at 100, got %s", got)
	}
	if txs, _ := store.Transactions().GetByUserID(ctx, sender.ID, 10, 0); len(txs) != 0 {
		t.Errorf("expected no ledger entries, got %d", len(txs))
	}
}

func TestTransferProcessor_Transfer_SuspendedSender(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	sender := seedUser(t, store, "alice", domain.RoleUser, 1000, 30)
	recipient := seedUser(t, store, "bob", domain.RoleUser, 0, 30)

	err := store.Atomically(ctx, func(txn repository.Txn) error {
		return txn.SetUserStatus(sender.ID, domain.UserSuspended)
	})
	if err != nil {
		t.Fatalf("suspend failed: %v", err)
	}

	proc := NewTransferProcessor(store, nil, nil, nil, nil)

	_, err = proc.Transfer(ctx, sender.ID, recipient.ID, decimal.NewFromInt(50))

	var policyErr *PolicyError
	if !errors.As(err, &policyErr) || policyErr.Kind != PolicyAccountSuspended {
		t.Fatalf("expected account suspended policy error, got %v", err)
	}
	if got := balanceOf(t, store, sender.ID); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected balance unchanged, got %s", got)
	}
}

func TestTransferProcessor_Transfer_SelfTransferRejected(t *testing.T) {
	store := memory.NewStore()
	sender := seedUser(t, store, "alice", domain.RoleUser, 1000, 30)

	proc := NewTransferProcessor(store, nil, nil, nil, nil)

	_, err := proc.Transfer(context.Background(), sender.ID, sender.ID, decimal.NewFromInt(50))

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := balanceOf(t, store, sender.ID); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected balance unchanged, got %s", got)
	}
}

func TestTransferProcessor_Transfer_DailyLimitExceeded(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	sender := seedUser(t, store, "alice", domain.RoleUser, 1000, 30)
	recipient := seedUser(t, store, "bob", domain.RoleUser, 0, 30)

	err := store.Atomically(ctx, func(txn repository.Txn) error {
		if err := txn.SetDailyLimit(sender.ID, decimal.NewFromInt(100)); err != nil {
			return err
		}
		return txn.SetDailySpent(sender.ID, decimal.NewFromInt(80), time.Now())
	})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	proc := NewTransferProcessor(store, nil, nil, nil, nil)

	_, err = proc.Transfer(ctx, sender.ID, recipient.ID, decimal.NewFromInt(30))

	var policyErr *PolicyError
	if !errors.As(err, &policyErr) || policyErr.Kind != PolicyDailyLimit {
		t.Fatalf("expected daily limit policy error, got %v", err)
	}
}

func TestTransferProcessor_Transfer_DayRolloverResetsSpend(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	sender := seedUser(t, store, "alice", domain.RoleUser, 1000, 30)
	recipient := seedUser(t, store, "bob", domain.RoleUser, 0, 30)

	yesterday := time.Now().AddDate(0, 0, -1)
	err := store.Atomically(ctx, func(txn repository.Txn) error {
		if err := txn.SetDailyLimit(sender.ID, decimal.NewFromInt(100)); err != nil {
			return err
		}
		return txn.SetDailySpent(sender.ID, decimal.NewFromInt(100), yesterday)
	})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	proc := NewTransferProcessor(store, nil, nil, nil, nil)

	// Yesterday's counter is at the cap; the rollover must reset it before
	// the comparison.
	if _, err := proc.Transfer(ctx, sender.ID, recipient.ID, decimal.NewFromInt(50)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, _ := store.Users().GetByID(ctx, sender.ID)
	if !updated.DailySpent.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected daily spent 50 after rollover, got %s", updated.DailySpent)
	}
}

func TestTransferProcessor_Transfer_BlockedWithoutSuspension(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	sender := seedUser(t, store, "alice", domain.RoleUser, 10000, 30)
	recipient := seedUser(t, store, "bob", domain.RoleUser, 0, 30)

	// Daily velocity (35) + hourly velocity (25) + rapid succession (15)
	// lands at 75: blocked, below the auto-suspend line.
	now := time.Now()
	for i := 0; i < 20; i++ {
		seedTransaction(t, store, sender.ID, recipient.ID, 30, now.Add(-30*time.Second))
	}

	proc := NewTransferProcessor(store, nil, nil, nil, nil)

	_, err := proc.Transfer(ctx, sender.ID, recipient.ID, decimal.NewFromInt(30))

	var fraudErr *FraudBlockError
	if !errors.As(err, &fraudErr) {
		t.Fatalf("expected fraud block error, got %v", err)
	}
	if fraudErr.Score < 70 || fraudErr.Score >= 80 {
		t.Errorf("expected score in [70,80), got %d", fraudErr.Score)
	}
	if fraudErr.Suspended {
		t.Error("expected no auto-suspension below threshold")
	}

	updated, _ := store.Users().GetByID(ctx, sender.ID)
	if updated.Status != domain.UserActive {
		t.Errorf("expected sender still active, got %s", updated.Status)
	}
	if got := balanceOf(t, store, sender.ID); !got.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("expected balance unchanged, got %s", got)
	}
}

func TestTransferProcessor_Transfer_AutoSuspend(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	sender := seedUser(t, store, "alice", domain.RoleUser, 10000, 30)
	recipient := seedUser(t, store, "bob", domain.RoleUser, 0, 30)

	// Velocity rules (75) plus amount anomaly (20): 95 triggers suspension.
	now := time.Now()
	for i := 0; i < 20; i++ {
		seedTransaction(t, store, sender.ID, recipient.ID, 10, now.Add(-30*time.Second))
	}

	proc := NewTransferProcessor(store, nil, nil, nil, nil)

	_, err := proc.Transfer(ctx, sender.ID, recipient.ID, decimal.NewFromInt(100))

	var fraudErr *FraudBlockError
	if !errors.As(err, &fraudErr) {
		t.Fatalf("expected fraud block error, got %v", err)
	}
	if !fraudErr.Suspended {
		t.Errorf("expected auto-suspension at score %d", fraudErr.Score)
	}

	updated, _ := store.Users().GetByID(ctx, sender.ID)
	if updated.Status != domain.UserSuspended {
		t.Errorf("expected sender suspended, got %s", updated.Status)
	}

	logs, _ := store.AdminLogs().GetAll(ctx, 10)
	if len(logs) != 1 || logs[0].Action != domain.ActionAutoSuspend {
		t.Errorf("expected one auto-suspend audit entry, got %+v", logs)
	}
}

type recordingNotifier struct {
	sent []struct {
		UserID   string
		Title    string
		Category domain.NotificationCategory
	}
}

func (n *recordingNotifier) Notify(ctx context.Context, userID, title, message string, category domain.NotificationCategory) error {
	n.sent = append(n.sent, struct {
		UserID   string
		Title    string
		Category domain.NotificationCategory
	}{userID, title, category})
	return nil
}

func TestTransferProcessor_BlockedNotifiesSenderAndReviewer(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	admin := seedUser(t, store, "root", domain.RoleAdmin, 0, 30)
	sender := seedUser(t, store, "alice", domain.RoleUser, 10000, 30)
	recipient := seedUser(t, store, "bob", domain.RoleUser, 0, 30)

	now := time.Now()
	for i := 0; i < 20; i++ {
		seedTransaction(t, store, sender.ID, recipient.ID, 30, now.Add(-30*time.Second))
	}

	notifier := &recordingNotifier{}
	proc := NewTransferProcessor(store, nil, notifier, nil, nil)

	_, err := proc.Transfer(ctx, sender.ID, recipient.ID, decimal.NewFromInt(30))

	var fraudErr *FraudBlockError
	if !errors.As(err, &fraudErr) {
		t.Fatalf("expected fraud block error, got %v", err)
	}

	var senderAlerted, reviewerAlerted bool
	for _, n := range notifier.sent {
		if n.UserID == sender.ID && n.Category == domain.NotifyAlert {
			senderAlerted = true
		}
		if n.UserID == admin.ID && n.Category == domain.NotifyAlert {
			reviewerAlerted = true
		}
	}
	if !senderAlerted {
		t.Error("expected sender to be alerted")
	}
	if !reviewerAlerted {
		t.Error("expected admin reviewer to be alerted")
	}
}

func TestFraudDetector_Evaluate_CleanTransfer(t *testing.T) {
	fd := NewFraudDetector(nil, RiskThresholds{})

	assessment := fd.Evaluate(Candidate{
		SenderID:    "u1",
		RecipientID: "u2",
		Amount:      decimal.NewFromInt(50),
	}, SenderHistory{
		AccountAgeDays:             30,
		MinutesSinceLast:           noRecentActivity,
		HasTransactedWithRecipient: true,
	})

	if assessment.Score != 0 || assessment.Verdict != VerdictAllow || assessment.IsFraud {
		t.Errorf("expected clean assessment, got %+v", assessment)
	}
}

func TestFraudDetector_Evaluate_NewUserLargeTransfer(t *testing.T) {
	fd := NewFraudDetector(nil, RiskThresholds{})

	// New user (30) + round amount (10) + new recipient (15) = 55.
	assessment := fd.Evaluate(Candidate{
		SenderID:    "u1",
		RecipientID: "u2",
		Amount:      decimal.NewFromInt(6000),
	}, SenderHistory{
		AccountAgeDays:   2,
		MinutesSinceLast: noRecentActivity,
	})

	if assessment.Score != 55 {
		t.Errorf("expected score 55, got %d (%v)", assessment.Score, assessment.Reasons)
	}
	if assessment.Verdict != VerdictReview {
		t.Errorf("expected verdict review, got %s", assessment.Verdict)
	}
	if !assessment.IsFraud {
		t.Error("expected IsFraud at review threshold")
	}
}

func TestFraudDetector_Evaluate_ThresholdBoundaries(t *testing.T) {
	score := func(n int) RiskAssessment {
		rules := []RiskRule{{
			Name:   "fixed",
			Weight: n,
			Applies: func(c Candidate, h SenderHistory) (bool, string) {
				return true, "fixed"
			},
		}}
		fd := NewFraudDetector(rules, RiskThresholds{})
		return fd.Evaluate(Candidate{}, SenderHistory{})
	}

	if got := score(69).Verdict; got != VerdictReview {
		t.Errorf("expected 69 to review, got %s", got)
	}
	if got := score(70).Verdict; got != VerdictBlock {
		t.Errorf("expected 70 to block, got %s", got)
	}
	if got := score(49).Verdict; got != VerdictMonitor {
		t.Errorf("expected 49 to monitor, got %s", got)
	}
	if got := score(50); got.Verdict != VerdictReview || !got.IsFraud {
		t.Errorf("expected 50 to review and flag fraud, got %+v", got)
	}
	if got := score(29).Verdict; got != VerdictAllow {
		t.Errorf("expected 29 to allow, got %s", got)
	}
	if got := score(30).Verdict; got != VerdictMonitor {
		t.Errorf("expected 30 to monitor, got %s", got)
	}
}

func TestFraudDetector_Evaluate_ScoreCappedAt100(t *testing.T) {
	rules := []RiskRule{
		{Name: "a", Weight: 60, Applies: func(c Candidate, h SenderHistory) (bool, string) { return true, "a" }},
		{Name: "b", Weight: 60, Applies: func(c Candidate, h SenderHistory) (bool, string) { return true, "b" }},
	}
	fd := NewFraudDetector(rules, RiskThresholds{})

	assessment := fd.Evaluate(Candidate{}, SenderHistory{})

	if assessment.Score != 100 {
		t.Errorf("expected capped score 100, got %d", assessment.Score)
	}
	if len(assessment.Reasons) != 2 {
		t.Errorf("expected both reasons recorded, got %v", assessment.Reasons)
	}
}

func TestFraudDetector_Evaluate_DailyVelocity(t *testing.T) {
	fd := NewFraudDetector(nil, RiskThresholds{})

	assessment := fd.Evaluate(Candidate{
		Amount: decimal.NewFromInt(10),
	}, SenderHistory{
		AccountAgeDays:             30,
		TxnsToday:                  20,
		MinutesSinceLast:           60,
		AvgAmount:                  decimal.NewFromInt(10),
		HasTransactedWithRecipient: true,
	})

	if assessment.Score != 35 {
		t.Errorf("expected score 35, got %d (%v)", assessment.Score, assessment.Reasons)
	}
	found := false
	for _, r := range assessment.Reasons {
		if r == "Daily transaction limit exceeded" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected daily velocity reason, got %v", assessment.Reasons)
	}
}

func TestLimitGuard_RolloverDue(t *testing.T) {
	guard := NewLimitGuard()
	now := time.Now()

	u := &domain.User{LastResetDate: now}
	if guard.RolloverDue(u, now) {
		t.Error("same day should not be due")
	}

	u.LastResetDate = now.AddDate(0, 0, -1)
	if !guard.RolloverDue(u, now) {
		t.Error("previous day should be due")
	}
}

func TestLimitGuard_Check(t *testing.T) {
	guard := NewLimitGuard()
	u := &domain.User{
		DailyLimit: decimal.NewFromInt(100),
		DailySpent: decimal.NewFromInt(60),
	}

	if err := guard.Check(u, decimal.NewFromInt(40)); err != nil {
		t.Errorf("spending exactly to the cap should pass, got %v", err)
	}

	err := guard.Check(u, decimal.NewFromInt(41))
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) || policyErr.Kind != PolicyDailyLimit {
		t.Errorf("expected daily limit policy error, got %v", err)
	}
}
