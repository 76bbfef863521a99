package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/repository"
)

type AdjustAction string

const (
	AdjustAdd    AdjustAction = "add"
	AdjustDeduct AdjustAction = "deduct"
)

// AdminService runs the compensating operations. They bypass risk and limit
// checks but share the transfer path's atomicity discipline, and every one
// writes an audit entry in the same unit as its mutation.
type AdminService struct {
	store    repository.Store
	notifier Notifier
	receipts ReceiptIssuer
	logger   *slog.Logger
}

func NewAdminService(store repository.Store, notifier Notifier, receipts ReceiptIssuer, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AdminService{
		store:    store,
		notifier: notifier,
		receipts: receipts,
		logger:   logger,
	}
}

// AdjustBalance credits or debits the target's account and records a
// deposit/withdrawal ledger entry with the admin as counterparty. A deduct
// that would drive the balance negative is rejected with no ledger entry.
func (s *AdminService) AdjustBalance(ctx context.Context, adminID, targetUserID string, amount decimal.Decimal, action AdjustAction) (*domain.Transaction, error) {
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, validationf("amount must be positive")
	}
	if action != AdjustAdd && action != AdjustDeduct {
		return nil, validationf("unknown action %q", action)
	}

	var tx *domain.Transaction
	err = s.store.Atomically(ctx, func(t repository.Txn) error {
		if _, err := t.Account(targetUserID); err != nil {
			return err
		}

		if action == AdjustAdd {
			if err := t.Credit(targetUserID, amount); err != nil {
				return err
			}
			tx = domain.NewTransaction(domain.TypeDeposit, admin.ID, targetUserID, amount).
				WithDescription("Admin credit")
		} else {
			if err := t.Debit(targetUserID, amount); err != nil {
				return err
			}
			tx = domain.NewTransaction(domain.TypeWithdrawal, targetUserID, admin.ID, amount).
				WithDescription("Admin debit")
		}

		tx.Status = domain.StatusCompleted
		if s.receipts != nil {
			tx.ReceiptID = s.receipts.Receipt(tx.ID, tx.Amount, tx.CreatedAt)
		}
		if err := t.AppendTransaction(tx); err != nil {
			return err
		}

		return t.AppendAdminLog(domain.NewAdminLog(admin.ID, domain.ActionAdjustBalance, targetUserID,
			fmt.Sprintf("Balance %s by %s", action, amount)))
	})
	if err != nil {
		return nil, s.adjustError(err)
	}

	s.logger.InfoContext(ctx, "Balance adjusted",
		slog.String("admin_id", adminID),
		slog.String("target_user_id", targetUserID),
		slog.String("amount", amount.String()),
		slog.String("action", string(action)))

	s.notify(ctx, targetUserID, "Balance Adjusted",
		fmt.Sprintf("An administrator %sed %s to your account.", action, amount))

	return tx, nil
}

// ReverseTransaction undoes a completed ledger entry by applying the
// inverse balance deltas and flipping its status to reversed. Repeating the
// reversal fails instead of double-applying.
func (s *AdminService) ReverseTransaction(ctx context.Context, adminID, transactionID string) (*domain.Transaction, error) {
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}

	var reversed *domain.Transaction
	err = s.store.Atomically(ctx, func(t repository.Txn) error {
		tx, err := t.Transaction(transactionID)
		if err != nil {
			return err
		}
		if tx.Status == domain.StatusReversed {
			return policyf(PolicyTransactionState, "transaction already reversed")
		}
		if tx.Status != domain.StatusCompleted {
			return policyf(PolicyTransactionState, "only completed transactions can be reversed")
		}

		if err := t.Debit(tx.ToUserID, tx.Amount); err != nil {
			return err
		}
		if err := t.Credit(tx.FromUserID, tx.Amount); err != nil {
			return err
		}
		if err := t.SetTransactionStatus(tx.ID, domain.StatusReversed); err != nil {
			return err
		}
		reversed = tx
		reversed.Status = domain.StatusReversed

		return t.AppendAdminLog(domain.NewAdminLog(admin.ID, domain.ActionReverseTransaction, tx.FromUserID,
			fmt.Sprintf("Reversed transaction %s (%s)", tx.ID, tx.Amount)))
	})
	if err != nil {
		return nil, s.adjustError(err)
	}

	s.logger.InfoContext(ctx, "Transaction reversed",
		slog.String("admin_id", adminID),
		slog.String("transaction_id", transactionID))

	s.notify(ctx, reversed.FromUserID, "Transaction Reversed",
		fmt.Sprintf("Your transaction of %s was reversed by an administrator.", reversed.Amount))

	return reversed, nil
}

// SetDailyLimit changes the target's outgoing daily cap.
func (s *AdminService) SetDailyLimit(ctx context.Context, adminID, targetUserID string, newLimit decimal.Decimal) error {
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return err
	}
	if !newLimit.IsPositive() {
		return validationf("daily limit must be positive")
	}

	err = s.store.Atomically(ctx, func(t repository.Txn) error {
		if err := t.SetDailyLimit(targetUserID, newLimit); err != nil {
			return err
		}
		return t.AppendAdminLog(domain.NewAdminLog(admin.ID, domain.ActionSetDailyLimit, targetUserID,
			fmt.Sprintf("Daily limit set to %s", newLimit)))
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Daily limit updated",
		slog.String("admin_id", adminID),
		slog.String("target_user_id", targetUserID),
		slog.String("daily_limit", newLimit.String()))

	return nil
}

// SetSuspended suspends or reinstates the target user. This is the only
// path back to active after an automatic suspension.
func (s *AdminService) SetSuspended(ctx context.Context, adminID, targetUserID string, suspended bool) error {
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return err
	}

	status := domain.UserActive
	action := domain.ActionUnsuspendUser
	details := "User unsuspended"
	if suspended {
		status = domain.UserSuspended
		action = domain.ActionSuspendUser
		details = "User suspended"
	}

	err = s.store.Atomically(ctx, func(t repository.Txn) error {
		if err := t.SetUserStatus(targetUserID, status); err != nil {
			return err
		}
		return t.AppendAdminLog(domain.NewAdminLog(admin.ID, action, targetUserID, details))
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "User status updated",
		slog.String("admin_id", adminID),
		slog.String("target_user_id", targetUserID),
		slog.String("status", string(status)))

	return nil
}

// FlagTransaction toggles the fraud-review overlay on a ledger entry.
// Flagging never moves money.
func (s *AdminService) FlagTransaction(ctx context.Context, adminID, transactionID string, flag bool, reason string) error {
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return err
	}

	action := domain.ActionUnflagTransaction
	if flag {
		action = domain.ActionFlagTransaction
	}

	return s.store.Atomically(ctx, func(t repository.Txn) error {
		tx, err := t.Transaction(transactionID)
		if err != nil {
			return err
		}
		if err := t.SetTransactionFlag(tx.ID, flag, reason); err != nil {
			return err
		}
		return t.AppendAdminLog(domain.NewAdminLog(admin.ID, action, tx.FromUserID,
			fmt.Sprintf("Transaction %s: %s", tx.ID, reason)))
	})
}

// ListTransactions returns a page of the ledger, optionally filtered by
// status or participant.
func (s *AdminService) ListTransactions(ctx context.Context, adminID string, status domain.TransactionStatus, userID string, limit, offset int) ([]*domain.Transaction, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	if userID != "" {
		return s.store.Transactions().GetByUserID(ctx, userID, limit, offset)
	}
	if status != "" {
		return s.store.Transactions().GetByStatus(ctx, status, limit, offset)
	}
	return s.store.Transactions().GetByStatus(ctx, domain.StatusCompleted, limit, offset)
}

func (s *AdminService) FlaggedTransactions(ctx context.Context, adminID string) ([]*domain.Transaction, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.store.Transactions().GetFlagged(ctx)
}

func (s *AdminService) Logs(ctx context.Context, adminID string, limit int) ([]*domain.AdminLog, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.store.AdminLogs().GetAll(ctx, limit)
}

type PlatformStats struct {
	TotalUsers        int             `json:"total_users"`
	TotalTransactions int             `json:"total_transactions"`
	CompletedVolume   decimal.Decimal `json:"completed_volume"`
}

func (s *AdminService) Stats(ctx context.Context, adminID string) (*PlatformStats, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	users, err := s.store.Users().GetAll(ctx)
	if err != nil {
		return nil, err
	}
	count, err := s.store.Transactions().Count(ctx)
	if err != nil {
		return nil, err
	}
	volume, err := s.store.Transactions().CompletedVolume(ctx)
	if err != nil {
		return nil, err
	}

	return &PlatformStats{
		TotalUsers:        len(users),
		TotalTransactions: count,
		CompletedVolume:   volume,
	}, nil
}

func (s *AdminService) requireAdmin(ctx context.Context, adminID string) (*domain.User, error) {
	admin, err := s.store.Users().GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.Role != domain.RoleAdmin {
		return nil, policyf(PolicyAdminOnly, "access denied, admin only")
	}
	return admin, nil
}

func (s *AdminService) adjustError(err error) error {
	if errors.Is(err, repository.ErrInsufficientFunds) {
		return policyf(PolicyInsufficient, "insufficient balance")
	}
	return err
}

func (s *AdminService) notify(ctx context.Context, userID, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, title, message, domain.NotifyInfo); err != nil {
		s.logger.ErrorContext(ctx, "Notification delivery failed",
			slog.String("user_id", userID),
			slog.String("title", title),
			slog.String("error", err.Error()))
	}
}
