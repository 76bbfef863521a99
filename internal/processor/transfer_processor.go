package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/repository"
	"wallet_ledger/pkg/validator"
)

// autoSuspendScore is the risk score at which a blocked transfer also
// suspends the sender.
const autoSuspendScore = 80

// Notifier delivers a notification to a user. Delivery failure never rolls
// back a committed financial mutation; the orchestrator only logs it.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string, category domain.NotificationCategory) error
}

// ReceiptIssuer produces a verifiable receipt id for a completed ledger
// entry.
type ReceiptIssuer interface {
	Receipt(txID string, amount decimal.Decimal, createdAt time.Time) string
}

type TransferResult struct {
	Transaction *domain.Transaction
	Assessment  RiskAssessment
}

type TransferProcessor struct {
	store     repository.Store
	detector  *FraudDetector
	limits    *LimitGuard
	validator *validator.TransferValidator
	notifier  Notifier
	receipts  ReceiptIssuer
	logger    *slog.Logger
}

func NewTransferProcessor(
	store repository.Store,
	detector *FraudDetector,
	notifier Notifier,
	receipts ReceiptIssuer,
	logger *slog.Logger,
) *TransferProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	if detector == nil {
		detector = NewFraudDetector(nil, RiskThresholds{})
	}

	return &TransferProcessor{
		store:     store,
		detector:  detector,
		limits:    NewLimitGuard(),
		validator: validator.NewTransferValidator(),
		notifier:  notifier,
		receipts:  receipts,
		logger:    logger,
	}
}

// Transfer moves amount from sender to recipient. Risk evaluation runs
// before any mutation so a high-risk transfer is blocked (and may suspend
// the sender) even when it would also fail a limit or balance check; the
// balance/ledger/spend mutation is one atomic unit.
func (p *TransferProcessor) Transfer(ctx context.Context, senderID, recipientID string, amount decimal.Decimal) (*TransferResult, error) {
	if err := p.validator.ValidateTransfer(senderID, recipientID, amount); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	sender, err := p.store.Users().GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	history, err := buildSenderHistory(ctx, p.store.Transactions(), sender, recipientID, now)
	if err != nil {
		return nil, fmt.Errorf("building sender history: %w", err)
	}

	assessment := p.detector.Evaluate(Candidate{
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
	}, history)

	if assessment.Verdict == VerdictBlock {
		return nil, p.blockTransfer(ctx, sender, amount, assessment)
	}

	// A due day rollover persists before the limit comparison, and survives
	// even when the transfer is rejected afterwards.
	if p.limits.RolloverDue(sender, now) {
		err := p.store.Atomically(ctx, func(t repository.Txn) error {
			return t.SetDailySpent(sender.ID, decimal.Zero, now)
		})
		if err != nil {
			return nil, fmt.Errorf("resetting daily spend: %w", err)
		}
	}

	var tx *domain.Transaction
	err = p.store.Atomically(ctx, func(t repository.Txn) error {
		u, err := t.User(senderID)
		if err != nil {
			return err
		}
		switch u.Status {
		case domain.UserSuspended:
			return policyf(PolicyAccountSuspended, "account suspended, contact support")
		case domain.UserBlocked:
			return policyf(PolicyAccountBlocked, "account blocked, contact support")
		}

		if err := p.limits.Check(u, amount); err != nil {
			return err
		}

		acct, err := t.Account(senderID)
		if err != nil {
			return err
		}
		if acct.Balance.LessThan(amount) {
			return policyf(PolicyInsufficient, "insufficient balance")
		}
		if _, err := t.Account(recipientID); err != nil {
			return err
		}

		if err := t.Debit(senderID, amount); err != nil {
			return err
		}
		if err := t.Credit(recipientID, amount); err != nil {
			return err
		}

		tx = domain.NewTransaction(domain.TypeTransfer, senderID, recipientID, amount)
		tx.Status = domain.StatusCompleted
		if p.receipts != nil {
			tx.ReceiptID = p.receipts.Receipt(tx.ID, tx.Amount, tx.CreatedAt)
		}
		if err := t.AppendTransaction(tx); err != nil {
			return err
		}

		return t.SetDailySpent(senderID, u.DailySpent.Add(amount), u.LastResetDate)
	})
	if err != nil {
		p.logger.WarnContext(ctx, "Transfer rejected",
			slog.String("sender_id", senderID),
			slog.String("recipient_id", recipientID),
			slog.String("amount", amount.String()),
			slog.String("error", err.Error()))
		return nil, err
	}

	p.logger.InfoContext(ctx, "Transfer completed",
		slog.String("transaction_id", tx.ID),
		slog.String("sender_id", senderID),
		slog.String("recipient_id", recipientID),
		slog.String("amount", amount.String()),
		slog.Int("risk_score", assessment.Score))

	p.notify(ctx, senderID, "Transfer Sent",
		fmt.Sprintf("You sent %s.", amount), domain.NotifyTransaction)
	p.notify(ctx, recipientID, "Money Received",
		fmt.Sprintf("You received %s.", amount), domain.NotifyTransaction)

	return &TransferResult{Transaction: tx, Assessment: assessment}, nil
}

// GetTransaction looks up one ledger entry.
func (p *TransferProcessor) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return p.store.Transactions().GetByID(ctx, id)
}

func (p *TransferProcessor) blockTransfer(ctx context.Context, sender *domain.User, amount decimal.Decimal, assessment RiskAssessment) error {
	suspended := assessment.Score >= autoSuspendScore
	if suspended {
		err := p.store.Atomically(ctx, func(t repository.Txn) error {
			if err := t.SetUserStatus(sender.ID, domain.UserSuspended); err != nil {
				return err
			}
			return t.AppendAdminLog(domain.NewAdminLog(sender.ID, domain.ActionAutoSuspend, sender.ID,
				fmt.Sprintf("Auto-suspended due to high fraud risk (%d%%). Reasons: %s",
					assessment.Score, strings.Join(assessment.Reasons, ", "))))
		})
		if err != nil {
			suspended = false
			p.logger.ErrorContext(ctx, "Auto-suspension failed",
				slog.String("user_id", sender.ID),
				slog.String("error", err.Error()))
		}
	}

	p.logger.WarnContext(ctx, "Transfer blocked by risk engine",
		slog.String("sender_id", sender.ID),
		slog.String("amount", amount.String()),
		slog.Int("risk_score", assessment.Score),
		slog.Bool("suspended", suspended))

	userMsg := "This transaction was blocked for security reasons. Please contact support if this was a legitimate transaction."
	if suspended {
		userMsg = "Your account has been suspended due to suspicious activity. Please contact support."
	}
	p.notify(ctx, sender.ID, "Transaction Blocked", userMsg, domain.NotifyAlert)

	if reviewer := p.findReviewer(ctx); reviewer != "" {
		title := "High-Risk Transaction Blocked"
		if suspended {
			title = "Account Auto-Suspended"
		}
		p.notify(ctx, reviewer, title,
			fmt.Sprintf("User %s: transfer of %s blocked. Risk: %d%%. Reasons: %s",
				sender.Name, amount, assessment.Score, strings.Join(assessment.Reasons, ", ")),
			domain.NotifyAlert)
	}

	return &FraudBlockError{
		Score:     assessment.Score,
		Reasons:   assessment.Reasons,
		Suspended: suspended,
	}
}

// findReviewer picks the first admin user as the designated fraud reviewer.
func (p *TransferProcessor) findReviewer(ctx context.Context) string {
	users, err := p.store.Users().GetAll(ctx)
	if err != nil {
		return ""
	}
	for _, u := range users {
		if u.Role == domain.RoleAdmin {
			return u.ID
		}
	}
	return ""
}

func (p *TransferProcessor) notify(ctx context.Context, userID, title, message string, category domain.NotificationCategory) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, userID, title, message, category); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.ErrorContext(ctx, "Notification delivery failed",
			slog.String("user_id", userID),
			slog.String("title", title),
			slog.String("error", err.Error()))
	}
}
