package processor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/repository"
)

// noRecentActivity stands in for minutes-since-last when the sender has no
// prior outgoing transactions, keeping the rapid-succession rule quiet.
const noRecentActivity = 999

// buildSenderHistory summarizes the sender's outgoing ledger entries for
// the fraud detector. Read-only, computed before the critical section.
func buildSenderHistory(ctx context.Context, txRepo repository.TransactionRepository, sender *domain.User, recipientID string, now time.Time) (SenderHistory, error) {
	sent, err := txRepo.GetBySender(ctx, sender.ID)
	if err != nil {
		return SenderHistory{}, err
	}

	h := SenderHistory{
		AccountAgeDays:   int(now.Sub(sender.CreatedAt).Hours() / 24),
		MinutesSinceLast: noRecentActivity,
	}

	total := decimal.Zero
	for _, tx := range sent {
		total = total.Add(tx.Amount)
		if now.Sub(tx.CreatedAt) < time.Hour {
			h.TxnsLastHour++
		}
		if sameCalendarDay(tx.CreatedAt, now) {
			h.TxnsToday++
		}
		if tx.ToUserID == recipientID {
			h.HasTransactedWithRecipient = true
		}
	}

	if len(sent) > 0 {
		h.AvgAmount = total.Div(decimal.NewFromInt(int64(len(sent))))
		last := sent[len(sent)-1]
		h.MinutesSinceLast = now.Sub(last.CreatedAt).Minutes()
	}

	return h, nil
}
