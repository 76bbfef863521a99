package domain

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string
type TransactionStatus string

const (
	TypeTransfer   TransactionType = "transfer"
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"

	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusReversed  TransactionStatus = "reversed"
	StatusFlagged   TransactionStatus = "flagged"
)

// Transaction is one immutable ledger entry. Once completed, only an admin
// reversal changes its status; flagging is an overlay that never moves money.
type Transaction struct {
	ID         string            `json:"id"`
	Type       TransactionType   `json:"type"`
	FromUserID string            `json:"from_user_id"`
	ToUserID   string            `json:"to_user_id"`
	Amount     decimal.Decimal   `json:"amount"`
	Status     TransactionStatus `json:"status"`
	Description string           `json:"description,omitempty"`
	Flagged    bool              `json:"flagged,omitempty"`
	FlagReason string            `json:"flag_reason,omitempty"`
	ReceiptID  string            `json:"receipt_id,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func NewTransaction(t TransactionType, fromUserID, toUserID string, amount decimal.Decimal) *Transaction {
	return &Transaction{
		ID:         generateTransactionID(),
		Type:       t,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Amount:     amount,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}
}

func (tx *Transaction) WithDescription(desc string) *Transaction {
	tx.Description = desc
	return tx
}

func generateTransactionID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
