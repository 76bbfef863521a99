package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds one user's balance. There is exactly one account per user,
// keyed by UserID, and its balance is never negative.
type Account struct {
	UserID         string          `json:"user_id"`
	Balance        decimal.Decimal `json:"balance"`
	CreatedAt      time.Time       `json:"created_at"`
	LastActivityAt time.Time       `json:"last_activity_at"`
}

func NewAccount(userID string, balance decimal.Decimal) *Account {
	now := time.Now()
	return &Account{
		UserID:         userID,
		Balance:        balance,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}
