package processor

import (
	"time"

	"github.com/shopspring/decimal"

	"wallet_ledger/internal/domain"
)

// LimitGuard tracks per-user outgoing spend against the user's daily cap.
// The counter resets when the local calendar day changes, not on a rolling
// 24h window. The guard itself is pure; persisting the rollover and the
// spend increment is the orchestrator's job so both land in the same atomic
// unit as the balance mutation.
type LimitGuard struct{}

func NewLimitGuard() *LimitGuard {
	return &LimitGuard{}
}

// RolloverDue reports whether the user's daily counter belongs to an
// earlier calendar day and must be reset before any comparison.
func (g *LimitGuard) RolloverDue(u *domain.User, now time.Time) bool {
	return !sameCalendarDay(u.LastResetDate, now)
}

// Check compares spent+amount against the user's cap. Callers apply any due
// rollover first.
func (g *LimitGuard) Check(u *domain.User, amount decimal.Decimal) error {
	if u.DailySpent.Add(amount).GreaterThan(u.DailyLimit) {
		return policyf(PolicyDailyLimit, "daily limit exceeded: limit %s, spent %s",
			u.DailyLimit, u.DailySpent)
	}
	return nil
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
