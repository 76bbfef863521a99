package processor

import (
	"fmt"
	"strings"
)

// ValidationError marks caller mistakes (bad amount, missing party). These
// are never retried and never reach the store.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type PolicyKind string

const (
	PolicyAccountSuspended PolicyKind = "account_suspended"
	PolicyAccountBlocked   PolicyKind = "account_blocked"
	PolicyDailyLimit       PolicyKind = "daily_limit"
	PolicyInsufficient     PolicyKind = "insufficient_balance"
	PolicyRequestState     PolicyKind = "request_state"
	PolicyTransactionState PolicyKind = "transaction_state"
	PolicyAdminOnly        PolicyKind = "admin_only"
)

// PolicyError is a definitive rejection by a business rule; the message is
// surfaced to the caller verbatim.
type PolicyError struct {
	Kind PolicyKind
	Msg  string
}

func (e *PolicyError) Error() string {
	return e.Msg
}

func policyf(kind PolicyKind, format string, args ...any) error {
	return &PolicyError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// FraudBlockError is distinct from PolicyError because the blocked path may
// carry a side effect (auto-suspension) and always surfaces the risk
// assessment.
type FraudBlockError struct {
	Score     int
	Reasons   []string
	Suspended bool
}

func (e *FraudBlockError) Error() string {
	if e.Suspended {
		return fmt.Sprintf("account suspended due to suspicious activity (risk %d: %s)",
			e.Score, strings.Join(e.Reasons, ", "))
	}
	return fmt.Sprintf("transfer blocked for security reasons (risk %d: %s)",
		e.Score, strings.Join(e.Reasons, ", "))
}
