package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded for administrative and automatic policy decisions.
const (
	ActionAutoSuspend        = "AUTO_SUSPEND_USER"
	ActionSuspendUser        = "SUSPEND_USER"
	ActionUnsuspendUser      = "UNSUSPEND_USER"
	ActionAdjustBalance      = "ADJUST_BALANCE"
	ActionReverseTransaction = "REVERSE_TRANSACTION"
	ActionSetDailyLimit      = "SET_TRANSACTION_LIMIT"
	ActionFlagTransaction    = "FLAG_TRANSACTION"
	ActionUnflagTransaction  = "UNFLAG_TRANSACTION"
)

// AdminLog is one append-only audit entry.
type AdminLog struct {
	ID           string    `json:"id"`
	AdminID      string    `json:"admin_id"`
	Action       string    `json:"action"`
	TargetUserID string    `json:"target_user_id,omitempty"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewAdminLog(adminID, action, targetUserID, details string) *AdminLog {
	return &AdminLog{
		ID:           uuid.NewString(),
		AdminID:      adminID,
		Action:       action,
		TargetUserID: targetUserID,
		Details:      details,
		CreatedAt:    time.Now(),
	}
}
