package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
	RequestExpired  RequestStatus = "expired"
)

// RequestTTL is how long a payment request stays open before it lapses.
const RequestTTL = 7 * 24 * time.Hour

// PaymentRequest asks ToUserID to pay Amount to FromUserID. Accepted,
// rejected and expired are terminal states.
type PaymentRequest struct {
	ID         string          `json:"id"`
	FromUserID string          `json:"from_user_id"`
	ToUserID   string          `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Message    string          `json:"message,omitempty"`
	Status     RequestStatus   `json:"status"`
	ExpiresAt  time.Time       `json:"expires_at"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func NewPaymentRequest(fromUserID, toUserID string, amount decimal.Decimal, message string) *PaymentRequest {
	now := time.Now()
	return &PaymentRequest{
		ID:         uuid.NewString(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Amount:     amount,
		Message:    message,
		Status:     RequestPending,
		ExpiresAt:  now.Add(RequestTTL),
		CreatedAt:  now,
	}
}

// Lapsed reports whether a still-pending request is past its expiry.
func (r *PaymentRequest) Lapsed(now time.Time) bool {
	return r.Status == RequestPending && now.After(r.ExpiresAt)
}
