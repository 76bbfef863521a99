package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UserStatus string
type UserRole string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
	UserBlocked   UserStatus = "blocked"

	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// DefaultDailyLimit is the outgoing-transfer cap applied to new users.
var DefaultDailyLimit = decimal.NewFromInt(50000)

type User struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Role          UserRole        `json:"role"`
	Status        UserStatus      `json:"status"`
	DailyLimit    decimal.Decimal `json:"daily_limit"`
	DailySpent    decimal.Decimal `json:"daily_spent"`
	LastResetDate time.Time       `json:"last_reset_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

func NewUser(name string, role UserRole) *User {
	now := time.Now()
	return &User{
		ID:            uuid.NewString(),
		Name:          name,
		Role:          role,
		Status:        UserActive,
		DailyLimit:    DefaultDailyLimit,
		DailySpent:    decimal.Zero,
		LastResetDate: now,
		CreatedAt:     now,
	}
}

// CanSend reports whether the user may initiate outgoing transfers.
func (u *User) CanSend() bool {
	return u.Status == UserActive
}
