package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationCategory string

const (
	NotifyTransaction NotificationCategory = "transaction"
	NotifyRequest     NotificationCategory = "request"
	NotifyAlert       NotificationCategory = "alert"
	NotifyInfo        NotificationCategory = "info"
)

type Notification struct {
	ID        string               `json:"id"`
	UserID    string               `json:"user_id"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Category  NotificationCategory `json:"category"`
	Read      bool                 `json:"read"`
	RelatedID string               `json:"related_id,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

func NewNotification(userID, title, message string, category NotificationCategory) *Notification {
	return &Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Category:  category,
		CreatedAt: time.Now(),
	}
}
