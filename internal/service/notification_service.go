package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/repository"
)

// Deliverer pushes a stored notification to an external channel
// (email, push, websocket). The in-app copy is already persisted
// before delivery is attempted.
type Deliverer interface {
	Deliver(userID, title, message string) error
}

type NotificationService struct {
	repo         repository.NotificationRepository
	deliverer    Deliverer
	messageQueue chan domain.Notification
	workers      int
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	logger       *slog.Logger
}

func NewNotificationService(
	repo repository.NotificationRepository,
	deliverer Deliverer,
	workers int,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	if deliverer == nil {
		deliverer = &LogDeliverer{logger: logger}
	}

	service := &NotificationService{
		repo:         repo,
		deliverer:    deliverer,
		messageQueue: make(chan domain.Notification, 1000),
		workers:      workers,
		shutdownChan: make(chan struct{}),
		logger:       logger,
	}

	service.startWorkers()

	return service
}

// Notify persists an in-app notification and queues it for async delivery.
func (s *NotificationService) Notify(ctx context.Context, userID, title, message string, category domain.NotificationCategory) error {
	notification := domain.NewNotification(userID, title, message, category)

	if err := s.repo.Save(ctx, notification); err != nil {
		return fmt.Errorf("save notification: %w", err)
	}

	select {
	case s.messageQueue <- *notification:
		s.logger.Info("Notification queued",
			slog.String("user_id", userID),
			slog.String("category", string(category)),
			slog.String("title", title))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Queue is full. The in-app copy is stored, only the push is dropped.
		s.logger.Warn("Notification queue full, delivery skipped",
			slog.String("user_id", userID),
			slog.String("title", title))
		return nil
	}
}

func (s *NotificationService) ForUser(ctx context.Context, userID string, unreadOnly bool) ([]*domain.Notification, error) {
	all, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !unreadOnly {
		return all, nil
	}
	unread := make([]*domain.Notification, 0, len(all))
	for _, n := range all {
		if !n.Read {
			unread = append(unread, n)
		}
	}
	return unread, nil
}

// MarkRead marks one notification read. The acting user must own it.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	all, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	for _, n := range all {
		if n.ID == notificationID {
			return s.repo.MarkRead(ctx, notificationID)
		}
	}
	return fmt.Errorf("%w: notification %s", repository.ErrNotFound, notificationID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) startWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *NotificationService) worker(id int) {
	defer s.wg.Done()

	s.logger.Info("Notification worker started", slog.Int("worker_id", id))

	for {
		select {
		case msg := <-s.messageQueue:
			s.deliver(msg, id)
		case <-s.shutdownChan:
			s.logger.Info("Notification worker stopping", slog.Int("worker_id", id))
			return
		}
	}
}

func (s *NotificationService) deliver(msg domain.Notification, workerID int) {
	startTime := time.Now()

	err := s.deliverer.Deliver(msg.UserID, msg.Title, msg.Message)

	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Failed to deliver notification",
			slog.String("user_id", msg.UserID),
			slog.String("title", msg.Title),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
			slog.Duration("duration", duration))
	} else {
		s.logger.Info("Notification delivered",
			slog.String("user_id", msg.UserID),
			slog.String("category", string(msg.Category)),
			slog.Int("worker_id", workerID),
			slog.Duration("duration", duration))
	}
}

func (s *NotificationService) Shutdown(ctx context.Context) error {
	close(s.shutdownChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Notification service shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogDeliverer is the default delivery backend, it only logs.
type LogDeliverer struct {
	logger *slog.Logger
}

func (d *LogDeliverer) Deliver(userID, title, message string) error {
	d.logger.Debug("Notification delivery",
		slog.String("user_id", userID),
		slog.String("title", title),
		slog.String("message", message))
	return nil
}

// MockDeliverer records deliveries for tests.
type MockDeliverer struct {
	mu        sync.Mutex
	Delivered []struct {
		UserID  string
		Title   string
		Message string
	}
}

func (m *MockDeliverer) Deliver(userID, title, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Delivered = append(m.Delivered, struct {
		UserID  string
		Title   string
		Message string
	}{userID, title, message})
	return nil
}
