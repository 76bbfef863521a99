package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/repository"
)

// RequestWorkflow runs the payment-request state machine on top of the
// transfer orchestrator: pending goes to accepted, rejected or expired and
// stops there. Expiry is evaluated lazily whenever a request is read or
// acted on; nothing sweeps the collection.
type RequestWorkflow struct {
	store     repository.Store
	transfers *TransferProcessor
	notifier  Notifier
	logger    *slog.Logger
}

func NewRequestWorkflow(store repository.Store, transfers *TransferProcessor, notifier Notifier, logger *slog.Logger) *RequestWorkflow {
	if logger == nil {
		logger = slog.Default()
	}

	return &RequestWorkflow{
		store:     store,
		transfers: transfers,
		notifier:  notifier,
		logger:    logger,
	}
}

// Create records a request by fromUserID asking toUserID for amount.
func (w *RequestWorkflow) Create(ctx context.Context, fromUserID, toUserID string, amount decimal.Decimal, message string) (*domain.PaymentRequest, error) {
	if !amount.IsPositive() {
		return nil, validationf("amount must be positive")
	}
	if fromUserID == toUserID {
		return nil, validationf("cannot request money from yourself")
	}
	if _, err := w.store.Users().GetByID(ctx, fromUserID); err != nil {
		return nil, err
	}
	if _, err := w.store.Users().GetByID(ctx, toUserID); err != nil {
		return nil, err
	}

	request := domain.NewPaymentRequest(fromUserID, toUserID, amount, message)
	if err := w.store.Requests().Save(ctx, request); err != nil {
		return nil, err
	}

	w.logger.InfoContext(ctx, "Payment request created",
		slog.String("request_id", request.ID),
		slog.String("from_user_id", fromUserID),
		slog.String("to_user_id", toUserID),
		slog.String("amount", amount.String()))

	w.notify(ctx, toUserID, "Payment Request",
		fmt.Sprintf("You have a payment request of %s.", amount))

	return request, nil
}

// Accept pays a pending request: actingUserID must be the payer, and the
// resulting leg is an ordinary transfer subject to the orchestrator's own
// risk and limit rules.
func (w *RequestWorkflow) Accept(ctx context.Context, requestID, actingUserID string) (*domain.PaymentRequest, error) {
	request, err := w.actionable(ctx, requestID, actingUserID)
	if err != nil {
		return nil, err
	}

	if _, err := w.transfers.Transfer(ctx, request.ToUserID, request.FromUserID, request.Amount); err != nil {
		return nil, err
	}

	if err := w.setStatus(ctx, request.ID, domain.RequestAccepted); err != nil {
		// The transfer is committed; the request stays pending and the
		// mismatch has to be surfaced, not unwound.
		w.logger.ErrorContext(ctx, "Request accepted but status update failed",
			slog.String("request_id", request.ID),
			slog.String("error", err.Error()))
		return nil, err
	}
	request.Status = domain.RequestAccepted

	w.notify(ctx, request.FromUserID, "Payment Received",
		fmt.Sprintf("Your payment request of %s was accepted.", request.Amount))

	return request, nil
}

// Reject declines a pending request. No balance effect.
func (w *RequestWorkflow) Reject(ctx context.Context, requestID, actingUserID string) (*domain.PaymentRequest, error) {
	request, err := w.actionable(ctx, requestID, actingUserID)
	if err != nil {
		return nil, err
	}

	if err := w.setStatus(ctx, request.ID, domain.RequestRejected); err != nil {
		return nil, err
	}
	request.Status = domain.RequestRejected

	w.notify(ctx, request.FromUserID, "Payment Request Rejected",
		fmt.Sprintf("Your payment request of %s was rejected.", request.Amount))

	return request, nil
}

// Sent lists the still-pending requests created by userID.
func (w *RequestWorkflow) Sent(ctx context.Context, userID string) ([]*domain.PaymentRequest, error) {
	requests, err := w.store.Requests().GetSent(ctx, userID)
	if err != nil {
		return nil, err
	}
	return w.pendingOnly(ctx, requests), nil
}

// Received lists the still-pending requests addressed to userID.
func (w *RequestWorkflow) Received(ctx context.Context, userID string) ([]*domain.PaymentRequest, error) {
	requests, err := w.store.Requests().GetReceived(ctx, userID)
	if err != nil {
		return nil, err
	}
	return w.pendingOnly(ctx, requests), nil
}

// actionable loads the request and enforces authorization, terminal-state
// and lazy-expiry rules shared by Accept and Reject.
func (w *RequestWorkflow) actionable(ctx context.Context, requestID, actingUserID string) (*domain.PaymentRequest, error) {
	request, err := w.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.ToUserID != actingUserID {
		return nil, fmt.Errorf("%w: payment request %s", repository.ErrNotFound, requestID)
	}
	if request.Lapsed(time.Now()) {
		if err := w.setStatus(ctx, request.ID, domain.RequestExpired); err != nil {
			return nil, err
		}
		return nil, policyf(PolicyRequestState, "payment request has expired")
	}
	if request.Status != domain.RequestPending {
		return nil, policyf(PolicyRequestState, "payment request already %s", request.Status)
	}
	return request, nil
}

func (w *RequestWorkflow) pendingOnly(ctx context.Context, requests []*domain.PaymentRequest) []*domain.PaymentRequest {
	now := time.Now()
	result := make([]*domain.PaymentRequest, 0, len(requests))
	for _, request := range requests {
		if request.Lapsed(now) {
			if err := w.setStatus(ctx, request.ID, domain.RequestExpired); err != nil {
				w.logger.ErrorContext(ctx, "Marking request expired failed",
					slog.String("request_id", request.ID),
					slog.String("error", err.Error()))
			}
			continue
		}
		if request.Status == domain.RequestPending {
			result = append(result, request)
		}
	}
	return result
}

func (w *RequestWorkflow) setStatus(ctx context.Context, requestID string, status domain.RequestStatus) error {
	return w.store.Atomically(ctx, func(t repository.Txn) error {
		return t.SetRequestStatus(requestID, status)
	})
}

func (w *RequestWorkflow) notify(ctx context.Context, userID, title, message string) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.Notify(ctx, userID, title, message, domain.NotifyRequest); err != nil {
		w.logger.ErrorContext(ctx, "Notification delivery failed",
			slog.String("user_id", userID),
			slog.String("title", title),
			slog.String("error", err.Error()))
	}
}
