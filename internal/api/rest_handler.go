package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/processor"
	"wallet_ledger/internal/repository"
	"wallet_ledger/internal/service"
	"wallet_ledger/pkg/crypto"
	"wallet_ledger/pkg/metrics"
)

type APIHandler struct {
	transfers      *processor.TransferProcessor
	requests       *processor.RequestWorkflow
	admin          *processor.AdminService
	notifications  *service.NotificationService
	store          repository.Store
	metrics        *metrics.MetricsCollector
	signer         *crypto.Signer
	logger         *slog.Logger
	requestTimeout time.Duration
}

func NewAPIHandler(
	transfers *processor.TransferProcessor,
	requests *processor.RequestWorkflow,
	admin *processor.AdminService,
	notifications *service.NotificationService,
	store repository.Store,
	collector *metrics.MetricsCollector,
	signer *crypto.Signer,
	logger *slog.Logger,
) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &APIHandler{
		transfers:      transfers,
		requests:       requests,
		admin:          admin,
		notifications:  notifications,
		store:          store,
		metrics:        collector,
		signer:         signer,
		logger:         logger,
		requestTimeout: 30 * time.Second,
	}
}

type TransferRequest struct {
	SenderID    string          `json:"sender_id"`
	RecipientID string          `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
}

type TransferResponse struct {
	Transaction *domain.Transaction `json:"transaction"`
	RiskScore   int                 `json:"risk_score"`
	Verdict     string              `json:"verdict"`
	Message     string              `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error     string   `json:"error"`
	Code      string   `json:"code,omitempty"`
	RiskScore int      `json:"risk_score,omitempty"`
	Reasons   []string `json:"reasons,omitempty"`
	Suspended bool     `json:"suspended,omitempty"`
}

func (h *APIHandler) TransferHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	result, err := h.transfers.Transfer(ctx, req.SenderID, req.RecipientID, req.Amount)
	duration := time.Since(startTime)

	if err != nil {
		h.metrics.RecordTransfer(duration, riskScoreOf(err), outcomeOf(err))
		h.writeProcessorError(w, err)
		return
	}

	h.metrics.RecordTransfer(duration, result.Assessment.Score, metrics.OutcomeCompleted)
	h.recordBalances(ctx, req.SenderID, req.RecipientID)

	h.sendJSON(w, TransferResponse{
		Transaction: result.Transaction,
		RiskScore:   result.Assessment.Score,
		Verdict:     string(result.Assessment.Verdict),
		Message:     "Transfer completed successfully",
	}, http.StatusCreated)

	h.logger.Info("Transfer completed",
		slog.String("transaction_id", result.Transaction.ID),
		slog.String("sender_id", req.SenderID),
		slog.String("recipient_id", req.RecipientID),
		slog.Int("risk_score", result.Assessment.Score))
}

func (h *APIHandler) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.sendError(w, "user_id is required", http.StatusBadRequest, "MISSING_USER_ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	account, err := h.store.Accounts().GetByUserID(ctx, userID)
	if err != nil {
		h.writeProcessorError(w, err)
		return
	}

	h.sendJSON(w, map[string]any{
		"user_id": account.UserID,
		"balance": account.Balance,
	}, http.StatusOK)
}

func (h *APIHandler) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	if id := r.URL.Query().Get("id"); id != "" {
		tx, err := h.transfers.GetTransaction(ctx, id)
		if err != nil {
			h.writeProcessorError(w, err)
			return
		}
		h.sendJSON(w, tx, http.StatusOK)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.sendError(w, "user_id is required", http.StatusBadRequest, "MISSING_USER_ID")
		return
	}

	limit, offset := pagination(r, 50)
	txs, err := h.store.Transactions().GetByUserID(ctx, userID, limit, offset)
	if err != nil {
		h.writeProcessorError(w, err)
		return
	}

	h.sendJSON(w, map[string]any{
		"transactions": txs,
		"count":        len(txs),
	}, http.StatusOK)
}

func (h *APIHandler) ReceiptHandler(w http.ResponseWriter, r *http.Request) {
	receiptID := r.PathValue("id")
	if receiptID == "" {
		h.sendError(w, "Receipt ID is required", http.StatusBadRequest, "MISSING_ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	tx, err := h.store.Transactions().GetByReceiptID(ctx, receiptID)
	if err != nil {
		h.writeProcessorError(w, err)
		return
	}

	verified, _ := h.signer.VerifyReceipt(tx.ID, tx.Amount, tx.CreatedAt, receiptID)

	h.sendJSON(w, map[string]any{
		"transaction": tx,
		"receipt_id":  receiptID,
		"verified":    verified,
	}, http.StatusOK)
}

type CreateRequestRequest struct {
	FromUserID string          `json:"from_user_id"`
	ToUserID   string          `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Message    string          `json:"message,omitempty"`
}

func (h *APIHandler) CreateRequestHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	pr, err := h.requests.Create(ctx, req.FromUserID, req.ToUserID, req.Amount, req.Message)
	if err != nil {
		h.writeProcessorError(w, err)
		return
	}

	h.sendJSON(w, pr, http.StatusCreated)
}

func (h *APIHandler) ListRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.sendError(w, "user_id is required", http.StatusBadRequest, "MISSING_USER_ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var (
		result []*domain.PaymentRequest
		err    error
	)
	switch box := r.URL.Query().Get("box"); box {
	case "sent":
		result, err = h.requests.Sent(ctx, userID)
	case "received", "":
		result, err = h.requests.Received(ctx, userID)
	default:
		h.sendError(w, "box must be sent or received", http.StatusBadRequest, "INVALID_BOX")
		return
	}
	if err != nil {
		h.writeProcessorError(w, err)
		return
	}

	h.sendJSON(w, map[string]any{
		"requests": result,
		"count":    len(result),
	}, http.StatusOK)
}

type RequestActionRequest struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
}

func (h *APIHandler) AcceptRequestHandler(w http.ResponseWriter, r *http.Request) {
	h.requestAction(w, r, h.requests.Accept)
}

func (h *APIHandler) RejectRequestHandler(w http.ResponseWriter, r *http.Request) {
	h.requestAction(w, r, h.requests.Reject)
}

func (h *APIHandler) requestAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, requestID, actingUserID string) (*domain.PaymentRequest, error),
) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req RequestActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if req.RequestID == "" || req.UserID == "" {
		h.sendError(w, "request_id and user_id are required", http.StatusBadRequest, "MISSING_FIELDS")
		return
	}

	pr, err := action(ctx, req.RequestID, req.UserID)
	if err != nil {
		h.writeProcessorError(w, err)
		return
	}

	h.sendJSON(w, pr, http.StatusOK)
}

func (h *APIHandler) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.sendError(w, "user_id is required", http.StatusBadRequest, "MISSING_USER_ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	unreadOnly := r.URL.Query().Get("unread") == "true"
	notifs, err := h.notifications.ForUser(ctx, userID, unreadOnly)
	if err != nil {
		h.writeProcessorError(w, err)
		return
	}

	h.sendJSON(w, map[string]any{
		"notifications": notifs,
		"count":         len(notifs),
	}, http.StatusOK)
}

type MarkReadRequest struct {
	UserID         string `json:"user_id"`
	NotificationID string `json:"notification_id,omitempty"`
	All            bool   `json:"all,omitempty"`
}

func (h *APIHandler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if req.UserID == "" {
		h.sendError(w, "user_id is required", http.StatusBadRequest, "MISSING_USER_ID")
		return
	}

	var err error
	if req.All {
		err = h.notifications.MarkAllRead(ctx, req.UserID)
	} else if req.NotificationID != "" {
		err = h.notifications.MarkRead(ctx, req.UserID, req.NotificationID)
	} else {
		h.sendError(w, "notification_id or all is required", http.StatusBadRequest, "MISSING_FIELDS")
		return
	}
	if err != nil {
		h.writeProcessorError(w, err)
		return
	}

	h.sendJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

type AdjustBalanceRequest struct {
	AdminID string          `json:"admin_id"`
	UserID  string          `json:"user_id"`
	Amount  decimal.Decimal `json:"amount"`
	Action  string          `json:"action"`
}

func (h *APIHandler) AdjustBalanceHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	tx, err := h.admin.AdjustBalance(ctx, req.AdminID, req.UserID, req.Amount, processor.AdjustAction(req.Action))
	if err != nil {
		h.writeProcessorError(w, err)
		return
	}

	h.recordBalances(ctx, req.UserID)
	h.sendJSON(w, tx, http.StatusCreated)
}

type ReverseRequest struct {
	AdminID       string `json:"admin_id"`
	TransactionID string `json:"transaction_id"`
}

func (h *APIHandler) ReverseHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req ReverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	tx, err := h.admin.ReverseTransaction(ctx, req.AdminID, req.TransactionID)
	if err != nil {
		h.writeProcessorError(w, err)
		return
	}

	h.recordBalances(ctx, tx.FromUserID, tx.ToUserID)
	h.sendJSON(w, tx, http.StatusOK)
}

type SetLimitRequest struct {
	AdminID string          `json:"admin_id"`
	UserID  string          `json:"user_id"`
	Limit   decimal.Decimal `json:"limit"`
}

func (h *APIHandler) SetLimitHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req SetLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	if err := h.admin.SetDailyLimit(ctx, req.AdminID, req.UserID, req.Limit); err != nil {
		h.writeProcessorError(w, err)
		return
	}

	h.sendJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

type SuspendRequest struct {
	AdminID   string `json:"admin_id"`
	UserID    string `json:"user_id"`
	Suspended bool   `json:"suspended"`
}

func (h *APIHandler) SuspendHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req SuspendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	if err := h.admin.SetSuspended(ctx, req.AdminID, req.UserID, req.Suspended); err != nil {
		h.writeProcessorError(w, err)
		return
	}

	h.sendJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

type FlagRequest struct {
	AdminID       string `json:"admin_id"`
	TransactionID string `json:"transaction_id"`
	Flag          bool   `json:"flag"`
	Reason        string `json:"reason,omitempty"`
}

func (h *APIHandler) FlagHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req FlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	if err := h.admin.FlagTransaction(ctx, req.AdminID, req.TransactionID, req.Flag, req.Reason); err != nil {
		h.writeProcessorError(w, err)
		return
	}

	h.sendJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (h *APIHandler) AdminTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	adminID := r.URL.Query().Get("admin_id")

	if r.URL.Query().Get("flagged") == "true" {
		txs, err := h.admin.FlaggedTransactions(ctx, adminID)
		if err != nil {
			h.writeProcessorError(w, err)
			return
		}
		h.sendJSON(w, map[string]any{"transactions": txs, "count": len(txs)}, http.StatusOK)
		return
	}

	limit, offset := pagination(r, 50)
	status := domain.TransactionStatus(r.URL.Query().Get("status"))
	userID := r.URL.Query().Get("user_id")

	txs, err := h.admin.ListTransactions(ctx, adminID, status, userID, limit, offset)
	if err != nil {
		h.writeProcessorError(w, err)
		return
	}

	h.sendJSON(w, map[string]any{"transactions": txs, "count": len(txs)}, http.StatusOK)
}

func (h *APIHandler) AdminLogsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	limit, _ := pagination(r, 100)
	logs, err := h.admin.Logs(ctx, r.URL.Query().Get("admin_id"), limit)
	if err != nil {
		h.writeProcessorError(w, err)
		return
	}

	h.sendJSON(w, map[string]any{"logs": logs, "count": len(logs)}, http.StatusOK)
}

func (h *APIHandler) AdminStatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	stats, err := h.admin.Stats(ctx, r.URL.Query().Get("admin_id"))
	if err != nil {
		h.writeProcessorError(w, err)
		return
	}

	h.sendJSON(w, stats, http.StatusOK)
}

func (h *APIHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	}
	h.sendJSON(w, response, http.StatusOK)
}

// writeProcessorError maps the processor's error taxonomy onto HTTP status
// codes. Fraud blocks carry the assessment in the body.
func (h *APIHandler) writeProcessorError(w http.ResponseWriter, err error) {
	var (
		validationErr *processor.ValidationError
		policyErr     *processor.PolicyError
		fraudErr      *processor.FraudBlockError
	)

	switch {
	case errors.As(err, &fraudErr):
		h.sendJSONError(w, ErrorResponse{
			Error:     fraudErr.Error(),
			Code:      "FRAUD_BLOCK",
			RiskScore: fraudErr.Score,
			Reasons:   fraudErr.Reasons,
			Suspended: fraudErr.Suspended,
		}, http.StatusForbidden)
	case errors.As(err, &validationErr):
		h.sendError(w, validationErr.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
	case errors.As(err, &policyErr):
		status := http.StatusBadRequest
		switch policyErr.Kind {
		case processor.PolicyAccountSuspended, processor.PolicyAccountBlocked, processor.PolicyAdminOnly:
			status = http.StatusForbidden
		}
		h.sendError(w, policyErr.Error(), status, "POLICY_"+string(policyErr.Kind))
	case errors.Is(err, repository.ErrNotFound):
		h.sendError(w, err.Error(), http.StatusNotFound, "NOT_FOUND")
	case errors.Is(err, repository.ErrConflict):
		h.sendError(w, err.Error(), http.StatusConflict, "CONFLICT")
	default:
		h.logger.Error("Unhandled request error", slog.String("error", err.Error()))
		h.sendError(w, "Internal server error", http.StatusInternalServerError, "SERVER_ERROR")
	}
}

func riskScoreOf(err error) int {
	var fraudErr *processor.FraudBlockError
	if errors.As(err, &fraudErr) {
		return fraudErr.Score
	}
	return -1
}

func outcomeOf(err error) metrics.TransferOutcome {
	var fraudErr *processor.FraudBlockError
	if errors.As(err, &fraudErr) {
		return metrics.OutcomeBlocked
	}
	return metrics.OutcomeFailed
}

func (h *APIHandler) recordBalances(ctx context.Context, userIDs ...string) {
	for _, id := range userIDs {
		account, err := h.store.Accounts().GetByUserID(ctx, id)
		if err != nil {
			continue
		}
		balance, _ := account.Balance.Float64()
		h.metrics.UpdateAccountBalance(id, balance)
	}
}

func pagination(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func (h *APIHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func (h *APIHandler) sendError(w http.ResponseWriter, message string, statusCode int, code string) {
	h.sendJSONError(w, ErrorResponse{Error: message, Code: code}, statusCode)
}

func (h *APIHandler) sendJSONError(w http.ResponseWriter, resp ErrorResponse, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)

	h.logger.Warn("API error response",
		slog.String("message", resp.Error),
		slog.String("code", resp.Code),
		slog.Int("status", statusCode))
}

// RegisterRoutes wires the HTTP surface. transferMiddleware, when non-nil,
// wraps only the transfer endpoint (idempotency).
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux, transferMiddleware func(http.Handler) http.Handler) {
	transfer := http.Handler(http.HandlerFunc(h.TransferHandler))
	if transferMiddleware != nil {
		transfer = transferMiddleware(transfer)
	}

	mux.Handle("POST /api/v1/transfer", transfer)
	mux.HandleFunc("GET /api/v1/balance", h.BalanceHandler)
	mux.HandleFunc("GET /api/v1/transactions", h.TransactionsHandler)
	mux.HandleFunc("GET /api/v1/receipts/{id}", h.ReceiptHandler)
	mux.HandleFunc("POST /api/v1/requests", h.CreateRequestHandler)
	mux.HandleFunc("GET /api/v1/requests", h.ListRequestsHandler)
	mux.HandleFunc("POST /api/v1/requests/accept", h.AcceptRequestHandler)
	mux.HandleFunc("POST /api/v1/requests/reject", h.RejectRequestHandler)
	mux.HandleFunc("GET /api/v1/notifications", h.NotificationsHandler)
	mux.HandleFunc("POST /api/v1/notifications/read", h.MarkReadHandler)
	mux.HandleFunc("POST /api/v1/admin/balance", h.AdjustBalanceHandler)
	mux.HandleFunc("POST /api/v1/admin/reverse", h.ReverseHandler)
	mux.HandleFunc("POST /api/v1/admin/limit", h.SetLimitHandler)
	mux.HandleFunc("POST /api/v1/admin/suspend", h.SuspendHandler)
	mux.HandleFunc("POST /api/v1/admin/flag", h.FlagHandler)
	mux.HandleFunc("GET /api/v1/admin/transactions", h.AdminTransactionsHandler)
	mux.HandleFunc("GET /api/v1/admin/logs", h.AdminLogsHandler)
	mux.HandleFunc("GET /api/v1/admin/stats", h.AdminStatsHandler)
	mux.HandleFunc("GET /api/health", h.HealthCheckHandler)
}
