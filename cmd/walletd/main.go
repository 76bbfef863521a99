package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"wallet_ledger/internal/api"
	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/processor"
	"wallet_ledger/internal/repository/memory"
	"wallet_ledger/internal/service"
	"wallet_ledger/pkg/crypto"
	"wallet_ledger/pkg/metrics"
)

const (
	appName = "wallet_ledger"
)

func main() {
	logger := setupLogger()
	logger.Info("Starting application",
		slog.String("name", appName))

	store := memory.NewStore()
	metricsCollector := metrics.NewMetricsCollector(logger)
	signer := crypto.NewSigner(envOr("RECEIPT_SECRET", "dev-receipt-secret"), logger)
	notificationService := service.NewNotificationService(store.Notifications(), nil, 3, logger)

	detector := processor.NewFraudDetector(nil, processor.DefaultRiskThresholds())
	transferProcessor := processor.NewTransferProcessor(store, detector, notificationService, signer, logger)
	requestWorkflow := processor.NewRequestWorkflow(store, transferProcessor, notificationService, logger)
	adminService := processor.NewAdminService(store, notificationService, signer, logger)

	bootstrapAdmin(store, logger)

	apiHandler := api.NewAPIHandler(
		transferProcessor,
		requestWorkflow,
		adminService,
		notificationService,
		store,
		metricsCollector,
		signer,
		logger,
	)

	metricsServer := metricsCollector.StartMetricsServer(envOr("METRICS_ADDR", ":9091"))
	httpServer := startHTTPServer(apiHandler, setupIdempotency(logger), logger)
	waitForShutdown(logger, httpServer, metricsServer, notificationService, metricsCollector)
	logger.Info("Application shutdown complete")
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// bootstrapAdmin seeds one admin user so admin endpoints are reachable on a
// fresh store. The id is logged once at startup.
func bootstrapAdmin(store *memory.Store, logger *slog.Logger) {
	ctx := context.Background()

	admin := domain.NewUser(envOr("ADMIN_NAME", "platform-admin"), domain.RoleAdmin)
	if err := store.Users().Save(ctx, admin); err != nil {
		logger.Error("Failed to seed admin user", slog.String("error", err.Error()))
		return
	}
	if err := store.Accounts().Save(ctx, domain.NewAccount(admin.ID, decimal.Zero)); err != nil {
		logger.Error("Failed to seed admin account", slog.String("error", err.Error()))
		return
	}

	logger.Info("Admin user seeded", slog.String("admin_id", admin.ID))
}

func setupIdempotency(logger *slog.Logger) func(http.Handler) http.Handler {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		logger.Info("REDIS_ADDR not set, transfer idempotency disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	logger.Info("Transfer idempotency enabled", slog.String("redis_addr", addr))
	return api.Idempotency(rdb, logger)
}

func startHTTPServer(apiHandler *api.APIHandler, transferMiddleware func(http.Handler) http.Handler, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	apiHandler.RegisterRoutes(mux, transferMiddleware)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name": "%s", "status": "ok"}`, appName)
	})

	server := &http.Server{
		Addr:         envOr("LISTEN_ADDR", ":8080"),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	return server
}

func waitForShutdown(
	logger *slog.Logger,
	httpServer *http.Server,
	metricsServer *http.Server,
	notificationService *service.NotificationService,
	metricsCollector *metrics.MetricsCollector,
) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}

	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
	}

	if err := notificationService.Shutdown(ctx); err != nil {
		logger.Error("Notification service shutdown failed", slog.String("error", err.Error()))
	}

	if err := metricsCollector.Shutdown(ctx); err != nil {
		logger.Error("Metrics collector shutdown failed", slog.String("error", err.Error()))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
