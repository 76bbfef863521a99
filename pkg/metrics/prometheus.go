package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsCollector struct {
	registry              *prometheus.Registry
	transfersProcessed    prometheus.Counter
	transfersBlocked      prometheus.Counter
	transfersFailed       prometheus.Counter
	transferDuration      prometheus.Histogram
	riskScoreDistribution prometheus.Histogram
	accountBalance        *prometheus.GaugeVec
	mu                    sync.RWMutex
	logger                *slog.Logger
}

func NewMetricsCollector(logger *slog.Logger) *MetricsCollector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()

	collector := &MetricsCollector{
		registry: registry,
		transfersProcessed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "transfers_processed_total",
			Help: "Total number of completed transfers",
		}),
		transfersBlocked: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "transfers_blocked_total",
			Help: "Total number of transfers blocked by risk scoring",
		}),
		transfersFailed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "transfers_failed_total",
			Help: "Total number of rejected or failed transfers",
		}),
		transferDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "transfer_processing_duration_seconds",
			Help:    "Time taken to process a transfer",
			Buckets: prometheus.DefBuckets,
		}),
		riskScoreDistribution: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "transfer_risk_score_distribution",
			Help:    "Distribution of transfer risk scores",
			Buckets: []float64{0, 20, 40, 60, 80, 100},
		}),
		accountBalance: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "account_balance",
			Help: "Current account balance",
		}, []string{"user_id"}),
		logger: logger,
	}

	return collector
}

type TransferOutcome int

const (
	OutcomeCompleted TransferOutcome = iota
	OutcomeBlocked
	OutcomeFailed
)

func (m *MetricsCollector) RecordTransfer(duration time.Duration, riskScore int, outcome TransferOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch outcome {
	case OutcomeCompleted:
		m.transfersProcessed.Inc()
	case OutcomeBlocked:
		m.transfersBlocked.Inc()
	default:
		m.transfersFailed.Inc()
	}

	m.transferDuration.Observe(duration.Seconds())
	if riskScore >= 0 {
		m.riskScoreDistribution.Observe(float64(riskScore))
	}
}

func (m *MetricsCollector) UpdateAccountBalance(userID string, balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountBalance.WithLabelValues(userID).Set(balance)
}

func (m *MetricsCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *MetricsCollector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetHandler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		m.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	m.logger.Info("Metrics collector shutdown complete")
	return nil
}
