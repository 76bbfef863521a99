package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	IdempotencyHeader   = "Idempotency-Key"
	IdempotencyCacheTTL = 24 * time.Hour

	// LockTimeout prevents indefinite locks if a request crashes mid-flight.
	LockTimeout = 10 * time.Second

	redisKeyPrefix = "idempotency:"
	lockKeyPrefix  = "lock:"
)

// responseRecorder captures the status code and body so a successful
// response can be cached and replayed.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *responseRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Idempotency deduplicates requests carrying an Idempotency-Key header.
// Cached 2xx responses are replayed verbatim; a distributed lock rejects
// concurrent retries of the same key while the first is still in flight.
func Idempotency(rdb *redis.Client, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			cacheKey := redisKeyPrefix + key
			lockKey := lockKeyPrefix + key

			cached, err := rdb.Get(ctx, cacheKey).Result()
			if err == nil {
				logger.Info("Idempotency cache hit", slog.String("key", key))
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotency-Hit", "true")
				w.Write([]byte(cached))
				return
			}

			acquired, err := rdb.SetNX(ctx, lockKey, "processing", LockTimeout).Result()
			if err != nil {
				logger.Error("Idempotency lock acquisition failed",
					slog.String("key", key),
					slog.String("error", err.Error()))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if !acquired {
				logger.Warn("Concurrent request with same idempotency key",
					slog.String("key", key))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "conflict",
					"message": "A request with this idempotency key is currently being processed",
				})
				return
			}

			defer func() {
				if err := rdb.Del(ctx, lockKey).Err(); err != nil {
					logger.Error("Failed to release idempotency lock",
						slog.String("key", key),
						slog.String("error", err.Error()))
				}
			}()

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			next.ServeHTTP(recorder, r)

			if recorder.statusCode >= 200 && recorder.statusCode < 300 {
				if err := rdb.Set(ctx, cacheKey, recorder.body.String(), IdempotencyCacheTTL).Err(); err != nil {
					logger.Error("Failed to cache idempotent response",
						slog.String("key", key),
						slog.String("error", err.Error()))
				}
			}
		})
	}
}
