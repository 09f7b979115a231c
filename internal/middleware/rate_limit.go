package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterStore abstracts the fixed-window counter so the limiter can run
// against Redis in production and in memory when Redis is not configured.
type counterStore interface {
	// Incr increments the counter for key, setting ttl on the first hit
	// in the window, and returns the new count.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// redisCounterStore implements counterStore on a Redis client.
// Fixed-window semantics: the TTL is set only when the key is created.
type redisCounterStore struct {
	client redis.UniversalClient
}

func (s *redisCounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// memoryCounterStore implements counterStore with an in-process map.
// Used when no Redis address is configured and in tests.
type memoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

func newMemoryCounterStore() *memoryCounterStore {
	return &memoryCounterStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (s *memoryCounterStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || now.After(entry.resetAt) {
		entry = &memoryEntry{resetAt: now.Add(ttl)}
		s.entries[key] = entry
	}
	entry.count++
	return entry.count, nil
}

// RateLimiter enforces per-client fixed-window request budgets.
// Clients are keyed by remote IP.
type RateLimiter struct {
	store  counterStore
	logger *slog.Logger
}

// NewRateLimiter creates a limiter backed by Redis when a client is given,
// falling back to an in-memory store otherwise.
func NewRateLimiter(client redis.UniversalClient, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	var store counterStore
	if client != nil {
		store = &redisCounterStore{client: client}
	} else {
		store = newMemoryCounterStore()
	}
	return &RateLimiter{store: store, logger: logger}
}

// Limit returns a middleware allowing at most limit requests per window
// per client IP. The name scopes the counter so different endpoint groups
// get independent budgets.
func (rl *RateLimiter) Limit(name string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ratelimit:" + name + ":" + clientIP(r)

			count, err := rl.store.Incr(r.Context(), key, window)
			if err != nil {
				// Counter backend down. Failing open keeps login working;
				// the credential lockout still bounds guessing per account.
				rl.logger.Warn("rate limiter unavailable", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			if count > int64(limit) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(errorResponse{
					Code:    "RATE_LIMITED",
					Message: "Too many requests. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
