package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(t *testing.T, handler http.Handler, ip string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", nil)
	req.RemoteAddr = ip + ":51234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMemoryLimiterEnforcesBudget(t *testing.T) {
	limiter := NewRateLimiter(nil, nil)
	handler := limiter.Limit("auth", 5, 15*time.Minute)(okHandler())

	for i := 0; i < 5; i++ {
		if rec := doRequest(t, handler, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i+1, rec.Code)
		}
	}

	rec := doRequest(t, handler, "10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("sixth request: status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
}

func TestMemoryLimiterIsolatesClients(t *testing.T) {
	limiter := NewRateLimiter(nil, nil)
	handler := limiter.Limit("auth", 2, time.Minute)(okHandler())

	for i := 0; i < 3; i++ {
		doRequest(t, handler, "10.0.0.1")
	}

	// A different client still has its full budget
	if rec := doRequest(t, handler, "10.0.0.2"); rec.Code != http.StatusOK {
		t.Errorf("other client refused: status %d", rec.Code)
	}
}

func TestMemoryLimiterWindowResets(t *testing.T) {
	store := newMemoryCounterStore()
	current := time.Now()
	store.now = func() time.Time { return current }

	limiter := &RateLimiter{store: store, logger: slog.Default()}
	handler := limiter.Limit("auth", 1, time.Minute)(okHandler())

	doRequest(t, handler, "10.0.0.1")
	if rec := doRequest(t, handler, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status %d, want 429", rec.Code)
	}

	current = current.Add(61 * time.Second)
	if rec := doRequest(t, handler, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Errorf("request after window: status %d, want 200", rec.Code)
	}
}

func TestRedisLimiterEnforcesBudget(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewRateLimiter(client, nil)
	handler := limiter.Limit("auth", 3, time.Minute)(okHandler())

	for i := 0; i < 3; i++ {
		if rec := doRequest(t, handler, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i+1, rec.Code)
		}
	}
	if rec := doRequest(t, handler, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("fourth request: status %d, want 429", rec.Code)
	}

	// The fixed window expires with the key's TTL
	mr.FastForward(61 * time.Second)
	if rec := doRequest(t, handler, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Errorf("request after TTL: status %d, want 200", rec.Code)
	}
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewRateLimiter(client, nil)
	handler := limiter.Limit("auth", 1, time.Minute)(okHandler())

	mr.Close()

	// With the backend down, requests pass through rather than 500
	if rec := doRequest(t, handler, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Errorf("status %d with backend down, want 200", rec.Code)
	}
}

func TestLimiterScopesByName(t *testing.T) {
	limiter := NewRateLimiter(nil, nil)
	authHandler := limiter.Limit("auth", 1, time.Minute)(okHandler())
	generalHandler := limiter.Limit("general", 1, time.Minute)(okHandler())

	doRequest(t, authHandler, "10.0.0.1")
	if rec := doRequest(t, authHandler, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("auth budget not exhausted: %d", rec.Code)
	}

	// The general budget for the same IP is untouched
	if rec := doRequest(t, generalHandler, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Errorf("general scope shared the auth budget: %d", rec.Code)
	}
}

func TestClientIPHeaders(t *testing.T) {
	limiter := NewRateLimiter(nil, nil)
	handler := limiter.Limit("auth", 1, time.Minute)(okHandler())

	// Two requests from different proxy-reported IPs are separate clients
	req1 := httptest.NewRequest(http.MethodPost, "/", nil)
	req1.RemoteAddr = "127.0.0.1:1000"
	req1.Header.Set("X-Real-IP", "203.0.113.1")
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)

	req2 := httptest.NewRequest(http.MethodPost, "/", nil)
	req2.RemoteAddr = "127.0.0.1:1000"
	req2.Header.Set("X-Real-IP", "203.0.113.2")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)

	if rec1.Code != http.StatusOK || rec2.Code != http.StatusOK {
		t.Errorf("distinct X-Real-IP clients should not share a budget: %d, %d", rec1.Code, rec2.Code)
	}
}
