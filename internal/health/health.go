// Package health exposes liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Handler serves health check endpoints
type Handler struct {
	pool    *pgxpool.Pool
	redis   redis.UniversalClient
	version string
}

// NewHandler creates a new health Handler. The redis client may be nil
// when the rate limiter runs in memory.
func NewHandler(pool *pgxpool.Pool, redisClient redis.UniversalClient, version string) *Handler {
	return &Handler{pool: pool, redis: redisClient, version: version}
}

type status struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Live reports process liveness
// GET /health/live
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, status{Status: "ok", Version: h.version})
}

// Ready reports whether the dependencies are reachable
// GET /health/ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := h.pool.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	code := http.StatusOK
	st := "ok"
	if !healthy {
		code = http.StatusServiceUnavailable
		st = "degraded"
	}
	writeStatus(w, code, status{Status: st, Version: h.version, Checks: checks})
}

// Overall is the combined health endpoint
// GET /health
func (h *Handler) Overall(w http.ResponseWriter, r *http.Request) {
	h.Ready(w, r)
}

func writeStatus(w http.ResponseWriter, code int, s status) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(s)
}
