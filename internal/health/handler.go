package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"bullpen/internal/httputil"
)

// Handler serves liveness and readiness probes. Postgres is the hard
// dependency; redis is a cache and only reported, never fatal.
type Handler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	startedAt time.Time
}

func NewHandler(pool *pgxpool.Pool, rdb *redis.Client, startedAt time.Time) *Handler {
	start := startedAt.UTC()
	if start.IsZero() {
		start = time.Now().UTC()
	}
	return &Handler{pool: pool, rdb: rdb, startedAt: start}
}

type liveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	UptimeSec int64  `json:"uptime_sec"`
}

type readyResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	UptimeSec int64     `json:"uptime_sec"`
	Database  depStatus `json:"database"`
	Redis     depStatus `json:"redis"`
}

type depStatus struct {
	Reachable  bool   `json:"reachable"`
	PingMs     int64  `json:"ping_ms"`
	Error      string `json:"error,omitempty"`
	Configured bool   `json:"configured"`
}

func (h *Handler) uptime(now time.Time) int64 {
	u := now.Sub(h.startedAt)
	if u < 0 {
		return 0
	}
	return int64(u.Seconds())
}

// Live reports process liveness only; no dependency checks.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	httputil.WriteJSON(w, http.StatusOK, liveResponse{
		Status:    "ok",
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: h.uptime(now),
	})
}

// Ready pings postgres with a short deadline and returns 503 when it
// is unreachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	db := h.pingDB(r.Context())
	rd := h.pingRedis(r.Context())

	status := "ok"
	httpStatus := http.StatusOK
	if !db.Reachable {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, httpStatus, readyResponse{
		Status:    status,
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: h.uptime(now),
		Database:  db,
		Redis:     rd,
	})
}

func (h *Handler) pingDB(ctx context.Context) depStatus {
	st := depStatus{Configured: h.pool != nil}
	if h.pool == nil {
		st.Error = "pool is not configured"
		return st
	}
	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	start := time.Now()
	err := h.pool.Ping(pingCtx)
	st.PingMs = time.Since(start).Milliseconds()
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Reachable = true
	return st
}

func (h *Handler) pingRedis(ctx context.Context) depStatus {
	st := depStatus{Configured: h.rdb != nil}
	if h.rdb == nil {
		return st
	}
	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	start := time.Now()
	err := h.rdb.Ping(pingCtx).Err()
	st.PingMs = time.Since(start).Milliseconds()
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Reachable = true
	return st
}
