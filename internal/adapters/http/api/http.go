// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/tierlist/internal/adapters/mq/queue"
	"github.com/okian/tierlist/internal/adapters/repository"
	"github.com/okian/tierlist/internal/app"
	"github.com/okian/tierlist/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	TierDependencies
	RefreshDependencies
	AdminDependencies
	StatsProvider
}

var _ Dependencies = (*app.Service)(nil)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	tierHandler    *TierHandler
	refreshHandler *RefreshHandler
	adminHandler   *AdminHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		tierHandler:    NewTierHandler(deps),
		refreshHandler: NewRefreshHandler(deps),
		adminHandler:   NewAdminHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	get, post := http.MethodGet, http.MethodPost

	mux.HandleFunc("/healthz", MetricsMiddleware(allow(s.healthHandler.HandleHealth, get), "healthz"))
	mux.HandleFunc("/metrics", allow(s.healthHandler.HandleMetrics, get))
	mux.HandleFunc("/stats", MetricsMiddleware(allow(s.statsHandler.HandleStats, get), "stats"))

	mux.HandleFunc("/api/tier", MetricsMiddleware(allow(s.tierHandler.HandleGetTier, get), "tier"))
	mux.HandleFunc("/api/snapshots", MetricsMiddleware(allow(s.tierHandler.HandleListSnapshots, get), "snapshots"))
	mux.HandleFunc("/api/snapshots/", MetricsMiddleware(allow(s.tierHandler.HandleGetSnapshot, get), "snapshot"))

	mux.HandleFunc("/api/refresh", MetricsMiddleware(allow(s.refreshHandler.HandleManual, post), "refresh"))
	mux.HandleFunc("/api/cron/refresh", MetricsMiddleware(allow(s.refreshHandler.HandleCron, get, post), "cron_refresh"))

	mux.HandleFunc("/api/admin/logs", MetricsMiddleware(allow(s.adminHandler.HandleLogs, get), "admin_logs"))
	mux.HandleFunc("/api/admin/config", MetricsMiddleware(allow(s.adminHandler.HandleConfig, get, post), "admin_config"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err to a status code by the sentinel it wraps.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidMode),
		errors.Is(err, model.ErrInvalidAppConfig),
		errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrBackpressure), errors.Is(err, queue.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, app.ErrServiceNotStarted), errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// queryLimit reads ?limit=, returning def when absent. Values outside
// [1, maxLimit] are rejected.
func queryLimit(r *http.Request, def, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		return 0, ErrBadRequest
	}
	return n, nil
}
