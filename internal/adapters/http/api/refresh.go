package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/tierlist/internal/adapters/mq/queue"
	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/pkg/logger"
)

// RefreshDependencies defines how refreshes are requested.
type RefreshDependencies interface {
	EnqueueRefresh(ctx context.Context, mode model.RefreshMode, trigger model.Trigger) (queue.Job, error)
}

// RefreshHandler queues refresh jobs.
type RefreshHandler struct {
	deps RefreshDependencies
	log  logger.Logger
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps RefreshDependencies) *RefreshHandler {
	return &RefreshHandler{deps: deps, log: logger.Get().Named("api.refresh")}
}

type refreshRequest struct {
	Mode string `json:"mode"`
}

type refreshResponse struct {
	OK       bool              `json:"ok"`
	Enqueued bool              `json:"enqueued"`
	JobID    string            `json:"jobId"`
	Mode     model.RefreshMode `json:"mode"`
	Trigger  model.Trigger     `json:"trigger"`
}

// HandleManual handles POST /api/refresh.
func (h *RefreshHandler) HandleManual(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, model.TriggerManual)
}

// HandleCron handles GET and POST /api/cron/refresh.
func (h *RefreshHandler) HandleCron(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, model.TriggerCron)
}

// enqueue reads the mode from the JSON body, then ?mode=, defaulting to ALL.
func (h *RefreshHandler) enqueue(w http.ResponseWriter, r *http.Request, trigger model.Trigger) {
	const op = "api.refresh"
	var req refreshRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeFailure(w, WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	raw := req.Mode
	if raw == "" {
		raw = r.URL.Query().Get("mode")
	}
	mode, err := model.ParseRefreshMode(raw)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	job, err := h.deps.EnqueueRefresh(r.Context(), mode, trigger)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	h.log.Info(r.Context(), "refresh job enqueued",
		logger.String("jobId", job.ID),
		logger.String("mode", string(job.Mode)),
		logger.String("trigger", string(trigger)),
	)
	writeJSON(w, http.StatusAccepted, refreshResponse{
		OK:       true,
		Enqueued: true,
		JobID:    job.ID,
		Mode:     job.Mode,
		Trigger:  job.Trigger,
	})
}
