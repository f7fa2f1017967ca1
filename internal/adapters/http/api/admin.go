package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/okian/tierlist/internal/domain/model"
)

const (
	maxLogsLimit   = 500
	maxConfigBytes = 1 << 20
)

// AdminDependencies defines the operator operations.
type AdminDependencies interface {
	// JobRuns uses the configured default when limit is 0.
	JobRuns(ctx context.Context, limit int) ([]model.JobRun, error)
	AppConfig(ctx context.Context) (json.RawMessage, error)
	UpdateAppConfig(ctx context.Context, raw []byte) (model.AppConfig, []string, error)
}

// AdminHandler serves job-run logs and the scoring configuration.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

type jobRunLog struct {
	ID           string          `json:"id"`
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   *time.Time      `json:"finishedAt"`
	Status       model.JobStatus `json:"status"`
	DurationMS   *int64          `json:"durationMs"`
	ItemsUpdated *int            `json:"itemsUpdated"`
	Mode         *model.Mode     `json:"mode"`
	Trigger      model.Trigger   `json:"trigger"`
	ErrorMessage *string         `json:"errorMessage"`
}

// HandleLogs handles GET /api/admin/logs?limit=.
func (h *AdminHandler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_logs"
	limit, err := queryLimit(r, 0, maxLogsLimit)
	if err != nil {
		writeFailure(w, NewKind(op, err))
		return
	}
	runs, err := h.deps.JobRuns(r.Context(), limit)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	logs := make([]jobRunLog, len(runs))
	for i, run := range runs {
		logs[i] = jobRunLog{
			ID:           run.ID,
			StartedAt:    run.StartedAt,
			FinishedAt:   run.FinishedAt,
			Status:       run.Status,
			DurationMS:   run.DurationMS,
			ItemsUpdated: run.ItemsUpdated,
			Mode:         run.Mode,
			Trigger:      run.Trigger,
			ErrorMessage: run.ErrorMessage,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// HandleConfig handles GET and POST /api/admin/config.
func (h *AdminHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		h.updateConfig(w, r)
		return
	}
	raw, err := h.deps.AppConfig(r.Context())
	if err != nil {
		writeFailure(w, Wrap("api.get_config", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"config": raw})
}

type configUpdateResponse struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

// updateConfig accepts either {"config": {...}} or the bare config object.
func (h *AdminHandler) updateConfig(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_config"
	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBytes))
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	var envelope struct {
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Config) > 0 {
		body = envelope.Config
	}

	_, issues, err := h.deps.UpdateAppConfig(r.Context(), body)
	if len(issues) > 0 {
		writeJSON(w, http.StatusBadRequest, configUpdateResponse{OK: false, Errors: issues})
		return
	}
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, configUpdateResponse{OK: true})
}
