package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/tierlist/internal/domain/model"
)

const (
	defaultSnapshotLimit = 20
	maxSnapshotLimit     = 100
	noSnapshotMessage    = "No snapshots available yet"
)

// TierDependencies defines the read operations on snapshots.
type TierDependencies interface {
	LatestSnapshot(ctx context.Context, mode model.Mode) (*model.SnapshotView, error)
	Snapshot(ctx context.Context, id string) (model.SnapshotView, error)
	Snapshots(ctx context.Context, mode *model.Mode, limit int) ([]model.Snapshot, error)
}

// TierHandler serves the tier list and snapshot history.
type TierHandler struct {
	deps TierDependencies
}

// NewTierHandler creates a new tier handler.
func NewTierHandler(deps TierDependencies) *TierHandler {
	return &TierHandler{deps: deps}
}

type tierResponse struct {
	Mode     model.Mode          `json:"mode"`
	Snapshot *model.SnapshotView `json:"snapshot"`
	Message  string              `json:"message,omitempty"`
}

// HandleGetTier handles GET /api/tier?mode=MYTHIC_PLUS|RAID.
func (h *TierHandler) HandleGetTier(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_tier"
	mode := model.ModeMythicPlus
	if raw := r.URL.Query().Get("mode"); raw != "" {
		m, err := model.ParseMode(raw)
		if err != nil {
			writeFailure(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		mode = m
	}

	view, err := h.deps.LatestSnapshot(r.Context(), mode)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	resp := tierResponse{Mode: mode, Snapshot: view}
	if view == nil {
		resp.Message = noSnapshotMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleListSnapshots handles GET /api/snapshots?mode=&limit=.
func (h *TierHandler) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_snapshots"
	limit, err := queryLimit(r, defaultSnapshotLimit, maxSnapshotLimit)
	if err != nil {
		writeFailure(w, NewKind(op, err))
		return
	}
	var mode *model.Mode
	if raw := r.URL.Query().Get("mode"); raw != "" {
		m, err := model.ParseMode(raw)
		if err != nil {
			writeFailure(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		mode = &m
	}

	snaps, err := h.deps.Snapshots(r.Context(), mode, limit)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

// HandleGetSnapshot handles GET /api/snapshots/{id}.
func (h *TierHandler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_snapshot"
	id := strings.TrimPrefix(r.URL.Path, "/api/snapshots/")
	if id == "" || strings.Contains(id, "/") {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	view, err := h.deps.Snapshot(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshot": view})
}
