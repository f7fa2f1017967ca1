package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/okian/tierlist/internal/domain/model"
)

// MemoryStore keeps all state in process memory. It backs tests and
// the memory database backend.
type MemoryStore struct {
	mu        sync.RWMutex
	opts      options
	config    json.RawMessage
	snapshots []model.SnapshotWrite // oldest first
	jobRuns   []model.JobRun        // oldest first
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{opts: buildOptions(opts)}
}

// EnsureAppConfig implements Store.
func (s *MemoryStore) EnsureAppConfig(_ context.Context) (model.AppConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config != nil {
		if cfg, err := model.ParseAppConfig(s.config); err == nil {
			return cfg, nil
		}
	}
	def := model.DefaultAppConfig()
	raw, err := json.Marshal(def)
	if err != nil {
		return model.AppConfig{}, err
	}
	s.config = raw
	return def, nil
}

// UpdateAppConfig implements Store.
func (s *MemoryStore) UpdateAppConfig(_ context.Context, cfg model.AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.config = raw
	s.mu.Unlock()
	return nil
}

// RawAppConfig implements Store.
func (s *MemoryStore) RawAppConfig(_ context.Context) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config == nil {
		return json.Marshal(model.DefaultAppConfig())
	}
	return append(json.RawMessage(nil), s.config...), nil
}

// CreateJobRun implements Store.
func (s *MemoryStore) CreateJobRun(_ context.Context, run model.JobRun) (model.JobRun, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.opts.now()
	}
	run.Status = model.JobRunning
	if len(run.Metadata) == 0 {
		run.Metadata = json.RawMessage("{}")
	}
	s.mu.Lock()
	s.jobRuns = append(s.jobRuns, run)
	s.mu.Unlock()
	return run, nil
}

// FinishJobRun implements Store.
func (s *MemoryStore) FinishJobRun(_ context.Context, id string, u model.JobRunUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobRuns {
		if s.jobRuns[i].ID != id {
			continue
		}
		r := &s.jobRuns[i]
		finished, dur := u.FinishedAt, u.DurationMS
		r.Status = u.Status
		r.FinishedAt = &finished
		r.DurationMS = &dur
		r.ItemsUpdated = u.ItemsUpdated
		r.ErrorMessage = u.ErrorMessage
		return nil
	}
	return fmt.Errorf("job run %s: %w", id, ErrNotFound)
}

// ListJobRuns implements Store.
func (s *MemoryStore) ListJobRuns(_ context.Context, limit int) ([]model.JobRun, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.JobRun, 0, min(limit, len(s.jobRuns)))
	for i := len(s.jobRuns) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.jobRuns[i])
	}
	return out, nil
}

// PreviousRanks implements Store.
func (s *MemoryStore) PreviousRanks(_ context.Context, mode model.Mode) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ranks := make(map[string]int)
	w, ok := s.latest(mode)
	if !ok {
		return ranks, nil
	}
	for _, sc := range w.Scores {
		ranks[sc.Key()] = sc.Rank
	}
	return ranks, nil
}

// SaveSnapshot implements Store.
func (s *MemoryStore) SaveSnapshot(_ context.Context, w model.SnapshotWrite) error {
	if w.Snapshot.ID == "" {
		return fmt.Errorf("snapshot id is required")
	}
	s.mu.Lock()
	s.snapshots = append(s.snapshots, w)
	s.mu.Unlock()
	return nil
}

// LatestSnapshotView implements Store.
func (s *MemoryStore) LatestSnapshotView(_ context.Context, mode model.Mode) (model.SnapshotView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.latest(mode)
	if !ok {
		return model.SnapshotView{}, fmt.Errorf("snapshot for %s: %w", mode, ErrNotFound)
	}
	return buildView(w.Snapshot, w.Scores, w.Builds, w.Stats), nil
}

// SnapshotView implements Store.
func (s *MemoryStore) SnapshotView(_ context.Context, id string) (model.SnapshotView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.snapshots {
		if w.Snapshot.ID == id {
			return buildView(w.Snapshot, w.Scores, w.Builds, w.Stats), nil
		}
	}
	return model.SnapshotView{}, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
}

// ListSnapshots implements Store.
func (s *MemoryStore) ListSnapshots(_ context.Context, mode *model.Mode, limit int) ([]model.Snapshot, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Snapshot
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		snap := s.snapshots[i].Snapshot
		if mode == nil || snap.Mode == *mode {
			out = append(out, snap)
		}
	}
	// newest first; equal timestamps keep the later save first
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountSnapshots implements Store.
func (s *MemoryStore) CountSnapshots(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots), nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// latest returns the most recently created snapshot of mode. Callers hold mu.
func (s *MemoryStore) latest(mode model.Mode) (model.SnapshotWrite, bool) {
	var (
		best  model.SnapshotWrite
		found bool
	)
	for _, w := range s.snapshots {
		if w.Snapshot.Mode != mode {
			continue
		}
		if !found || !w.Snapshot.CreatedAt.Before(best.Snapshot.CreatedAt) {
			best, found = w, true
		}
	}
	return best, found
}
