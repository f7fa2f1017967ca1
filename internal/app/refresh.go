package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/tierlist/internal/adapters/provider"
	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/internal/domain/scoring"
	"github.com/okian/tierlist/pkg/logger"
	"github.com/okian/tierlist/pkg/metrics"
)

// RefreshStore is the part of repository.Store a refresh run needs.
type RefreshStore interface {
	SnapshotStore
	EnsureAppConfig(ctx context.Context) (model.AppConfig, error)
	CreateJobRun(ctx context.Context, run model.JobRun) (model.JobRun, error)
	FinishJobRun(ctx context.Context, id string, u model.JobRunUpdate) error
}

// ModeOutcome summarizes what one mode contributed to a run.
type ModeOutcome struct {
	Mode        model.Mode `json:"mode"`
	Source      string     `json:"source"`
	EntryCount  int        `json:"entryCount"`
	ScoredCount int        `json:"scoredCount"`
	Persisted   int        `json:"persisted"`
}

// RefreshResult is the outcome of one Refresher.Run call.
type RefreshResult struct {
	JobRunID string        `json:"jobRunId"`
	Updated  int           `json:"updated"`
	Modes    []ModeOutcome `json:"modes"`
	Duration time.Duration `json:"-"`
}

// Refresher runs fetch, score and persist for the requested modes and records
// the run as a JobRun.
type Refresher struct {
	store     RefreshStore
	persister *Persister
	providers map[model.Mode]provider.Provider
	now       func() time.Time
	log       logger.Logger
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithRefreshClock overrides the clock used for JobRun timestamps.
func WithRefreshClock(now func() time.Time) RefresherOption {
	return func(r *Refresher) {
		if now != nil {
			r.now = now
		}
	}
}

// WithPersister replaces the default persister built over the store.
func WithPersister(p *Persister) RefresherOption {
	return func(r *Refresher) {
		if p != nil {
			r.persister = p
		}
	}
}

// WithRefreshLogger sets the refresher logger.
func WithRefreshLogger(l logger.Logger) RefresherOption {
	return func(r *Refresher) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRefresher creates a Refresher. Each provider serves the mode it reports;
// a later provider for the same mode replaces an earlier one.
func NewRefresher(store RefreshStore, providers []provider.Provider, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		store:     store,
		providers: make(map[model.Mode]provider.Provider, len(providers)),
		now:       time.Now,
		log:       logger.Get().Named("refresh"),
	}
	for _, p := range providers {
		r.providers[p.Mode()] = p
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.persister == nil {
		r.persister = NewPersister(store, WithPersistClock(r.now))
	}
	return r
}

// Run executes one refresh. Exactly one JobRun is recorded per call; it ends
// as success with the number of persisted spec rows, or failed with the
// error message. The terminal update is written even when ctx is cancelled.
func (r *Refresher) Run(ctx context.Context, req model.RefreshRequest) (RefreshResult, error) {
	mode := req.Mode
	if mode == "" {
		mode = model.RefreshAll
	}
	trigger := req.Trigger
	if trigger == "" {
		trigger = model.TriggerManual
	}
	start := r.now()

	cfg, cfgErr := r.store.EnsureAppConfig(ctx)

	meta, _ := json.Marshal(map[string]string{"trigger": string(trigger)})
	run, err := r.store.CreateJobRun(ctx, model.JobRun{
		Mode:      mode.Single(),
		Status:    model.JobRunning,
		Trigger:   trigger,
		StartedAt: start.UTC(),
		Metadata:  meta,
	})
	if err != nil {
		metrics.RecordRefreshRun(string(mode), string(model.JobFailed), r.now().Sub(start))
		return RefreshResult{}, fmt.Errorf("create job run: %w", err)
	}

	r.log.Info(ctx, "refresh started",
		logger.String("jobRunId", run.ID),
		logger.String("mode", string(mode)),
		logger.String("trigger", string(trigger)),
	)

	result := RefreshResult{JobRunID: run.ID}
	runErr := cfgErr
	if runErr != nil {
		runErr = fmt.Errorf("load app config: %w", runErr)
	} else {
		for _, m := range mode.Expand() {
			outcome, err := r.refreshMode(ctx, m, cfg, trigger)
			if err != nil {
				runErr = fmt.Errorf("refresh %s: %w", m, err)
				break
			}
			result.Modes = append(result.Modes, outcome)
			result.Updated += outcome.Persisted
		}
	}
	result.Duration = r.now().Sub(start)

	r.finish(ctx, run.ID, mode, result, runErr)
	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

func (r *Refresher) refreshMode(ctx context.Context, mode model.Mode, cfg model.AppConfig, trigger model.Trigger) (ModeOutcome, error) {
	p, ok := r.providers[mode]
	if !ok {
		return ModeOutcome{}, fmt.Errorf("%w: %s", ErrNoProvider, mode)
	}

	entries, err := p.FetchEntries(ctx, cfg)
	if err != nil {
		return ModeOutcome{}, fmt.Errorf("fetch %s: %w", p.Name(), err)
	}
	specs := scoring.ForMode(mode).Score(entries, cfg)
	metrics.UpdateSpecsScored(string(mode), len(specs))

	outcome := ModeOutcome{
		Mode:        mode,
		Source:      p.Name(),
		EntryCount:  len(entries),
		ScoredCount: len(specs),
	}
	if len(specs) == 0 {
		r.log.Warn(ctx, "no specs scored, snapshot skipped",
			logger.String("mode", string(mode)),
			logger.String("source", p.Name()),
			logger.Int("entries", len(entries)),
		)
		return outcome, nil
	}

	meta := model.SnapshotMetadata{
		Source:        p.Name(),
		EntryCount:    len(entries),
		ScoredCount:   len(specs),
		MinSampleSize: cfg.MythicPlus.MinSampleSize,
		TopN:          cfg.MythicPlus.TopN,
		Trigger:       trigger,
	}
	if mode == model.ModeRaid {
		pct := cfg.Raid.Percentile
		meta.MinSampleSize = cfg.Raid.MinSampleSize
		meta.TopN = cfg.Raid.TopN
		meta.Percentile = &pct
	}

	n, err := r.persister.PersistSnapshot(ctx, mode, specs, cfg, meta)
	if err != nil {
		return ModeOutcome{}, err
	}
	outcome.Persisted = n
	return outcome, nil
}

func (r *Refresher) finish(ctx context.Context, id string, mode model.RefreshMode, result RefreshResult, runErr error) {
	ctx = context.WithoutCancel(ctx)
	u := model.JobRunUpdate{
		Status:     model.JobSuccess,
		FinishedAt: r.now().UTC(),
		DurationMS: result.Duration.Milliseconds(),
	}
	if runErr != nil {
		msg := runErr.Error()
		u.Status = model.JobFailed
		u.ErrorMessage = &msg
	} else {
		updated := result.Updated
		u.ItemsUpdated = &updated
	}

	if err := r.store.FinishJobRun(ctx, id, u); err != nil {
		r.log.Error(ctx, "failed to finish job run", logger.String("jobRunId", id), logger.Error(err))
	}
	metrics.RecordRefreshRun(string(mode), string(u.Status), result.Duration)

	if runErr != nil {
		r.log.Error(ctx, "refresh failed",
			logger.String("jobRunId", id),
			logger.Duration("duration", result.Duration),
			logger.Error(runErr),
		)
		return
	}
	r.log.Info(ctx, "refresh finished",
		logger.String("jobRunId", id),
		logger.Int("updated", result.Updated),
		logger.Duration("duration", result.Duration),
	)
}
