// Package app wires refresh orchestration, the job queue and the read side
// of the tier list into the Service used by the HTTP API.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tierlist/internal/adapters/mq/queue"
	"github.com/okian/tierlist/internal/adapters/mq/worker"
	"github.com/okian/tierlist/internal/adapters/repository"
	"github.com/okian/tierlist/internal/domain/dedupe"
	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/pkg/logger"
	"github.com/okian/tierlist/pkg/metrics"
)

// Runner executes one refresh.
type Runner interface {
	Run(ctx context.Context, req model.RefreshRequest) (RefreshResult, error)
}

// runnerAdapter adapts Runner to worker.Runner.
type runnerAdapter struct {
	runner Runner
}

func (a *runnerAdapter) Run(ctx context.Context, req model.RefreshRequest) (int, error) {
	res, err := a.runner.Run(ctx, req)
	if err != nil {
		return 0, err
	}
	return res.Updated, nil
}

// Service implements the API dependencies for the tier list.
type Service struct {
	mu sync.RWMutex

	store  repository.Store
	runner Runner

	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	attempts    int
	backoff     time.Duration
	interval    time.Duration
	seedOnStart bool
	logsLimit   int
	now         func() time.Time

	// State
	started   bool
	cancel    context.CancelFunc
	scheduler sync.WaitGroup
	succeeded atomic.Int64
	failed    atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many job ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithJobRetry sets attempts per job and the base backoff between them.
func WithJobRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if backoff > 0 {
			s.backoff = backoff
		}
	}
}

// WithInterval enables the scheduler, which enqueues an ALL refresh every d.
func WithInterval(d time.Duration) Option {
	return func(s *Service) {
		s.interval = d
	}
}

// WithSeedOnStart enqueues a seed refresh on Start when no snapshot exists.
func WithSeedOnStart(enabled bool) Option {
	return func(s *Service) {
		s.seedOnStart = enabled
	}
}

// WithLogsLimit sets the default number of job runs returned by JobRuns.
func WithLogsLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.logsLimit = n
		}
	}
}

// WithClock overrides the clock used for job ids.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service reading from store and refreshing through runner.
func New(store repository.Store, runner Runner, opts ...Option) *Service {
	s := &Service{
		store:       store,
		runner:      runner,
		workerCount: 2,
		queueSize:   64,
		dedupeSize:  1024,
		attempts:    2,
		backoff:     time.Second,
		logsLimit:   40,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Start builds the queue and worker pool, starts the scheduler when an
// interval is set and enqueues a seed run when the store has no snapshot.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.logger.Info(ctx, "starting tier list service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.deduper = dedupe.New(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, &runnerAdapter{runner: s.runner},
		worker.WithAttempts(s.attempts),
		worker.WithBackoff(s.backoff),
		worker.WithResultHook(s.recordResult),
	)
	s.pool.Start(runCtx)

	if s.interval > 0 {
		s.scheduler.Add(1)
		go s.schedule(runCtx)
	}

	s.started = true
	s.logger.Info(ctx, "tier list service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("interval", s.interval),
	)
	s.mu.Unlock()

	if s.seedOnStart {
		return s.seed(ctx)
	}
	return nil
}

// Stop drains the workers and stops the scheduler. The store stays open.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	pool, cancel := s.pool, s.cancel
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping tier list service...")

	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}
	cancel()
	s.scheduler.Wait()

	s.logger.Info(ctx, "tier list service stopped")
}

func (s *Service) seed(ctx context.Context) error {
	n, err := s.store.CountSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("count snapshots: %w", err)
	}
	if n > 0 {
		return nil
	}
	job, err := s.EnqueueRefresh(ctx, model.RefreshAll, model.TriggerSeed)
	if err != nil {
		return fmt.Errorf("enqueue seed refresh: %w", err)
	}
	s.logger.Info(ctx, "no snapshots yet, seed refresh enqueued", logger.String("jobId", job.ID))
	return nil
}

func (s *Service) schedule(ctx context.Context) {
	defer s.scheduler.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.EnqueueRefresh(ctx, model.RefreshAll, model.TriggerInterval); err != nil {
				s.logger.Warn(ctx, "scheduled refresh not enqueued", logger.Error(err))
			}
		}
	}
}

func (s *Service) recordResult(r worker.JobResult) {
	if r.Err != nil {
		s.failed.Add(1)
		return
	}
	s.succeeded.Add(1)
}

// EnqueueRefresh queues a refresh of mode. A job whose id was already seen is
// not queued again; its job is returned without error.
func (s *Service) EnqueueRefresh(ctx context.Context, mode model.RefreshMode, trigger model.Trigger) (queue.Job, error) {
	s.mu.RLock()
	started, q, dd := s.started, s.queue, s.deduper
	s.mu.RUnlock()
	if !started {
		return queue.Job{}, ErrServiceNotStarted
	}

	job := queue.NewJob(mode, trigger, s.now())
	if dd.SeenAndRecord(ctx, job.ID) {
		metrics.RecordJobDropped("duplicate")
		s.logger.Debug(ctx, "duplicate job detected, skipping", logger.String("jobId", job.ID))
		return job, nil
	}
	if err := q.Enqueue(ctx, job); err != nil {
		dd.Forget(ctx, job.ID)
		return queue.Job{}, err
	}
	s.logger.Debug(ctx, "refresh enqueued",
		logger.String("jobId", job.ID),
		logger.String("mode", string(job.Mode)),
		logger.String("trigger", string(job.Trigger)),
	)
	return job, nil
}

// LatestSnapshot returns the newest snapshot of mode, or nil when none exists.
func (s *Service) LatestSnapshot(ctx context.Context, mode model.Mode) (*model.SnapshotView, error) {
	v, err := s.store.LatestSnapshotView(ctx, mode)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Snapshot returns one snapshot by id.
func (s *Service) Snapshot(ctx context.Context, id string) (model.SnapshotView, error) {
	return s.store.SnapshotView(ctx, id)
}

// Snapshots lists snapshot headers newest first.
func (s *Service) Snapshots(ctx context.Context, mode *model.Mode, limit int) ([]model.Snapshot, error) {
	return s.store.ListSnapshots(ctx, mode, limit)
}

// JobRuns lists recent job runs; limit <= 0 uses the configured default.
func (s *Service) JobRuns(ctx context.Context, limit int) ([]model.JobRun, error) {
	if limit <= 0 {
		limit = s.logsLimit
	}
	return s.store.ListJobRuns(ctx, limit)
}

// AppConfig returns the stored scoring configuration as JSON.
func (s *Service) AppConfig(ctx context.Context) (json.RawMessage, error) {
	return s.store.RawAppConfig(ctx)
}

// UpdateAppConfig validates raw and stores it. Validation failures return
// ErrInvalidAppConfig with the list of issues.
func (s *Service) UpdateAppConfig(ctx context.Context, raw []byte) (model.AppConfig, []string, error) {
	var cfg model.AppConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return model.AppConfig{}, []string{err.Error()}, fmt.Errorf("%w: %v", model.ErrInvalidAppConfig, err)
	}
	if issues := cfg.Issues(); len(issues) > 0 {
		return model.AppConfig{}, issues, fmt.Errorf("%w: %d issues", model.ErrInvalidAppConfig, len(issues))
	}
	if err := s.store.UpdateAppConfig(ctx, cfg); err != nil {
		return model.AppConfig{}, nil, err
	}
	s.logger.Info(ctx, "app config updated")
	return cfg, nil, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"intervalSec":   int(s.interval.Seconds()),
		"jobsSucceeded": s.succeeded.Load(),
		"jobsFailed":    s.failed.Load(),
	}
	if s.started {
		queueLen := s.queue.Len(context.Background())
		stats["queueLength"] = queueLen
		stats["dedupeEntries"] = s.deduper.Size()
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}
