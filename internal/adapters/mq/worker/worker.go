package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/tierlist/internal/adapters/mq/queue"
	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/pkg/logger"
	"github.com/okian/tierlist/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultAttempts     = 2
	defaultBackoff      = time.Second
	poolShutdownTimeout = 30 * time.Second
)

// Runner executes one refresh and reports how many specs it updated.
type Runner interface {
	Run(ctx context.Context, req model.RefreshRequest) (int, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// JobResult is what a worker reports after finishing a job.
type JobResult struct {
	Job      queue.Job
	Attempts int
	Updated  int
	Err      error
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker runs jobs from a Queue with bounded retries.
type InMemoryWorker struct {
	queue    Queue
	runner   Runner
	name     string
	attempts int
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	onResult func(JobResult)

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, runner Runner, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		runner:   runner,
		name:     "worker",
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		sleep:    sleepContext,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown stops the worker and waits for its loop to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs job up to w.attempts times with exponential backoff.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) {
	start := time.Now()
	metrics.AddWorkerActive(1)
	defer metrics.AddWorkerActive(-1)

	res := JobResult{Job: job}
	for attempt := 1; attempt <= w.attempts; attempt++ {
		res.Attempts = attempt
		res.Updated, res.Err = w.runner.Run(ctx, job.Request())
		if res.Err == nil {
			break
		}
		if attempt == w.attempts || ctx.Err() != nil {
			break
		}
		delay := w.backoff << (attempt - 1)
		metrics.RecordWorkerRetry()
		w.logger.Warn(ctx, "refresh job failed, retrying",
			logger.String("job_id", job.ID),
			logger.Int("attempt", attempt),
			logger.Duration("backoff", delay),
			logger.Error(res.Err))
		if err := w.sleep(ctx, delay); err != nil {
			res.Err = fmt.Errorf("%w (retry aborted: %w)", res.Err, err)
			break
		}
	}

	outcome := "success"
	if res.Err != nil {
		outcome = "failed"
		w.logger.Error(ctx, "refresh job failed",
			logger.String("job_id", job.ID),
			logger.String("mode", string(job.Mode)),
			logger.Int("attempts", res.Attempts),
			logger.Error(res.Err))
	} else {
		w.logger.Info(ctx, "refresh job done",
			logger.String("job_id", job.ID),
			logger.String("mode", string(job.Mode)),
			logger.Int("updated", res.Updated))
	}
	metrics.RecordWorkerJob(outcome, time.Since(start))
	if w.onResult != nil {
		w.onResult(res)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pool manages multiple workers reading the same queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers sharing opts.
func NewPool(workerCount int, q Queue, runner Runner, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range workerCount {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, runner, wopts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, then waits for every worker to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
