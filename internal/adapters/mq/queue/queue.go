// Package queue holds pending refresh jobs between the triggers that
// request a refresh and the workers that run it.
package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/pkg/metrics"
)

const defaultCapacity = 64

// Job is one requested refresh.
type Job struct {
	ID         string            `json:"id"`
	Mode       model.RefreshMode `json:"mode"`
	Trigger    model.Trigger     `json:"trigger"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
}

// NewJob builds a job whose ID is {trigger}-{unix millis}. Two requests of
// the same trigger in the same millisecond share an ID and dedupe to one.
func NewJob(mode model.RefreshMode, trigger model.Trigger, now time.Time) Job {
	if mode == "" {
		mode = model.RefreshAll
	}
	if trigger == "" {
		trigger = model.TriggerManual
	}
	return Job{
		ID:         string(trigger) + "-" + strconv.FormatInt(now.UnixMilli(), 10),
		Mode:       mode,
		Trigger:    trigger,
		EnqueuedAt: now,
	}
}

// Request converts the job into the refresh entry point payload.
func (j Job) Request() model.RefreshRequest {
	return model.RefreshRequest{Mode: j.Mode, Trigger: j.Trigger}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job without blocking. It returns ErrQueueFull or ErrClosed
	// when the job was not accepted.
	Enqueue(ctx context.Context, j Job) error

	// Dequeue returns the channel workers receive jobs from. The channel is
	// closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	mu       sync.RWMutex
	closed   bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordJobDropped("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordJobDropped("context_cancelled")
		return err
	}

	select {
	case q.jobs <- j:
		metrics.RecordJobEnqueued(string(j.Trigger))
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	default:
		metrics.RecordJobDropped("queue_full")
		return ErrQueueFull
	}
}

// Dequeue returns a channel that receives jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			select {
			case out <- j:
				metrics.UpdateQueueSize(len(q.jobs))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops accepting jobs. Jobs already queued are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
