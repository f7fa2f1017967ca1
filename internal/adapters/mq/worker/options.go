// Package worker runs queued refresh jobs.
package worker

import (
	"context"
	"time"

	"github.com/okian/tierlist/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithAttempts sets how many times a failing job is run before it is dropped.
func WithAttempts(n int) Option {
	return func(w *InMemoryWorker) {
		if n > 0 {
			w.attempts = n
		}
	}
}

// WithBackoff sets the base delay; attempt k waits base*2^(k-1) before retrying.
func WithBackoff(base time.Duration) Option {
	return func(w *InMemoryWorker) {
		if base >= 0 {
			w.backoff = base
		}
	}
}

// WithSleeper replaces the context-aware sleep between attempts.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(w *InMemoryWorker) {
		if sleep != nil {
			w.sleep = sleep
		}
	}
}

// WithResultHook is called once per job with its final error, nil on success.
func WithResultHook(hook func(j JobResult)) Option {
	return func(w *InMemoryWorker) {
		w.onResult = hook
	}
}
