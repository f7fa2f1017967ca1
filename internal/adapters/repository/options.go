package repository

import "time"

// options is shared by both store implementations.
type options struct {
	now func() time.Time
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithClock sets the time source used for job-run and config timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
