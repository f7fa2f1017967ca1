package app

import "errors"

var (
	// ErrServiceNotStarted is returned by Service calls that need the queue
	// before Start has run.
	ErrServiceNotStarted = errors.New("service not started")
	// ErrNoProvider means no provider is registered for a requested mode.
	ErrNoProvider = errors.New("no provider for mode")
)
