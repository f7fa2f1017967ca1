package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrQueueFull = errors.New("refresh queue is full")
	ErrClosed    = errors.New("refresh queue is closed")
)
