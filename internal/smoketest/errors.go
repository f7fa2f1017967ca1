package smoketest

import "errors"

var (
	// ErrUnexpectedStatus is returned when the server answers with another status.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrJobFailed is returned when the triggered refresh ended as failed.
	ErrJobFailed = errors.New("refresh job failed")
	// ErrTimeout is returned when no finished job run appeared in time.
	ErrTimeout = errors.New("timed out waiting for job run")
	// ErrVerification is returned when a served tier list breaks an invariant.
	ErrVerification = errors.New("tier list verification failed")
)
