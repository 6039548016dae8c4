package queue

import "errors"

var (
	// ErrDuplicateActiveJob is returned when a manual enqueue targets an
	// episode that already has a pending or running job.
	ErrDuplicateActiveJob = errors.New("episode already has an active job")

	// ErrClaimConflict is returned when a claim loses the pending-to-running
	// race. Benign: the poller moves on to the next eligible job.
	ErrClaimConflict = errors.New("job already claimed")

	// ErrJobNotFound is returned when an operation references an unknown job.
	ErrJobNotFound = errors.New("job not found")

	// ErrNotRetryable is returned when a retry targets a job that is not in
	// the failed state.
	ErrNotRetryable = errors.New("job is not in a retryable state")
)
