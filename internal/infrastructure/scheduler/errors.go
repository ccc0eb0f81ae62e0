package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when submitting to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is at capacity
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrUnknownJobType is returned for a job the executor cannot handle
	ErrUnknownJobType = errors.New("unknown job type")
)
