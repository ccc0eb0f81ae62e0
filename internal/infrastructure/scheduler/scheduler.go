package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobType identifies what a background job does
type JobType string

const (
	// JobTypeEnsureTicket creates the ITSM ticket for one request
	JobTypeEnsureTicket JobType = "ENSURE_TICKET"
	// JobTypeTicketScan backfills tickets for all requests missing one
	JobTypeTicketScan JobType = "TICKET_SCAN"
	// JobTypeRetryScan dispatches all requests whose retry time has come
	JobTypeRetryScan JobType = "RETRY_SCAN"
)

// Job is one unit of background work
type Job struct {
	ID         uuid.UUID
	Type       JobType
	RequestID  uuid.UUID // set for JobTypeEnsureTicket
	BatchSize  int       // set for scan jobs
	EnqueuedAt time.Time
}

// NewJob creates a job of the given type
func NewJob(jobType JobType) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		EnqueuedAt: time.Now(),
	}
}

// NewEnsureTicketJob creates a ticket-creation job for one request
func NewEnsureTicketJob(requestID uuid.UUID) *Job {
	job := NewJob(JobTypeEnsureTicket)
	job.RequestID = requestID
	return job
}

// Executor runs a job against the orchestration layer
type Executor interface {
	Execute(ctx context.Context, job *Job) error
}

// Config holds scheduler configuration
type Config struct {
	Workers   int
	QueueSize int
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 256,
	}
}

// Scheduler runs background jobs on a bounded queue with a fixed worker
// pool. Submitting to a full queue fails fast instead of blocking the
// caller; scan triggers simply re-enqueue on their next tick.
type Scheduler struct {
	config   Config
	executor Executor
	logger   *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config Config, executor Executor, logger *zap.Logger) *Scheduler {
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	return &Scheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *Job, config.QueueSize),
	}
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Int("queue_size", s.config.QueueSize),
	)
	return nil
}

// Stop gracefully stops the scheduler, draining queued jobs until the
// context expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	close(s.jobs)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// EnqueueEnsureTicket submits a ticket-creation job for one request. This
// is how new submissions get their ITSM ticket without waiting for the
// next backfill scan.
func (s *Scheduler) EnqueueEnsureTicket(id uuid.UUID) error {
	return s.Submit(NewEnsureTicketJob(id))
}

// Submit enqueues a job for execution
func (s *Scheduler) Submit(job *Job) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	select {
	case s.jobs <- job:
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	start := time.Now()
	err := s.executor.Execute(ctx, job)
	if err != nil {
		s.logger.Warn("Job failed",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Int("worker_id", workerID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("Job completed",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Int("worker_id", workerID),
		zap.Duration("elapsed", time.Since(start)),
	)
}
