package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ScanTriggerConfig holds the scan intervals
type ScanTriggerConfig struct {
	TicketScanInterval time.Duration
	RetryScanInterval  time.Duration
	BatchSize          int
}

// DefaultScanTriggerConfig returns default scan trigger configuration
func DefaultScanTriggerConfig() ScanTriggerConfig {
	return ScanTriggerConfig{
		TicketScanInterval: 5 * time.Second,
		RetryScanInterval:  2 * time.Second,
		BatchSize:          50,
	}
}

// ScanTrigger periodically enqueues scan jobs: one loop backfills missing
// tickets, the other dispatches requests whose retry time has come. A full
// queue is not an error; the work is picked up on the next tick.
type ScanTrigger struct {
	config    ScanTriggerConfig
	scheduler *Scheduler
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScanTrigger creates a new scan trigger
func NewScanTrigger(config ScanTriggerConfig, sched *Scheduler, logger *zap.Logger) *ScanTrigger {
	if config.TicketScanInterval <= 0 {
		config.TicketScanInterval = DefaultScanTriggerConfig().TicketScanInterval
	}
	if config.RetryScanInterval <= 0 {
		config.RetryScanInterval = DefaultScanTriggerConfig().RetryScanInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultScanTriggerConfig().BatchSize
	}
	return &ScanTrigger{
		config:    config,
		scheduler: sched,
		logger:    logger,
	}
}

// Start starts both scan loops
func (t *ScanTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(2)
	go t.runLoop(ctx, JobTypeTicketScan, t.config.TicketScanInterval)
	go t.runLoop(ctx, JobTypeRetryScan, t.config.RetryScanInterval)

	t.logger.Info("Scan trigger started",
		zap.Duration("ticket_scan_interval", t.config.TicketScanInterval),
		zap.Duration("retry_scan_interval", t.config.RetryScanInterval),
	)
	return nil
}

// Stop stops the scan loops
func (t *ScanTrigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isRunning {
		return
	}
	t.isRunning = false

	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	t.logger.Info("Scan trigger stopped")
}

func (t *ScanTrigger) runLoop(ctx context.Context, jobType JobType, interval time.Duration) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.enqueue(jobType)
		}
	}
}

func (t *ScanTrigger) enqueue(jobType JobType) {
	job := NewJob(jobType)
	job.BatchSize = t.config.BatchSize

	if err := t.scheduler.Submit(job); err != nil {
		if errors.Is(err, ErrJobQueueFull) {
			t.logger.Debug("Job queue full, deferring scan", zap.String("job_type", string(jobType)))
			return
		}
		t.logger.Warn("Failed to enqueue scan job",
			zap.String("job_type", string(jobType)),
			zap.Error(err),
		)
	}
}
