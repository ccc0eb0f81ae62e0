package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Orchestration is the slice of the orchestration service the scheduler needs
type Orchestration interface {
	EnsureTicket(ctx context.Context, id uuid.UUID) error
	EnsureTickets(ctx context.Context, limit int) (int, error)
	DispatchDueRetries(ctx context.Context, limit int) (int, error)
}

// OrchestrationExecutor dispatches jobs to the orchestration service
type OrchestrationExecutor struct {
	orchestration Orchestration
	batchSize     int
}

// NewOrchestrationExecutor creates an executor backed by the orchestration
// service. batchSize caps scan jobs that carry no batch size of their own.
func NewOrchestrationExecutor(orchestration Orchestration, batchSize int) *OrchestrationExecutor {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OrchestrationExecutor{orchestration: orchestration, batchSize: batchSize}
}

// Execute runs one job
func (e *OrchestrationExecutor) Execute(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeEnsureTicket:
		return e.orchestration.EnsureTicket(ctx, job.RequestID)
	case JobTypeTicketScan:
		_, err := e.orchestration.EnsureTickets(ctx, e.batch(job))
		return err
	case JobTypeRetryScan:
		_, err := e.orchestration.DispatchDueRetries(ctx, e.batch(job))
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
	}
}

func (e *OrchestrationExecutor) batch(job *Job) int {
	if job.BatchSize > 0 {
		return job.BatchSize
	}
	return e.batchSize
}
