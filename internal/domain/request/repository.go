package request

import (
	"context"
	"time"

	"github.com/fieldbridge/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Repository defines persistence for service requests
type Repository interface {
	// Create inserts a new request. Returns shared.ErrAlreadyExists when the
	// correlation ID is already taken.
	Create(ctx context.Context, req *ServiceRequest) error

	// SaveWithLock persists the aggregate with an optimistic-lock version
	// check. Returns shared.ErrConcurrencyConflict when the stored version no
	// longer matches the one the aggregate was loaded with.
	SaveWithLock(ctx context.Context, req *ServiceRequest) error

	FindByID(ctx context.Context, id uuid.UUID) (*ServiceRequest, error)
	FindByCorrelationID(ctx context.Context, correlationID string) (*ServiceRequest, error)

	// FindByTicketRef resolves a request from its ITSM ticket reference, for
	// webhook events that carry no correlation ID.
	FindByTicketRef(ctx context.Context, ticketRef string) (*ServiceRequest, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]*ServiceRequest, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// FindDueForRetry returns EXTERNAL_FAILED requests whose next_retry_at is
	// at or before now, oldest first.
	FindDueForRetry(ctx context.Context, now time.Time, limit int) ([]*ServiceRequest, error)

	// FindMissingTicket returns PENDING_REVIEW requests that still have no
	// ITSM ticket reference, oldest first.
	FindMissingTicket(ctx context.Context, limit int) ([]*ServiceRequest, error)
}

// TransitionRepository defines persistence for the audit trail
type TransitionRepository interface {
	Append(ctx context.Context, records []TransitionRecord) error
	ListForRequest(ctx context.Context, requestID uuid.UUID) ([]TransitionRecord, error)
}
