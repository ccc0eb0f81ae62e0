package orchestration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fieldbridge/backend/internal/domain/connector"
	"github.com/fieldbridge/backend/internal/domain/request"
	"github.com/fieldbridge/backend/internal/domain/shared"
	"github.com/fieldbridge/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config tunes the orchestrator behaviour
type Config struct {
	Backoff BackoffPolicy

	// AutoDecide lets auto-resolvable requests skip human review once their
	// ticket exists. The decision is still recorded with an explicit actor.
	AutoDecide bool

	// WebhookDedupTTL is how long a processed ITSM event stays deduplicated
	WebhookDedupTTL time.Duration
}

// DefaultConfig returns the standard orchestrator configuration
func DefaultConfig() Config {
	return Config{
		Backoff:         DefaultBackoffPolicy(),
		AutoDecide:      false,
		WebhookDedupTTL: 24 * time.Hour,
	}
}

// TicketDispatcher enqueues asynchronous ticket creation for one request.
// Enqueue failures are not fatal; the periodic backfill scan picks the
// request up on its next tick.
type TicketDispatcher interface {
	EnqueueEnsureTicket(id uuid.UUID) error
}

// Orchestrator owns the cross-system request lifecycle. It is the only
// writer of request state and of the audit trail; connectors and the HTTP
// layer never mutate requests directly.
type Orchestrator struct {
	requests    request.Repository
	transitions request.TransitionRepository
	classifier  request.Classifier
	validator   *ResourceValidator
	itsm        connector.ITSMConnector
	erp         connector.ERPConnector
	dedup       shared.IdempotencyStore
	cfg         Config
	logger      *zap.Logger
	metrics     *telemetry.RequestMetrics
	ticketJobs  TicketDispatcher
}

// NewOrchestrator creates the orchestration service
func NewOrchestrator(
	requests request.Repository,
	transitions request.TransitionRepository,
	classifier request.Classifier,
	validator *ResourceValidator,
	itsm connector.ITSMConnector,
	erp connector.ERPConnector,
	dedup shared.IdempotencyStore,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Backoff.MaxAttempts == 0 {
		cfg.Backoff = DefaultBackoffPolicy()
	}
	if cfg.WebhookDedupTTL == 0 {
		cfg.WebhookDedupTTL = 24 * time.Hour
	}
	return &Orchestrator{
		requests:    requests,
		transitions: transitions,
		classifier:  classifier,
		validator:   validator,
		itsm:        itsm,
		erp:         erp,
		dedup:       dedup,
		cfg:         cfg,
		logger:      logger,
	}
}

// SetRequestMetrics sets the lifecycle metrics collector
func (o *Orchestrator) SetRequestMetrics(rm *telemetry.RequestMetrics) {
	o.metrics = rm
}

// SetTicketDispatcher sets the queue new submissions hand their ticket
// creation to. Without one, tickets are created by the backfill scan only.
func (o *Orchestrator) SetTicketDispatcher(d TicketDispatcher) {
	o.ticketJobs = d
}

// Submit registers a new request, or replays an earlier submission with the
// same correlation ID. Callers who bring no correlation ID get a generated
// one back; it is their replay key from then on. Returns the request and
// whether it was newly created. Ticket creation happens asynchronously and
// never blocks the caller.
func (o *Orchestrator) Submit(ctx context.Context, cmd SubmitCommand) (*RequestResponse, bool, error) {
	if strings.TrimSpace(cmd.CorrelationID) == "" {
		cmd.CorrelationID = uuid.NewString()
	}

	existing, err := o.requests.FindByCorrelationID(ctx, cmd.CorrelationID)
	if err == nil {
		return o.replay(existing, cmd)
	}
	if err != shared.ErrNotFound {
		return nil, false, err
	}

	classification, err := o.classifier.Classify(cmd.Kind, cmd.Payload)
	if err != nil {
		return nil, false, err
	}

	req, err := request.NewServiceRequest(cmd.CorrelationID, cmd.Kind, cmd.Payload)
	if err != nil {
		return nil, false, err
	}
	req.SetClassification(classification.Category, classification.AutoResolvable)

	if err := o.requests.Create(ctx, req); err != nil {
		if err == shared.ErrAlreadyExists {
			// Lost a race with a concurrent submission of the same
			// correlation ID; fall back to replay semantics.
			winner, ferr := o.requests.FindByCorrelationID(ctx, cmd.CorrelationID)
			if ferr != nil {
				return nil, false, ferr
			}
			return o.replay(winner, cmd)
		}
		return nil, false, err
	}
	if err := o.appendTransitions(ctx, req); err != nil {
		return nil, false, err
	}

	o.logger.Info("request submitted",
		zap.String("request_id", req.ID.String()),
		zap.String("correlation_id", req.CorrelationID),
		zap.String("kind", req.Kind.String()),
		zap.String("category", req.Category))

	if o.metrics != nil {
		o.metrics.RecordSubmitted(ctx, req.Kind.String())
	}

	if o.ticketJobs != nil {
		if err := o.ticketJobs.EnqueueEnsureTicket(req.ID); err != nil {
			o.logger.Debug("ticket job enqueue failed, backfill scan will cover it",
				zap.String("request_id", req.ID.String()),
				zap.Error(err))
		}
	}

	resp := ToRequestResponse(req)
	return &resp, true, nil
}

func (o *Orchestrator) replay(existing *request.ServiceRequest, cmd SubmitCommand) (*RequestResponse, bool, error) {
	if !existing.MatchesPayload(cmd.Payload) {
		return nil, false, shared.ErrConflict
	}
	resp := ToRequestResponse(existing)
	return &resp, false, nil
}

// EnsureTicket creates the ITSM review ticket for a request that does not
// have one yet. Safe to call repeatedly; the connector is idempotent on
// correlation ID and the ticket reference is write-once.
func (o *Orchestrator) EnsureTicket(ctx context.Context, id uuid.UUID) error {
	req, err := o.requests.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !req.NeedsTicket() {
		return nil
	}

	ticket, err := o.itsm.CreateTicket(ctx, connector.TicketRequest{
		CorrelationID: req.CorrelationID,
		Subject:       req.Payload.Subject,
		Description:   req.Payload.Description,
		Priority:      req.Payload.Priority,
		Category:      req.Category,
	})
	if err != nil {
		o.logger.Warn("ticket creation failed",
			zap.String("request_id", req.ID.String()),
			zap.Error(err))
		return err
	}

	if err := req.AcceptTicketRef(ticket.Ref); err != nil {
		return err
	}
	if err := o.save(ctx, req); err != nil {
		return err
	}

	o.logger.Info("ticket created",
		zap.String("request_id", req.ID.String()),
		zap.String("ticket_ref", ticket.Ref))

	if o.cfg.AutoDecide && req.AutoResolvable {
		_, err := o.Decide(ctx, DecideCommand{
			RequestID: req.ID,
			Approve:   true,
			Actor:     request.ActorAuto,
			Reason:    "auto-resolved routine request",
		})
		if err != nil && err != shared.ErrConcurrencyConflict {
			o.logger.Warn("auto decision failed",
				zap.String("request_id", req.ID.String()),
				zap.Error(err))
		}
	}
	return nil
}

// EnsureTickets backfills missing ITSM tickets, oldest requests first.
// Returns how many tickets were created.
func (o *Orchestrator) EnsureTickets(ctx context.Context, limit int) (int, error) {
	pending, err := o.requests.FindMissingTicket(ctx, limit)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, req := range pending {
		if err := o.EnsureTicket(ctx, req.ID); err != nil {
			if err == shared.ErrConcurrencyConflict {
				continue
			}
			// Keep going; the next scan picks this request up again.
			continue
		}
		created++
	}
	return created, nil
}

// Decide applies a review decision. Approval first runs resource validation;
// a hard validation failure rejects the request instead. A successful
// approval immediately attempts the ERP dispatch.
func (o *Orchestrator) Decide(ctx context.Context, cmd DecideCommand) (*RequestResponse, error) {
	req, err := o.requests.FindByID(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if req.State != request.StatePendingReview {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Request has already been decided (state %s)", req.State))
	}

	if !cmd.Approve {
		if err := req.Reject(cmd.Actor, cmd.Reason, ""); err != nil {
			return nil, err
		}
		if err := o.save(ctx, req); err != nil {
			return nil, err
		}
		resp := ToRequestResponse(req)
		return &resp, nil
	}

	result, err := o.validator.Validate(ctx, req)
	if err != nil {
		// The ERP could not be consulted; leave the request pending so the
		// decision can be retried.
		return nil, err
	}
	if !result.OK {
		if err := req.Reject(cmd.Actor, result.Reason(), request.ErrorKindValidationFailed); err != nil {
			return nil, err
		}
		if err := o.save(ctx, req); err != nil {
			return nil, err
		}
		o.logger.Info("request rejected by validation",
			zap.String("request_id", req.ID.String()),
			zap.String("reason", result.Reason()))
		resp := ToRequestResponse(req)
		return &resp, nil
	}

	resourceID := cmd.ResourceID
	if resourceID == "" {
		resourceID = result.RecommendedResource
	}
	if err := req.Approve(cmd.Actor, resourceID, cmd.Reason); err != nil {
		return nil, err
	}
	if err := o.save(ctx, req); err != nil {
		return nil, err
	}

	// Dispatch failures after this point are recoverable through the retry
	// path; the decision itself has already been persisted.
	if err := o.dispatch(ctx, req, cmd.Actor); err != nil {
		o.logger.Warn("dispatch after approval failed",
			zap.String("request_id", req.ID.String()),
			zap.Error(err))
	}
	resp := ToRequestResponse(req)
	return &resp, nil
}

// Retry manually re-dispatches a failed request. EXTERNAL_FAILED requests
// are dispatched immediately; FAILED_TERMINAL requests are re-opened first
// with a fresh retry budget.
func (o *Orchestrator) Retry(ctx context.Context, id uuid.UUID, actor string) (*RequestResponse, error) {
	req, err := o.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch req.State {
	case request.StateExternalFailed:
	case request.StateFailedTerminal:
		if err := req.ClearDeadLetter(actor); err != nil {
			return nil, err
		}
		if err := o.save(ctx, req); err != nil {
			return nil, err
		}
	default:
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot retry request in %s state", req.State))
	}

	if err := o.dispatch(ctx, req, actor); err != nil {
		return nil, err
	}
	resp := ToRequestResponse(req)
	return &resp, nil
}

// DispatchDueRetries dispatches EXTERNAL_FAILED requests whose retry time
// has come, oldest first. A concurrency conflict means another worker took
// the request; it is skipped, not an error.
func (o *Orchestrator) DispatchDueRetries(ctx context.Context, limit int) (int, error) {
	due, err := o.requests.FindDueForRetry(ctx, time.Now(), limit)
	if err != nil {
		return 0, err
	}
	dispatched := 0
	for _, req := range due {
		if err := o.dispatch(ctx, req, request.ActorScheduler); err != nil {
			if err == shared.ErrConcurrencyConflict {
				continue
			}
			o.logger.Warn("scheduled retry failed",
				zap.String("request_id", req.ID.String()),
				zap.Error(err))
			continue
		}
		dispatched++
	}
	return dispatched, nil
}

// dispatch moves the request to SENT_TO_EXTERNAL, calls the ERP and records
// the outcome. The SENT_TO_EXTERNAL write happens before the external call
// so a crash mid-call leaves evidence that the order may exist.
func (o *Orchestrator) dispatch(ctx context.Context, req *request.ServiceRequest, actor string) error {
	if err := req.MarkDispatched(actor); err != nil {
		return err
	}
	if err := o.save(ctx, req); err != nil {
		return err
	}

	var technicianID string
	if req.AssignedResource != nil {
		technicianID = *req.AssignedResource
	}
	var ticketRef string
	if req.ExternalTicketRef != nil {
		ticketRef = *req.ExternalTicketRef
	}

	started := time.Now()
	order, err := o.erp.CreateOrder(ctx, connector.OrderRequest{
		CorrelationID: req.CorrelationID,
		TicketRef:     ticketRef,
		Subject:       req.Payload.Subject,
		CostCenter:    req.Payload.CostCenter,
		EstimatedCost: req.Payload.EstimatedCost,
		Parts:         req.Payload.RequiredParts,
		TechnicianID:  technicianID,
	})
	if err != nil {
		if o.metrics != nil {
			outcome := "transient"
			if connector.IsPermanent(err) {
				outcome = "permanent"
			}
			o.metrics.RecordDispatch(ctx, outcome, time.Since(started))
		}
		return o.recordDispatchFailure(ctx, req, actor, err)
	}
	if o.metrics != nil {
		o.metrics.RecordDispatch(ctx, "completed", time.Since(started))
	}

	if err := req.MarkCompleted(actor, order.Ref); err != nil {
		return err
	}
	if err := o.save(ctx, req); err != nil {
		return err
	}
	o.logger.Info("request completed",
		zap.String("request_id", req.ID.String()),
		zap.String("order_ref", order.Ref),
		zap.Int("attempts", req.AttemptCount))
	return nil
}

func (o *Orchestrator) recordDispatchFailure(ctx context.Context, req *request.ServiceRequest, actor string, cause error) error {
	now := time.Now()
	if connector.IsPermanent(cause) {
		if err := req.MarkExternalFailed(actor, request.ErrorKindPermanent, cause.Error(), nil); err != nil {
			return err
		}
	} else {
		next := o.cfg.Backoff.NextRetryAt(req.AttemptCount, now)
		if err := req.MarkExternalFailed(actor, request.ErrorKindTransient, cause.Error(), next); err != nil {
			return err
		}
		if o.cfg.Backoff.Exhausted(req.AttemptCount) {
			if err := req.MarkTerminalFailure(actor, fmt.Sprintf(
				"retry budget exhausted after %d attempts: %v", req.AttemptCount, cause)); err != nil {
				return err
			}
		}
	}
	if err := o.save(ctx, req); err != nil {
		return err
	}
	o.logger.Warn("external dispatch failed",
		zap.String("request_id", req.ID.String()),
		zap.String("state", req.State.String()),
		zap.Int("attempts", req.AttemptCount),
		zap.Error(cause))
	return nil
}

// HandleITSMEvent processes an ITSM webhook notification. The event is
// resolved through its correlation ID when present, through its ticket
// reference otherwise. Deliveries are deduplicated on (correlation ID,
// event type); the mark is released again when processing fails, so the
// ITSM's redelivery still gets through.
func (o *Orchestrator) HandleITSMEvent(ctx context.Context, event ITSMEvent) error {
	req, err := o.resolveEventRequest(ctx, event)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("itsm:%s:%s", req.CorrelationID, event.EventType)
	fresh, err := o.dedup.MarkProcessed(ctx, key, o.cfg.WebhookDedupTTL)
	if err != nil {
		return err
	}
	if !fresh {
		o.logger.Debug("duplicate webhook delivery ignored",
			zap.String("correlation_id", req.CorrelationID),
			zap.String("event_type", event.EventType))
		return nil
	}

	if err := o.applyITSMEvent(ctx, req, event); err != nil {
		if rerr := o.dedup.Release(ctx, key); rerr != nil {
			o.logger.Warn("failed to release webhook dedup mark",
				zap.String("key", key),
				zap.Error(rerr))
		}
		return err
	}
	return nil
}

// resolveEventRequest finds the request an ITSM event belongs to
func (o *Orchestrator) resolveEventRequest(ctx context.Context, event ITSMEvent) (*request.ServiceRequest, error) {
	if event.CorrelationID != "" {
		return o.requests.FindByCorrelationID(ctx, event.CorrelationID)
	}
	if event.TicketRef != "" {
		return o.requests.FindByTicketRef(ctx, event.TicketRef)
	}
	return nil, shared.NewDomainError("INVALID_PAYLOAD",
		"Event carries neither a correlation ID nor a ticket reference")
}

func (o *Orchestrator) applyITSMEvent(ctx context.Context, req *request.ServiceRequest, event ITSMEvent) error {
	actor := event.Actor
	if actor == "" {
		actor = request.ActorWebhook
	}

	switch event.EventType {
	case "ticket.created":
		if err := req.AcceptTicketRef(event.TicketRef); err != nil {
			return err
		}
		return o.save(ctx, req)
	case "ticket.approved":
		_, err := o.Decide(ctx, DecideCommand{
			RequestID: req.ID,
			Approve:   true,
			Actor:     actor,
			Reason:    event.Detail,
		})
		return err
	case "ticket.rejected":
		_, err := o.Decide(ctx, DecideCommand{
			RequestID: req.ID,
			Approve:   false,
			Actor:     actor,
			Reason:    event.Detail,
		})
		return err
	case "ticket.closed":
		if err := req.ReconcileTicketClosed(actor, event.Detail); err != nil {
			// Closure after review is only an audit fact
			if de, ok := err.(*shared.DomainError); ok && de.Code == "INVALID_STATE" {
				return nil
			}
			return err
		}
		return o.save(ctx, req)
	default:
		return shared.NewDomainError("INVALID_PAYLOAD",
			fmt.Sprintf("Unknown event type %q", event.EventType))
	}
}

// Get returns one request by ID
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*RequestResponse, error) {
	req, err := o.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToRequestResponse(req)
	return &resp, nil
}

// GetByCorrelationID returns one request by correlation ID
func (o *Orchestrator) GetByCorrelationID(ctx context.Context, correlationID string) (*RequestResponse, error) {
	req, err := o.requests.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	resp := ToRequestResponse(req)
	return &resp, nil
}

// List returns a page of requests matching the filter
func (o *Orchestrator) List(ctx context.Context, filter ListFilter) (shared.Paginated[RequestResponse], error) {
	domainFilter := shared.DefaultFilter()
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.State != nil {
		domainFilter.Filters["state"] = string(*filter.State)
	}
	if filter.Kind != nil {
		domainFilter.Filters["kind"] = string(*filter.Kind)
	}
	if filter.Category != "" {
		domainFilter.Filters["category"] = filter.Category
	}

	items, err := o.requests.FindAll(ctx, domainFilter)
	if err != nil {
		return shared.Paginated[RequestResponse]{}, err
	}
	total, err := o.requests.Count(ctx, domainFilter)
	if err != nil {
		return shared.Paginated[RequestResponse]{}, err
	}

	responses := make([]RequestResponse, len(items))
	for i, req := range items {
		responses[i] = ToRequestResponse(req)
	}
	return shared.NewPaginated(responses, total, domainFilter.Page, domainFilter.PageSize), nil
}

// Transitions returns the audit trail for one request, oldest first
func (o *Orchestrator) Transitions(ctx context.Context, id uuid.UUID) ([]TransitionResponse, error) {
	if _, err := o.requests.FindByID(ctx, id); err != nil {
		return nil, err
	}
	records, err := o.transitions.ListForRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToTransitionResponses(records), nil
}

// save persists the aggregate with its optimistic lock and appends any
// transitions it recorded.
func (o *Orchestrator) save(ctx context.Context, req *request.ServiceRequest) error {
	if err := o.requests.SaveWithLock(ctx, req); err != nil {
		return err
	}
	return o.appendTransitions(ctx, req)
}

func (o *Orchestrator) appendTransitions(ctx context.Context, req *request.ServiceRequest) error {
	records := req.TakePendingTransitions()
	if len(records) == 0 {
		return nil
	}
	if o.metrics != nil {
		for _, rec := range records {
			o.metrics.RecordTransition(ctx, rec.FromState.String(), rec.ToState.String())
		}
	}
	return o.transitions.Append(ctx, records)
}
