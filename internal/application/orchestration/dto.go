package orchestration

import (
	"time"

	"github.com/fieldbridge/backend/internal/domain/request"
	"github.com/google/uuid"
)

// SubmitCommand carries a new request submission. An empty CorrelationID
// makes the orchestrator generate one.
type SubmitCommand struct {
	CorrelationID string
	Kind          request.RequestKind
	Payload       request.RequestPayload
}

// DecideCommand carries a human or automated review decision
type DecideCommand struct {
	RequestID  uuid.UUID
	Approve    bool
	Actor      string
	ResourceID string
	Reason     string
}

// ITSMEvent is a webhook notification from the ITSM system
type ITSMEvent struct {
	CorrelationID string
	EventType     string
	TicketRef     string
	Actor         string
	Detail        string
}

// ListFilter narrows the request listing
type ListFilter struct {
	Page     int
	PageSize int
	State    *request.RequestState
	Kind     *request.RequestKind
	Category string
}

// RequestResponse is the external view of a service request
type RequestResponse struct {
	ID                uuid.UUID               `json:"id"`
	CorrelationID     string                  `json:"correlation_id"`
	Kind              request.RequestKind     `json:"kind"`
	State             request.RequestState    `json:"state"`
	Category          string                  `json:"category"`
	AutoResolvable    bool                    `json:"auto_resolvable"`
	Payload           request.RequestPayload  `json:"payload"`
	ExternalTicketRef *string                 `json:"external_ticket_ref,omitempty"`
	ExternalOrderRef  *string                 `json:"external_order_ref,omitempty"`
	AssignedResource  *string                 `json:"assigned_resource,omitempty"`
	ErrorKind         string                  `json:"error_kind,omitempty"`
	ErrorMessage      string                  `json:"error_message,omitempty"`
	AttemptCount      int                     `json:"attempt_count"`
	NextRetryAt       *time.Time              `json:"next_retry_at,omitempty"`
	DecidedBy         string                  `json:"decided_by,omitempty"`
	DecisionReason    string                  `json:"decision_reason,omitempty"`
	DecidedAt         *time.Time              `json:"decided_at,omitempty"`
	CompletedAt       *time.Time              `json:"completed_at,omitempty"`
	Version           int                     `json:"version"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// ToRequestResponse maps the aggregate to its external view
func ToRequestResponse(r *request.ServiceRequest) RequestResponse {
	return RequestResponse{
		ID:                r.ID,
		CorrelationID:     r.CorrelationID,
		Kind:              r.Kind,
		State:             r.State,
		Category:          r.Category,
		AutoResolvable:    r.AutoResolvable,
		Payload:           r.Payload,
		ExternalTicketRef: r.ExternalTicketRef,
		ExternalOrderRef:  r.ExternalOrderRef,
		AssignedResource:  r.AssignedResource,
		ErrorKind:         r.ErrorKind,
		ErrorMessage:      r.ErrorMessage,
		AttemptCount:      r.AttemptCount,
		NextRetryAt:       r.NextRetryAt,
		DecidedBy:         r.DecidedBy,
		DecisionReason:    r.DecisionReason,
		DecidedAt:         r.DecidedAt,
		CompletedAt:       r.CompletedAt,
		Version:           r.Version,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// TransitionResponse is the external view of one audit trail entry
type TransitionResponse struct {
	ID        uuid.UUID `json:"id"`
	FromState string    `json:"from_state,omitempty"`
	ToState   string    `json:"to_state"`
	Actor     string    `json:"actor"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToTransitionResponses maps audit records to their external view
func ToTransitionResponses(records []request.TransitionRecord) []TransitionResponse {
	out := make([]TransitionResponse, len(records))
	for i, rec := range records {
		out[i] = TransitionResponse{
			ID:        rec.ID,
			FromState: string(rec.FromState),
			ToState:   string(rec.ToState),
			Actor:     rec.Actor,
			ErrorKind: rec.ErrorKind,
			Detail:    rec.Detail,
			CreatedAt: rec.CreatedAt,
		}
	}
	return out
}
