package request

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fieldbridge/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RequestKind represents the kind of business request being orchestrated
type RequestKind string

const (
	KindAppointment     RequestKind = "APPOINTMENT"
	KindWorkOrder       RequestKind = "WORK_ORDER"
	KindAccountCreation RequestKind = "ACCOUNT_CREATION"
)

// IsValid checks if the kind is a valid RequestKind
func (k RequestKind) IsValid() bool {
	switch k {
	case KindAppointment, KindWorkOrder, KindAccountCreation:
		return true
	}
	return false
}

// String returns the string representation of RequestKind
func (k RequestKind) String() string {
	return string(k)
}

// RequestState represents the lifecycle state of a service request
type RequestState string

const (
	StatePendingReview  RequestState = "PENDING_REVIEW"
	StateApproved       RequestState = "APPROVED"
	StateRejected       RequestState = "REJECTED"
	StateSentToExternal RequestState = "SENT_TO_EXTERNAL"
	StateExternalFailed RequestState = "EXTERNAL_FAILED"
	StateCompleted      RequestState = "COMPLETED"
	StateFailedTerminal RequestState = "FAILED_TERMINAL"
)

// IsValid checks if the state is a valid RequestState
func (s RequestState) IsValid() bool {
	switch s {
	case StatePendingReview, StateApproved, StateRejected, StateSentToExternal,
		StateExternalFailed, StateCompleted, StateFailedTerminal:
		return true
	}
	return false
}

// String returns the string representation of RequestState
func (s RequestState) String() string {
	return string(s)
}

// IsTerminal returns true if the state has no outgoing transitions
func (s RequestState) IsTerminal() bool {
	switch s {
	case StateRejected, StateCompleted, StateFailedTerminal:
		return true
	}
	return false
}

// CanTransitionTo checks if the state can transition to the target state
func (s RequestState) CanTransitionTo(target RequestState) bool {
	switch s {
	case StatePendingReview:
		return target == StateApproved || target == StateRejected
	case StateApproved:
		return target == StateSentToExternal || target == StateExternalFailed
	case StateSentToExternal:
		return target == StateCompleted || target == StateExternalFailed
	case StateExternalFailed:
		return target == StateSentToExternal || target == StateFailedTerminal
	case StateRejected, StateCompleted, StateFailedTerminal:
		return false
	}
	return false
}

// Priority levels accepted on a payload
const (
	PriorityLow      = "low"
	PriorityNormal   = "normal"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ScheduleWindow is the acceptable time range for fulfilling the request
type ScheduleWindow struct {
	EarliestAt *time.Time `json:"earliest_at,omitempty"`
	LatestAt   *time.Time `json:"latest_at,omitempty"`
}

// RequestPayload carries the data the external systems need to fulfil the
// request. It is opaque to the state machine; only its canonical hash matters
// for idempotent replay detection.
type RequestPayload struct {
	Subject        string          `json:"subject"`
	Description    string          `json:"description,omitempty"`
	Priority       string          `json:"priority"`
	RequiredParts  []string        `json:"required_parts,omitempty"`
	RequiredSkills []string        `json:"required_skills,omitempty"`
	AccountRef     string          `json:"account_ref,omitempty"`
	CostCenter     string          `json:"cost_center,omitempty"`
	EstimatedCost  decimal.Decimal `json:"estimated_cost"`
	Location       string          `json:"location,omitempty"`
	Window         ScheduleWindow  `json:"window,omitempty"`
}

// Validate checks the payload for structural problems
func (p *RequestPayload) Validate() error {
	if strings.TrimSpace(p.Subject) == "" {
		return shared.NewDomainError("INVALID_PAYLOAD", "Subject cannot be empty")
	}
	if len(p.Subject) > 255 {
		return shared.NewDomainError("INVALID_PAYLOAD", "Subject cannot exceed 255 characters")
	}
	switch p.Priority {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
	default:
		return shared.NewDomainError("INVALID_PAYLOAD", fmt.Sprintf("Unknown priority %q", p.Priority))
	}
	if p.EstimatedCost.IsNegative() {
		return shared.NewDomainError("INVALID_PAYLOAD", "Estimated cost cannot be negative")
	}
	if p.Window.EarliestAt != nil && p.Window.LatestAt != nil && p.Window.EarliestAt.After(*p.Window.LatestAt) {
		return shared.NewDomainError("INVALID_PAYLOAD", "Scheduling window earliest_at is after latest_at")
	}
	return nil
}

// Hash returns the canonical SHA-256 hash of the payload. Slices are sorted
// and strings trimmed before hashing so semantically equal payloads always
// produce the same hash regardless of field ordering in the submission.
func (p *RequestPayload) Hash() string {
	canon := *p
	canon.Subject = strings.TrimSpace(p.Subject)
	canon.Description = strings.TrimSpace(p.Description)
	canon.RequiredParts = sortedCopy(p.RequiredParts)
	canon.RequiredSkills = sortedCopy(p.RequiredSkills)

	// json.Marshal emits struct fields in declaration order, which makes the
	// rendering canonical for a fixed struct definition.
	data, err := json.Marshal(&canon)
	if err != nil {
		// Marshalling a plain struct of strings and decimals cannot fail;
		// fall back to an empty hash rather than panic.
		data = nil
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	sort.Strings(out)
	return out
}

// Well-known actors recorded on transitions
const (
	ActorSystem    = "system"
	ActorScheduler = "scheduler"
	ActorWebhook   = "itsm-webhook"
	ActorAuto      = "auto"
)

// ServiceRequest is the aggregate root owning the cross-system lifecycle of
// one business request. All state transitions go through its methods; each
// successful transition is recorded as a pending TransitionRecord that the
// orchestrator persists together with the aggregate.
type ServiceRequest struct {
	shared.BaseAggregateRoot
	CorrelationID string
	Kind          RequestKind
	Payload       RequestPayload
	PayloadHash   string
	State         RequestState

	// Classifier routing hint; never consulted by the state machine.
	Category       string
	AutoResolvable bool

	// External references are append-only facts: once set they are never
	// cleared or reassigned.
	ExternalTicketRef *string
	ExternalOrderRef  *string

	AssignedResource *string
	ErrorMessage     string
	ErrorKind        string
	AttemptCount     int
	NextRetryAt      *time.Time

	DecidedBy      string
	DecisionReason string
	DecidedAt      *time.Time
	CompletedAt    *time.Time
	FailedAt       *time.Time

	pending []TransitionRecord
}

// NewServiceRequest creates a new service request in PENDING_REVIEW
func NewServiceRequest(correlationID string, kind RequestKind, payload RequestPayload) (*ServiceRequest, error) {
	if strings.TrimSpace(correlationID) == "" {
		return nil, shared.NewDomainError("INVALID_PAYLOAD", "Correlation ID cannot be empty")
	}
	if len(correlationID) > 128 {
		return nil, shared.NewDomainError("INVALID_PAYLOAD", "Correlation ID cannot exceed 128 characters")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYLOAD", fmt.Sprintf("Unknown request kind %q", kind))
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	r := &ServiceRequest{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CorrelationID:     correlationID,
		Kind:              kind,
		Payload:           payload,
		PayloadHash:       payload.Hash(),
		State:             StatePendingReview,
	}
	r.record("", StatePendingReview, ActorSystem, "", "request submitted")
	return r, nil
}

// SetClassification stores the classifier routing hint
func (r *ServiceRequest) SetClassification(category string, autoResolvable bool) {
	r.Category = category
	r.AutoResolvable = autoResolvable
}

// MatchesPayload reports whether a replayed submission carries the same payload
func (r *ServiceRequest) MatchesPayload(p RequestPayload) bool {
	return r.PayloadHash == p.Hash()
}

// AcceptTicketRef records the ITSM ticket reference. The reference is
// write-once; accepting the same value again is a no-op so at-least-once
// ticket creation stays idempotent.
func (r *ServiceRequest) AcceptTicketRef(ref string) error {
	if ref == "" {
		return shared.NewDomainError("INVALID_PAYLOAD", "Ticket reference cannot be empty")
	}
	if r.ExternalTicketRef != nil {
		if *r.ExternalTicketRef == ref {
			return nil
		}
		return shared.NewDomainError("CONFLICT", "Ticket reference is already set and cannot be reassigned")
	}
	r.ExternalTicketRef = &ref
	r.UpdatedAt = time.Now()
	return nil
}

// NeedsTicket returns true if the ITSM ticket still has to be created
func (r *ServiceRequest) NeedsTicket() bool {
	return r.ExternalTicketRef == nil && r.State == StatePendingReview
}

// Approve transitions the request from PENDING_REVIEW to APPROVED
func (r *ServiceRequest) Approve(actor, resourceID, reason string) error {
	if !r.State.CanTransitionTo(StateApproved) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot approve request in %s state", r.State))
	}
	now := time.Now()
	from := r.State
	r.State = StateApproved
	if resourceID != "" {
		r.AssignedResource = &resourceID
	}
	r.DecidedBy = actor
	r.DecisionReason = reason
	r.DecidedAt = &now
	r.UpdatedAt = now
	r.record(from, StateApproved, actor, "", reason)
	return nil
}

// Reject transitions the request from PENDING_REVIEW to REJECTED. The
// errorKind carries the taxonomy tag (empty for a plain human rejection,
// VALIDATION_FAILED when the resource validator refused the request).
func (r *ServiceRequest) Reject(actor, reason, errorKind string) error {
	if !r.State.CanTransitionTo(StateRejected) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot reject request in %s state", r.State))
	}
	now := time.Now()
	from := r.State
	r.State = StateRejected
	r.DecidedBy = actor
	r.DecisionReason = reason
	r.ErrorKind = errorKind
	if errorKind != "" {
		r.ErrorMessage = reason
	}
	r.DecidedAt = &now
	r.UpdatedAt = now
	r.record(from, StateRejected, actor, errorKind, reason)
	return nil
}

// MarkDispatched transitions to SENT_TO_EXTERNAL before the ERP call is made
// and counts the attempt. Legal from APPROVED (first dispatch) and from
// EXTERNAL_FAILED (retry).
func (r *ServiceRequest) MarkDispatched(actor string) error {
	if !r.State.CanTransitionTo(StateSentToExternal) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot dispatch request in %s state", r.State))
	}
	now := time.Now()
	from := r.State
	r.State = StateSentToExternal
	r.AttemptCount++
	r.NextRetryAt = nil
	r.UpdatedAt = now
	r.record(from, StateSentToExternal, actor, "", fmt.Sprintf("order dispatch attempt %d", r.AttemptCount))
	return nil
}

// MarkCompleted records the ERP order reference and completes the request
func (r *ServiceRequest) MarkCompleted(actor, orderRef string) error {
	if !r.State.CanTransitionTo(StateCompleted) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete request in %s state", r.State))
	}
	if orderRef == "" {
		return shared.NewDomainError("INVALID_PAYLOAD", "Order reference cannot be empty")
	}
	if r.ExternalOrderRef != nil && *r.ExternalOrderRef != orderRef {
		return shared.NewDomainError("CONFLICT", "Order reference is already set and cannot be reassigned")
	}
	now := time.Now()
	from := r.State
	r.State = StateCompleted
	if r.ExternalOrderRef == nil {
		r.ExternalOrderRef = &orderRef
	}
	r.ErrorMessage = ""
	r.ErrorKind = ""
	r.CompletedAt = &now
	r.UpdatedAt = now
	r.record(from, StateCompleted, actor, "", "order "+orderRef+" created")
	return nil
}

// MarkExternalFailed records a failed external call. A transient failure
// schedules the next automatic retry; a permanent one leaves NextRetryAt nil
// so only a manual retry can move the request again.
func (r *ServiceRequest) MarkExternalFailed(actor, errorKind, message string, nextRetryAt *time.Time) error {
	if !r.State.CanTransitionTo(StateExternalFailed) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail request in %s state", r.State))
	}
	now := time.Now()
	from := r.State
	r.State = StateExternalFailed
	r.ErrorKind = errorKind
	r.ErrorMessage = message
	r.NextRetryAt = nextRetryAt
	r.UpdatedAt = now
	r.record(from, StateExternalFailed, actor, errorKind, message)
	return nil
}

// MarkTerminalFailure dead-letters the request after retries are exhausted
func (r *ServiceRequest) MarkTerminalFailure(actor, message string) error {
	if !r.State.CanTransitionTo(StateFailedTerminal) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot dead-letter request in %s state", r.State))
	}
	now := time.Now()
	from := r.State
	r.State = StateFailedTerminal
	r.ErrorMessage = message
	r.NextRetryAt = nil
	r.FailedAt = &now
	r.UpdatedAt = now
	r.record(from, StateFailedTerminal, actor, r.ErrorKind, message)
	return nil
}

// ClearDeadLetter re-opens a dead-lettered request for a manual retry. This
// is the one deliberate exception to the terminal-state rule: it requires an
// explicit operator action and resets the attempt counter.
func (r *ServiceRequest) ClearDeadLetter(actor string) error {
	if r.State != StateFailedTerminal {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot clear dead letter in %s state", r.State))
	}
	now := time.Now()
	r.State = StateExternalFailed
	r.AttemptCount = 0
	r.NextRetryAt = &now
	r.UpdatedAt = now
	r.record(StateFailedTerminal, StateExternalFailed, actor, "", "dead letter cleared by operator")
	return nil
}

// ReconcileTicketClosed reacts to the ITSM ticket being closed externally
// while the request is still waiting for review. Requests past review keep
// their state; the closure is only an audit fact then.
func (r *ServiceRequest) ReconcileTicketClosed(actor, detail string) error {
	if r.State != StatePendingReview {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Ticket closure does not apply in %s state", r.State))
	}
	return r.Reject(actor, detail, "")
}

// RetryDue reports whether the request is eligible for an automatic retry
func (r *ServiceRequest) RetryDue(now time.Time) bool {
	return r.State == StateExternalFailed && r.NextRetryAt != nil && !r.NextRetryAt.After(now)
}

// IsTerminal returns true if the request is in a terminal state
func (r *ServiceRequest) IsTerminal() bool {
	return r.State.IsTerminal()
}

// TakePendingTransitions returns and clears the transitions recorded since
// the last call. The orchestrator appends them to the audit trail in the same
// write as the aggregate.
func (r *ServiceRequest) TakePendingTransitions() []TransitionRecord {
	out := r.pending
	r.pending = nil
	return out
}

func (r *ServiceRequest) record(from, to RequestState, actor, errorKind, detail string) {
	r.pending = append(r.pending, NewTransitionRecord(r.ID, from, to, actor, errorKind, detail))
}
