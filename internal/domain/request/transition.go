package request

import (
	"time"

	"github.com/google/uuid"
)

// Error taxonomy tags recorded on transitions into failure states
const (
	ErrorKindTransient        = "TRANSIENT"
	ErrorKindPermanent        = "PERMANENT"
	ErrorKindValidationFailed = "VALIDATION_FAILED"
)

// TransitionRecord is one append-only entry in a request's audit trail.
// Records are never updated or deleted after being written.
type TransitionRecord struct {
	ID        uuid.UUID
	RequestID uuid.UUID
	FromState RequestState
	ToState   RequestState
	Actor     string
	ErrorKind string
	Detail    string
	CreatedAt time.Time
}

// NewTransitionRecord creates a transition record for a request
func NewTransitionRecord(requestID uuid.UUID, from, to RequestState, actor, errorKind, detail string) TransitionRecord {
	return TransitionRecord{
		ID:        uuid.New(),
		RequestID: requestID,
		FromState: from,
		ToState:   to,
		Actor:     actor,
		ErrorKind: errorKind,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
}
