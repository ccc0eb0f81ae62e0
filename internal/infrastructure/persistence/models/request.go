package models

import (
	"encoding/json"
	"time"

	"github.com/fieldbridge/backend/internal/domain/request"
	"github.com/google/uuid"
)

// ServiceRequestModel is the persistence model for the ServiceRequest aggregate.
// The payload is stored as jsonb; the hash column carries the canonical
// digest used for replay detection so it stays queryable without parsing.
type ServiceRequestModel struct {
	ID                uuid.UUID            `gorm:"type:uuid;primary_key"`
	CorrelationID     string               `gorm:"type:varchar(128);not null;uniqueIndex:uq_service_requests_correlation_id"`
	Kind              request.RequestKind  `gorm:"type:varchar(32);not null"`
	PayloadJSON       string               `gorm:"type:jsonb;column:payload"`
	PayloadHash       string               `gorm:"type:char(64);not null"`
	State             request.RequestState `gorm:"type:varchar(32);not null;index:idx_service_requests_state"`
	Category          string               `gorm:"type:varchar(64);index:idx_service_requests_category"`
	AutoResolvable    bool                 `gorm:"not null;default:false"`
	ExternalTicketRef *string              `gorm:"type:varchar(128)"`
	ExternalOrderRef  *string              `gorm:"type:varchar(128)"`
	AssignedResource  *string              `gorm:"type:varchar(128)"`
	ErrorMessage      string               `gorm:"type:text"`
	ErrorKind         string               `gorm:"type:varchar(32)"`
	AttemptCount      int                  `gorm:"not null;default:0"`
	NextRetryAt       *time.Time           `gorm:"index:idx_service_requests_next_retry_at"`
	DecidedBy         string               `gorm:"type:varchar(128)"`
	DecisionReason    string               `gorm:"type:text"`
	DecidedAt         *time.Time
	CompletedAt       *time.Time
	FailedAt          *time.Time
	Version           int       `gorm:"not null;default:1"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ServiceRequestModel) TableName() string {
	return "service_requests"
}

// ToDomain converts the persistence model to the domain aggregate
func (m *ServiceRequestModel) ToDomain() *request.ServiceRequest {
	r := &request.ServiceRequest{
		CorrelationID:     m.CorrelationID,
		Kind:              m.Kind,
		PayloadHash:       m.PayloadHash,
		State:             m.State,
		Category:          m.Category,
		AutoResolvable:    m.AutoResolvable,
		ExternalTicketRef: m.ExternalTicketRef,
		ExternalOrderRef:  m.ExternalOrderRef,
		AssignedResource:  m.AssignedResource,
		ErrorMessage:      m.ErrorMessage,
		ErrorKind:         m.ErrorKind,
		AttemptCount:      m.AttemptCount,
		NextRetryAt:       m.NextRetryAt,
		DecidedBy:         m.DecidedBy,
		DecisionReason:    m.DecisionReason,
		DecidedAt:         m.DecidedAt,
		CompletedAt:       m.CompletedAt,
		FailedAt:          m.FailedAt,
	}
	r.ID = m.ID
	r.Version = m.Version
	r.CreatedAt = m.CreatedAt
	r.UpdatedAt = m.UpdatedAt

	if m.PayloadJSON != "" {
		var payload request.RequestPayload
		if err := json.Unmarshal([]byte(m.PayloadJSON), &payload); err == nil {
			r.Payload = payload
		}
	}
	return r
}

// FromDomain populates the persistence model from the domain aggregate
func (m *ServiceRequestModel) FromDomain(r *request.ServiceRequest) {
	m.ID = r.ID
	m.CorrelationID = r.CorrelationID
	m.Kind = r.Kind
	m.PayloadHash = r.PayloadHash
	m.State = r.State
	m.Category = r.Category
	m.AutoResolvable = r.AutoResolvable
	m.ExternalTicketRef = r.ExternalTicketRef
	m.ExternalOrderRef = r.ExternalOrderRef
	m.AssignedResource = r.AssignedResource
	m.ErrorMessage = r.ErrorMessage
	m.ErrorKind = r.ErrorKind
	m.AttemptCount = r.AttemptCount
	m.NextRetryAt = r.NextRetryAt
	m.DecidedBy = r.DecidedBy
	m.DecisionReason = r.DecisionReason
	m.DecidedAt = r.DecidedAt
	m.CompletedAt = r.CompletedAt
	m.FailedAt = r.FailedAt
	m.Version = r.Version
	m.CreatedAt = r.CreatedAt
	m.UpdatedAt = r.UpdatedAt

	if data, err := json.Marshal(r.Payload); err == nil {
		m.PayloadJSON = string(data)
	}
}

// ServiceRequestModelFromDomain creates a persistence model from the aggregate
func ServiceRequestModelFromDomain(r *request.ServiceRequest) *ServiceRequestModel {
	m := &ServiceRequestModel{}
	m.FromDomain(r)
	return m
}

// TransitionRecordModel is the persistence model for one audit trail entry
type TransitionRecordModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	RequestID uuid.UUID `gorm:"type:uuid;not null;index:idx_transition_records_request_id"`
	FromState string    `gorm:"type:varchar(32)"`
	ToState   string    `gorm:"type:varchar(32);not null"`
	Actor     string    `gorm:"type:varchar(128);not null"`
	ErrorKind string    `gorm:"type:varchar(32)"`
	Detail    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;index:idx_transition_records_created_at"`
}

// TableName returns the table name for GORM
func (TransitionRecordModel) TableName() string {
	return "transition_records"
}

// ToDomain converts the persistence model to the domain record
func (m *TransitionRecordModel) ToDomain() request.TransitionRecord {
	return request.TransitionRecord{
		ID:        m.ID,
		RequestID: m.RequestID,
		FromState: request.RequestState(m.FromState),
		ToState:   request.RequestState(m.ToState),
		Actor:     m.Actor,
		ErrorKind: m.ErrorKind,
		Detail:    m.Detail,
		CreatedAt: m.CreatedAt,
	}
}

// TransitionRecordModelFromDomain creates a persistence model from the record
func TransitionRecordModelFromDomain(rec request.TransitionRecord) *TransitionRecordModel {
	return &TransitionRecordModel{
		ID:        rec.ID,
		RequestID: rec.RequestID,
		FromState: string(rec.FromState),
		ToState:   string(rec.ToState),
		Actor:     rec.Actor,
		ErrorKind: rec.ErrorKind,
		Detail:    rec.Detail,
		CreatedAt: rec.CreatedAt,
	}
}
