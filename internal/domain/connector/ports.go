// Package connector defines the outbound ports to the external CRM, ITSM and
// ERP systems, plus the error taxonomy their adapters must speak. Adapters
// live under infrastructure/connectors.
package connector

import (
	"context"

	"github.com/shopspring/decimal"
)

// TicketRequest is the data needed to open an ITSM ticket for review
type TicketRequest struct {
	CorrelationID string
	Subject       string
	Description   string
	Priority      string
	Category      string
}

// Ticket is an ITSM ticket as the external system reports it
type Ticket struct {
	Ref    string
	Status string
	URL    string
}

// ITSMConnector talks to the IT service management system.
// CreateTicket must be idempotent on correlation ID: creating a ticket for a
// correlation ID that already has one returns the existing ticket.
type ITSMConnector interface {
	CreateTicket(ctx context.Context, req TicketRequest) (*Ticket, error)
	GetTicket(ctx context.Context, ref string) (*Ticket, error)
}

// OrderRequest is the data needed to create an ERP fulfilment order
type OrderRequest struct {
	CorrelationID string
	TicketRef     string
	Subject       string
	CostCenter    string
	EstimatedCost decimal.Decimal
	Parts         []string
	TechnicianID  string
}

// Order is an ERP order as the external system reports it
type Order struct {
	Ref    string
	Status string
}

// ERPConnector talks to the enterprise resource planning system.
// CreateOrder must be idempotent on correlation ID so an at-least-once
// dispatch never produces duplicate orders.
type ERPConnector interface {
	CheckAvailability(ctx context.Context, query AvailabilityQuery) (*AvailabilityReport, error)
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
}
