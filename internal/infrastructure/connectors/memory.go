package connectors

import (
	"context"
	"fmt"
	"sync"

	"github.com/fieldbridge/backend/internal/domain/connector"
	"github.com/fieldbridge/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InMemoryITSM is a development stand-in for the ITSM system. It honors the
// same idempotency contract as the real connector: one ticket per
// correlation ID.
type InMemoryITSM struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]*connector.Ticket // by correlation ID
	byRef   map[string]*connector.Ticket
}

// NewInMemoryITSM creates an in-memory ITSM connector
func NewInMemoryITSM() *InMemoryITSM {
	return &InMemoryITSM{
		tickets: make(map[string]*connector.Ticket),
		byRef:   make(map[string]*connector.Ticket),
	}
}

// CreateTicket creates a ticket, or returns the existing one for the
// correlation ID.
func (m *InMemoryITSM) CreateTicket(ctx context.Context, req connector.TicketRequest) (*connector.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.tickets[req.CorrelationID]; ok {
		return existing, nil
	}
	m.seq++
	ticket := &connector.Ticket{
		Ref:    fmt.Sprintf("INC-%05d", m.seq),
		Status: "open",
	}
	m.tickets[req.CorrelationID] = ticket
	m.byRef[ticket.Ref] = ticket
	return ticket, nil
}

// GetTicket returns a ticket by reference
func (m *InMemoryITSM) GetTicket(ctx context.Context, ref string) (*connector.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ticket, ok := m.byRef[ref]; ok {
		return ticket, nil
	}
	return nil, shared.ErrNotFound
}

// InMemoryERP is a development stand-in for the ERP system. Every part is in
// stock, the budget is generous and two technicians are on call.
type InMemoryERP struct {
	mu     sync.Mutex
	seq    int
	orders map[string]*connector.Order // by correlation ID
}

// NewInMemoryERP creates an in-memory ERP connector
func NewInMemoryERP() *InMemoryERP {
	return &InMemoryERP{orders: make(map[string]*connector.Order)}
}

// CheckAvailability reports a fully stocked ERP
func (m *InMemoryERP) CheckAvailability(ctx context.Context, query connector.AvailabilityQuery) (*connector.AvailabilityReport, error) {
	report := &connector.AvailabilityReport{
		Technicians: []connector.TechnicianAvailability{
			{TechnicianID: "tech-dev-1", Skills: query.RequiredSkills, Workload: 0, Location: query.Location},
			{TechnicianID: "tech-dev-2", Skills: query.RequiredSkills, Workload: 2, Location: query.Location},
		},
		BudgetRemaining: decimal.NewFromInt(1_000_000),
		LocationKnown:   true,
	}
	for _, part := range query.RequiredParts {
		report.Parts = append(report.Parts, connector.PartStock{PartID: part, Available: 100})
	}
	return report, nil
}

// CreateOrder creates an order, or returns the existing one for the
// correlation ID.
func (m *InMemoryERP) CreateOrder(ctx context.Context, req connector.OrderRequest) (*connector.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.orders[req.CorrelationID]; ok {
		return existing, nil
	}
	m.seq++
	order := &connector.Order{
		Ref:    fmt.Sprintf("SO-%05d", m.seq),
		Status: "created",
	}
	m.orders[req.CorrelationID] = order
	return order, nil
}

var (
	_ connector.ITSMConnector = (*InMemoryITSM)(nil)
	_ connector.ERPConnector  = (*InMemoryERP)(nil)
)
