package connectors

import (
	"context"
	"net/http"

	"github.com/fieldbridge/backend/internal/domain/connector"
	"github.com/fieldbridge/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
)

// NetSuiteConnector implements connector.ERPConnector against a
// NetSuite-style REST API. Order creation carries the correlation ID as an
// idempotency key; redelivered creates return the already-created order.
type NetSuiteConnector struct {
	client *apiClient
}

// NewNetSuiteConnector creates a NetSuite ERP connector
func NewNetSuiteConnector(cfg config.ConnectorConfig) *NetSuiteConnector {
	return &NetSuiteConnector{client: newAPIClient("erp", cfg)}
}

type netSuiteAvailabilityRequest struct {
	Parts      []string        `json:"parts,omitempty"`
	Skills     []string        `json:"skills,omitempty"`
	CostCenter string          `json:"cost_center,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Location   string          `json:"location,omitempty"`
}

type netSuiteAvailabilityResponse struct {
	Parts []struct {
		ID        string `json:"id"`
		Available int    `json:"available"`
	} `json:"parts"`
	Technicians []struct {
		ID       string   `json:"id"`
		Skills   []string `json:"skills"`
		Workload int      `json:"workload"`
		Location string   `json:"location"`
	} `json:"technicians"`
	BudgetRemaining decimal.Decimal `json:"budget_remaining"`
	LocationKnown   bool            `json:"location_known"`
}

// CheckAvailability asks the ERP for the current resource picture
func (c *NetSuiteConnector) CheckAvailability(ctx context.Context, query connector.AvailabilityQuery) (*connector.AvailabilityReport, error) {
	payload := netSuiteAvailabilityRequest{
		Parts:      query.RequiredParts,
		Skills:     query.RequiredSkills,
		CostCenter: query.CostCenter,
		Amount:     query.EstimatedCost,
		Location:   query.Location,
	}

	var resp netSuiteAvailabilityResponse
	if err := c.client.call(ctx, "CheckAvailability", http.MethodPost, "/services/rest/availability/check", nil, payload, &resp); err != nil {
		return nil, err
	}

	report := &connector.AvailabilityReport{
		BudgetRemaining: resp.BudgetRemaining,
		LocationKnown:   resp.LocationKnown,
	}
	for _, p := range resp.Parts {
		report.Parts = append(report.Parts, connector.PartStock{PartID: p.ID, Available: p.Available})
	}
	for _, tech := range resp.Technicians {
		report.Technicians = append(report.Technicians, connector.TechnicianAvailability{
			TechnicianID: tech.ID,
			Skills:       tech.Skills,
			Workload:     tech.Workload,
			Location:     tech.Location,
		})
	}
	return report, nil
}

type netSuiteOrderRequest struct {
	ExternalID string          `json:"external_id"`
	TicketRef  string          `json:"ticket_ref,omitempty"`
	Memo       string          `json:"memo"`
	CostCenter string          `json:"cost_center,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Items      []string        `json:"items,omitempty"`
	Technician string          `json:"technician,omitempty"`
}

type netSuiteOrderResponse struct {
	TranID string `json:"tran_id"`
	Status string `json:"status"`
}

// CreateOrder creates the fulfilment order in the ERP
func (c *NetSuiteConnector) CreateOrder(ctx context.Context, req connector.OrderRequest) (*connector.Order, error) {
	payload := netSuiteOrderRequest{
		ExternalID: req.CorrelationID,
		TicketRef:  req.TicketRef,
		Memo:       req.Subject,
		CostCenter: req.CostCenter,
		Amount:     req.EstimatedCost,
		Items:      req.Parts,
		Technician: req.TechnicianID,
	}
	headers := map[string]string{"Idempotency-Key": req.CorrelationID}

	var resp netSuiteOrderResponse
	if err := c.client.call(ctx, "CreateOrder", http.MethodPost, "/services/rest/record/v1/salesOrder", headers, payload, &resp); err != nil {
		return nil, err
	}
	return &connector.Order{Ref: resp.TranID, Status: resp.Status}, nil
}

var _ connector.ERPConnector = (*NetSuiteConnector)(nil)
