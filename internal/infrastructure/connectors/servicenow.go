package connectors

import (
	"context"
	"net/http"
	"net/url"

	"github.com/fieldbridge/backend/internal/domain/connector"
	"github.com/fieldbridge/backend/internal/infrastructure/config"
)

// ServiceNowConnector implements connector.ITSMConnector against a
// ServiceNow-style incident API. Ticket creation sends the correlation ID as
// an idempotency key so redelivered create calls return the existing ticket.
type ServiceNowConnector struct {
	client *apiClient
}

// NewServiceNowConnector creates a ServiceNow ITSM connector
func NewServiceNowConnector(cfg config.ConnectorConfig) *ServiceNowConnector {
	return &ServiceNowConnector{client: newAPIClient("itsm", cfg)}
}

type serviceNowTicket struct {
	Number string `json:"number"`
	State  string `json:"state"`
	Link   string `json:"link"`
}

type serviceNowCreateRequest struct {
	CorrelationID    string `json:"correlation_id"`
	ShortDescription string `json:"short_description"`
	Description      string `json:"description"`
	Urgency          string `json:"urgency"`
	Category         string `json:"category"`
}

// CreateTicket opens a review ticket for the request
func (c *ServiceNowConnector) CreateTicket(ctx context.Context, req connector.TicketRequest) (*connector.Ticket, error) {
	payload := serviceNowCreateRequest{
		CorrelationID:    req.CorrelationID,
		ShortDescription: req.Subject,
		Description:      req.Description,
		Urgency:          mapUrgency(req.Priority),
		Category:         req.Category,
	}
	headers := map[string]string{"Idempotency-Key": req.CorrelationID}

	var ticket serviceNowTicket
	if err := c.client.call(ctx, "CreateTicket", http.MethodPost, "/api/now/table/incident", headers, payload, &ticket); err != nil {
		return nil, err
	}
	return &connector.Ticket{
		Ref:    ticket.Number,
		Status: ticket.State,
		URL:    ticket.Link,
	}, nil
}

// GetTicket fetches the current state of a ticket
func (c *ServiceNowConnector) GetTicket(ctx context.Context, ref string) (*connector.Ticket, error) {
	var ticket serviceNowTicket
	path := "/api/now/table/incident/" + url.PathEscape(ref)
	if err := c.client.call(ctx, "GetTicket", http.MethodGet, path, nil, nil, &ticket); err != nil {
		return nil, err
	}
	return &connector.Ticket{
		Ref:    ticket.Number,
		Status: ticket.State,
		URL:    ticket.Link,
	}, nil
}

func mapUrgency(priority string) string {
	switch priority {
	case "critical":
		return "1"
	case "high":
		return "2"
	case "normal":
		return "3"
	default:
		return "4"
	}
}

var _ connector.ITSMConnector = (*ServiceNowConnector)(nil)
