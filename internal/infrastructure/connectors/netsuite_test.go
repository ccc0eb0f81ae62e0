package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fieldbridge/backend/internal/domain/connector"
	"github.com/fieldbridge/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetSuiteCheckAvailability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/services/rest/availability/check", r.URL.Path)

		var body netSuiteAvailabilityRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"belt"}, body.Parts)
		assert.Equal(t, "cc-7", body.CostCenter)

		json.NewEncoder(w).Encode(map[string]any{
			"parts": []map[string]any{{"id": "belt", "available": 3}},
			"technicians": []map[string]any{
				{"id": "tech-1", "skills": []string{"hvac"}, "workload": 2, "location": "zone-7"},
			},
			"budget_remaining": "1500",
			"location_known":   true,
		})
	}))
	defer srv.Close()

	c := NewNetSuiteConnector(config.ConnectorConfig{BaseURL: srv.URL})
	report, err := c.CheckAvailability(context.Background(), connector.AvailabilityQuery{
		RequiredParts:  []string{"belt"},
		RequiredSkills: []string{"hvac"},
		CostCenter:     "cc-7",
		EstimatedCost:  decimal.NewFromInt(300),
		Location:       "zone-7",
	})
	require.NoError(t, err)

	assert.True(t, report.PartAvailable("belt"))
	assert.False(t, report.PartAvailable("compressor"))
	require.Len(t, report.Technicians, 1)
	assert.Equal(t, "tech-1", report.Technicians[0].TechnicianID)
	assert.True(t, report.BudgetRemaining.Equal(decimal.NewFromInt(1500)))
	assert.True(t, report.LocationKnown)
}

func TestNetSuiteCreateOrder(t *testing.T) {
	t.Run("sends the idempotency key and maps the order", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/services/rest/record/v1/salesOrder", r.URL.Path)
			assert.Equal(t, "corr-9", r.Header.Get("Idempotency-Key"))

			var body netSuiteOrderRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "corr-9", body.ExternalID)
			assert.Equal(t, "INC-100", body.TicketRef)

			json.NewEncoder(w).Encode(map[string]string{"tran_id": "SO-77", "status": "created"})
		}))
		defer srv.Close()

		c := NewNetSuiteConnector(config.ConnectorConfig{BaseURL: srv.URL})
		order, err := c.CreateOrder(context.Background(), connector.OrderRequest{
			CorrelationID: "corr-9",
			TicketRef:     "INC-100",
			Subject:       "Replace compressor",
			EstimatedCost: decimal.NewFromInt(250),
		})
		require.NoError(t, err)
		assert.Equal(t, "SO-77", order.Ref)
	})

	t.Run("validation rejection is permanent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unknown cost center", http.StatusUnprocessableEntity)
		}))
		defer srv.Close()

		c := NewNetSuiteConnector(config.ConnectorConfig{BaseURL: srv.URL})
		_, err := c.CreateOrder(context.Background(), connector.OrderRequest{CorrelationID: "corr-9"})
		require.Error(t, err)
		assert.True(t, connector.IsPermanent(err))
	})

	t.Run("unreachable erp is transient", func(t *testing.T) {
		c := NewNetSuiteConnector(config.ConnectorConfig{BaseURL: "http://127.0.0.1:1", RetryAttempts: 1})
		_, err := c.CreateOrder(context.Background(), connector.OrderRequest{CorrelationID: "corr-9"})
		require.Error(t, err)
		assert.True(t, connector.IsTransient(err))
	})
}

func TestInMemoryConnectors(t *testing.T) {
	ctx := context.Background()

	t.Run("itsm is idempotent on correlation id", func(t *testing.T) {
		itsm := NewInMemoryITSM()
		a, err := itsm.CreateTicket(ctx, connector.TicketRequest{CorrelationID: "corr-1"})
		require.NoError(t, err)
		b, err := itsm.CreateTicket(ctx, connector.TicketRequest{CorrelationID: "corr-1"})
		require.NoError(t, err)
		assert.Equal(t, a.Ref, b.Ref)

		found, err := itsm.GetTicket(ctx, a.Ref)
		require.NoError(t, err)
		assert.Equal(t, a, found)
	})

	t.Run("erp is idempotent on correlation id", func(t *testing.T) {
		erp := NewInMemoryERP()
		a, err := erp.CreateOrder(ctx, connector.OrderRequest{CorrelationID: "corr-1"})
		require.NoError(t, err)
		b, err := erp.CreateOrder(ctx, connector.OrderRequest{CorrelationID: "corr-1"})
		require.NoError(t, err)
		assert.Equal(t, a.Ref, b.Ref)

		report, err := erp.CheckAvailability(ctx, connector.AvailabilityQuery{RequiredParts: []string{"belt"}})
		require.NoError(t, err)
		assert.True(t, report.PartAvailable("belt"))
	})
}
