package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fieldbridge/backend/internal/domain/connector"
	"github.com/fieldbridge/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceNowCreateTicket(t *testing.T) {
	t.Run("maps the request and response", func(t *testing.T) {
		var gotBody serviceNowCreateRequest
		var gotIdempotencyKey, gotAuth string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/api/now/table/incident", r.URL.Path)
			gotIdempotencyKey = r.Header.Get("Idempotency-Key")
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"number": "INC-100", "state": "open", "link": "https://itsm/INC-100",
			})
		}))
		defer srv.Close()

		c := NewServiceNowConnector(config.ConnectorConfig{BaseURL: srv.URL, APIKey: "sekrit"})
		ticket, err := c.CreateTicket(context.Background(), connector.TicketRequest{
			CorrelationID: "corr-1",
			Subject:       "Replace compressor",
			Priority:      "critical",
			Category:      "urgent_maintenance",
		})
		require.NoError(t, err)

		assert.Equal(t, "INC-100", ticket.Ref)
		assert.Equal(t, "open", ticket.Status)
		assert.Equal(t, "corr-1", gotIdempotencyKey)
		assert.Equal(t, "Bearer sekrit", gotAuth)
		assert.Equal(t, "corr-1", gotBody.CorrelationID)
		assert.Equal(t, "1", gotBody.Urgency)
	})

	t.Run("5xx is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "maintenance window", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := NewServiceNowConnector(config.ConnectorConfig{BaseURL: srv.URL, RetryAttempts: 1})
		_, err := c.CreateTicket(context.Background(), connector.TicketRequest{CorrelationID: "corr-1"})
		require.Error(t, err)
		assert.True(t, connector.IsTransient(err))
	})

	t.Run("4xx is permanent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad category", http.StatusBadRequest)
		}))
		defer srv.Close()

		c := NewServiceNowConnector(config.ConnectorConfig{BaseURL: srv.URL})
		_, err := c.CreateTicket(context.Background(), connector.TicketRequest{CorrelationID: "corr-1"})
		require.Error(t, err)
		assert.True(t, connector.IsPermanent(err))
	})

	t.Run("throttling is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "slow down", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := NewServiceNowConnector(config.ConnectorConfig{BaseURL: srv.URL, RetryAttempts: 1})
		_, err := c.CreateTicket(context.Background(), connector.TicketRequest{CorrelationID: "corr-1"})
		require.Error(t, err)
		assert.True(t, connector.IsTransient(err))
	})

	t.Run("timeout is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		c := NewServiceNowConnector(config.ConnectorConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond, RetryAttempts: 1})
		_, err := c.CreateTicket(context.Background(), connector.TicketRequest{CorrelationID: "corr-1"})
		require.Error(t, err)
		assert.True(t, connector.IsTransient(err))
	})
}

func TestServiceNowGetTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/now/table/incident/INC-100", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"number": "INC-100", "state": "closed"})
	}))
	defer srv.Close()

	c := NewServiceNowConnector(config.ConnectorConfig{BaseURL: srv.URL})
	ticket, err := c.GetTicket(context.Background(), "INC-100")
	require.NoError(t, err)
	assert.Equal(t, "closed", ticket.Status)
}
