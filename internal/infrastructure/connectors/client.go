// Package connectors holds the HTTP adapters for the external ITSM and ERP
// systems. Each adapter speaks one vendor API and translates its failures
// into the classified connector error taxonomy.
package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fieldbridge/backend/internal/domain/connector"
	"github.com/fieldbridge/backend/internal/infrastructure/config"
)

// maxResponseSize limits response bodies to prevent memory exhaustion
const maxResponseSize = 4 * 1024 * 1024 // 4MB

type apiClient struct {
	baseURL    string
	apiKey     string
	system     string
	httpClient *http.Client
	retry      retryPolicy
}

func newAPIClient(system string, cfg config.ConnectorConfig) *apiClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	retry := defaultRetryPolicy()
	if cfg.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.RetryAttempts
	}
	return &apiClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		system:  system,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retry: retry,
	}
}

// call performs a JSON round trip with adapter-local retries on transient
// failures.
func (c *apiClient) call(ctx context.Context, op, method, path string, headers map[string]string, payload, out any) error {
	return callWithRetry(ctx, c.retry, func() error {
		return c.doJSON(ctx, op, method, path, headers, payload, out)
	})
}

// doJSON performs one JSON round trip. Network failures and timeouts come
// back transient; HTTP error responses are classified by status code.
func (c *apiClient) doJSON(ctx context.Context, op, method, path string, headers map[string]string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return connector.NewPermanentError(c.system, op, 0, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return connector.NewPermanentError(c.system, op, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return connector.NewTransientError(c.system, op, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return connector.NewTransientError(c.system, op, resp.StatusCode, err)
	}

	if resp.StatusCode >= 400 {
		cause := fmt.Errorf("%s", truncate(data, 256))
		if connector.ClassifyStatus(resp.StatusCode) == connector.KindTransient {
			return connector.NewTransientError(c.system, op, resp.StatusCode, cause)
		}
		return connector.NewPermanentError(c.system, op, resp.StatusCode, cause)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return connector.NewPermanentError(c.system, op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

func truncate(data []byte, limit int) string {
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
