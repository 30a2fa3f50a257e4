package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/veriflow-io/veriflow/pkg/execution"
)

const defaultTimeout = 30 * time.Second

// ErrURLRequired is returned when the configuration lacks a URL.
var ErrURLRequired = errors.New("missing or invalid 'url' in configuration")

// ErrMessageRequired is returned when the configuration lacks a message.
var ErrMessageRequired = errors.New("missing or invalid 'message' in configuration")

// Executor posts a JSON notification to a webhook endpoint.
type Executor struct {
	URL     string
	Message string
	Headers map[string]string

	client *http.Client
}

// NewExecutor creates a notify executor from configuration.
func NewExecutor(config map[string]any) (*Executor, error) {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, ErrURLRequired
	}

	message, ok := config["message"].(string)
	if !ok || message == "" {
		return nil, ErrMessageRequired
	}

	headers := make(map[string]string)

	if headersConfig, exists := config["headers"]; exists {
		if headersMap, ok := headersConfig.(map[string]any); ok {
			for k, v := range headersMap {
				if strVal, ok := v.(string); ok {
					headers[k] = strVal
				}
			}
		}
	}

	return &Executor{
		URL:     url,
		Message: message,
		Headers: headers,
		client:  &http.Client{Timeout: defaultTimeout},
	}, nil
}

// Execute delivers the notification and returns the endpoint's response.
func (e *Executor) Execute(ctx context.Context, executionCtx *execution.Context, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor", "notify")
	logger.InfoContext(ctx, "Sending notification", "url", e.URL)

	payload, err := json.Marshal(map[string]any{
		"message":      e.Message,
		"execution_id": executionCtx.ID,
		"workflow_id":  executionCtx.WorkflowID,
		"sent_at":      time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build notification request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range e.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notification request failed: %w", err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.ErrorContext(ctx, "failed to close response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read notification response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}

	logger.InfoContext(ctx, "Notification delivered", "status", resp.StatusCode)

	return map[string]any{
		"status": resp.StatusCode,
		"body":   string(body),
	}, nil
}
