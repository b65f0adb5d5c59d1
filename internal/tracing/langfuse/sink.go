// Package langfuse delivers trace events to the Langfuse ingestion API.
package langfuse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/tracing"
)

const (
	ingestionPath = "/api/public/ingestion"

	maxErrorBody = 4096
)

type ingestionEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Body      any       `json:"body"`
}

type ingestionRequest struct {
	Batch []ingestionEvent `json:"batch"`
}

type ingestionError struct {
	ID      string `json:"id"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type ingestionResponse struct {
	Errors []ingestionError `json:"errors"`
}

// Sink posts event batches to Langfuse using HTTP basic auth.
type Sink struct {
	endpoint  string
	publicKey string
	secretKey string
	client    *http.Client
}

// NewSink creates a Langfuse sink. A nil client uses a dedicated one with
// the given timeout.
func NewSink(cfg *config.LangfuseConfig, client *http.Client, timeout time.Duration) (*Sink, error) {
	if cfg.PublicKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("langfuse public and secret keys are required")
	}
	if cfg.Host == "" {
		return nil, errors.New("langfuse host is required")
	}

	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &Sink{
		endpoint:  strings.TrimRight(cfg.Host, "/") + ingestionPath,
		publicKey: cfg.PublicKey,
		secretKey: cfg.SecretKey,
		client:    client,
	}, nil
}

// Send posts one ingestion batch. 207 responses with per-event errors are
// reported as an error naming the rejected count.
func (s *Sink) Send(ctx context.Context, events []tracing.Event) error {
	if len(events) == 0 {
		return nil
	}

	payload := ingestionRequest{Batch: make([]ingestionEvent, 0, len(events))}
	for _, event := range events {
		payload.Batch = append(payload.Batch, ingestionEvent{
			ID:        event.ID,
			Type:      string(event.Type),
			Timestamp: event.Timestamp.UTC(),
			Body:      event.Body(),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal ingestion batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create ingestion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.publicKey, s.secretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ingestion request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("ingestion returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if resp.StatusCode == http.StatusMultiStatus {
		var result ingestionResponse
		if err := json.Unmarshal(respBody, &result); err == nil && len(result.Errors) > 0 {
			return fmt.Errorf("ingestion rejected %d of %d events: %s",
				len(result.Errors), len(events), result.Errors[0].Message)
		}
	}

	return nil
}

// Close releases idle connections.
func (s *Sink) Close(context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}
