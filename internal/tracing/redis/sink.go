// Package redis appends trace events to a Redis stream so other services can
// consume them with XREAD or consumer groups.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/tracing"
)

const pingTimeout = 5 * time.Second

// Stream entry fields.
const (
	FieldType      = "type"
	FieldID        = "id"
	FieldTraceID   = "trace_id"
	FieldTimestamp = "timestamp"
	FieldPayload   = "payload"
)

// Sink writes each event as one stream entry.
type Sink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewSink connects to Redis and verifies the connection.
func NewSink(ctx context.Context, cfg *config.RedisConfig) (*Sink, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewSinkWithClient(client, cfg.Stream, cfg.MaxLen), nil
}

// NewSinkWithClient wraps an existing client. The sink takes ownership and
// closes the client on Close. A maxLen of zero leaves the stream unbounded.
func NewSinkWithClient(client *redis.Client, stream string, maxLen int64) *Sink {
	return &Sink{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Send appends the batch in one pipeline round trip.
func (s *Sink) Send(ctx context.Context, events []tracing.Event) error {
	if len(events) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()

	for _, event := range events {
		payload, err := json.Marshal(event.Body())
		if err != nil {
			return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
		}

		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			MaxLen: s.maxLen,
			Approx: s.maxLen > 0,
			Values: []any{
				FieldType, string(event.Type),
				FieldID, event.ID,
				FieldTraceID, event.TraceID(),
				FieldTimestamp, event.Timestamp.UTC().Format(time.RFC3339Nano),
				FieldPayload, string(payload),
			},
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", s.stream, err)
	}
	return nil
}

// Close closes the Redis client.
func (s *Sink) Close(context.Context) error {
	return s.client.Close()
}
