package tracing

import (
	"context"
	"time"
)

// EventType names an ingestion event.
type EventType string

// Event types understood by every sink.
const (
	EventTraceCreate      EventType = "trace-create"
	EventGenerationCreate EventType = "generation-create"
	EventSpanCreate       EventType = "span-create"
	EventScoreCreate      EventType = "score-create"
)

// Sink delivers batches of events to an external tracing backend.
// Send is called from a single goroutine; Close is called once.
type Sink interface {
	Send(ctx context.Context, events []Event) error
	Close(ctx context.Context) error
}

// Event is one queued observation. Exactly one body is set, matching Type.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time

	Trace      *TraceBody
	Generation *GenerationBody
	Span       *SpanBody
	Score      *ScoreBody
}

// Body returns the populated body.
func (e Event) Body() any {
	switch e.Type {
	case EventTraceCreate:
		return e.Trace
	case EventGenerationCreate:
		return e.Generation
	case EventSpanCreate:
		return e.Span
	case EventScoreCreate:
		return e.Score
	default:
		return nil
	}
}

// TraceID returns the trace the event belongs to.
func (e Event) TraceID() string {
	switch {
	case e.Trace != nil:
		return e.Trace.ID
	case e.Generation != nil:
		return e.Generation.TraceID
	case e.Span != nil:
		return e.Span.TraceID
	case e.Score != nil:
		return e.Score.TraceID
	default:
		return ""
	}
}

// TraceBody is the payload of a trace-create event.
type TraceBody struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	UserID    string         `json:"userId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Input     any            `json:"input,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// GenerationBody is the payload of a generation-create event.
type GenerationBody struct {
	ID              string         `json:"id"`
	TraceID         string         `json:"traceId"`
	Name            string         `json:"name"`
	Model           string         `json:"model,omitempty"`
	ModelParameters map[string]any `json:"modelParameters,omitempty"`
	Input           any            `json:"input,omitempty"`
	Output          any            `json:"output,omitempty"`
	Usage           *UsageBody     `json:"usage,omitempty"`
	StartTime       time.Time      `json:"startTime"`
	EndTime         time.Time      `json:"endTime"`
	Level           string         `json:"level,omitempty"`
	StatusMessage   string         `json:"statusMessage,omitempty"`
}

// UsageBody reports token usage of a generation.
type UsageBody struct {
	Input  int    `json:"input"`
	Output int    `json:"output"`
	Total  int    `json:"total"`
	Unit   string `json:"unit"`
}

// SpanBody is the payload of a span-create event.
type SpanBody struct {
	ID        string         `json:"id"`
	TraceID   string         `json:"traceId"`
	Name      string         `json:"name"`
	Input     any            `json:"input,omitempty"`
	Output    any            `json:"output,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime"`
}

// ScoreBody is the payload of a score-create event.
type ScoreBody struct {
	ID      string  `json:"id"`
	TraceID string  `json:"traceId"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Comment string  `json:"comment,omitempty"`
}
