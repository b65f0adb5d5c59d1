package domain

import "time"

// Observation levels understood by tracing sinks.
const (
	LevelDefault = "DEFAULT"
	LevelError   = "ERROR"
)

// TraceParams describes the root trace of one proxied request.
type TraceParams struct {
	ID        string
	Name      string
	UserID    string
	SessionID string
	Metadata  map[string]any
	Tags      []string
	Input     any
}

// TraceHandle identifies a trace that was handed to the recorder.
type TraceHandle struct {
	ID string
}

// GenerationParams describes one engine call within a trace.
type GenerationParams struct {
	Name          string
	Model         string
	Input         any
	Output        any
	Usage         *Usage
	Metadata      map[string]any
	StartTime     time.Time
	EndTime       time.Time
	Level         string
	StatusMessage string
}

// GenerationHandle identifies a recorded generation.
type GenerationHandle struct {
	ID      string
	TraceID string
}

// SpanParams describes a unit of proxy-side work within a trace.
type SpanParams struct {
	Name      string
	Input     any
	Output    any
	Metadata  map[string]any
	StartTime time.Time
	EndTime   time.Time
}

// SpanHandle identifies a recorded span.
type SpanHandle struct {
	ID      string
	TraceID string
}

// ScoreParams attaches an evaluation to a trace.
type ScoreParams struct {
	Name    string
	Value   float64
	Comment string
}
