package domain

import "context"

// Engine is an external completion engine that answers chat completions.
type Engine interface {
	// Complete sends a completion request and returns the full result.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)

	// Name returns the engine identifier.
	Name() string

	// Providers returns the provider tags this engine serves.
	Providers() []ProviderTag
}

// EngineRegistry resolves the engine responsible for a provider tag.
type EngineRegistry interface {
	// Register adds an engine to the registry.
	Register(ctx context.Context, engine Engine) error

	// Resolve returns the engine for a provider tag, falling back to the default engine.
	Resolve(ctx context.Context, provider ProviderTag) (Engine, error)

	// List returns the names of all registered engines.
	List(ctx context.Context) ([]string, error)
}

// CostCalculator estimates the USD cost of a completion.
type CostCalculator interface {
	EstimateCost(model string, promptTokens, completionTokens int) float64
}

// MetricsRecorder receives request samples. Implementations never fail.
type MetricsRecorder interface {
	// RecordRequest records the outcome of one completion attempt.
	RecordRequest(sample RequestSample)

	// RecordError counts a failed completion under its error kind.
	RecordError(model string, provider ProviderTag, kind ErrorKind)

	// TrackActive marks a request in flight. The returned release is idempotent.
	TrackActive(model string, provider ProviderTag) (release func())
}

// TraceRecorder forwards trace records to an observability sink.
// Every method is a no-op returning nil or false when tracing is disabled.
type TraceRecorder interface {
	Enabled() bool
	BeginTrace(ctx context.Context, params TraceParams) *TraceHandle
	RecordGeneration(ctx context.Context, trace *TraceHandle, params GenerationParams) *GenerationHandle
	RecordSpan(ctx context.Context, trace *TraceHandle, params SpanParams) *SpanHandle
	RecordScore(ctx context.Context, trace *TraceHandle, params ScoreParams) bool
	Flush(ctx context.Context)
	Shutdown(ctx context.Context) error
}
