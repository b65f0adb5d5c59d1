package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidbz/ember/internal/observability"
)

const (
	// DefaultUserID is used when the caller does not identify itself.
	DefaultUserID = "anonymous"

	traceName      = "chat_completion"
	generationName = "llm_generation"
	routeSpanName  = "route"
)

// GatewayService instruments completion requests on their way to an engine.
type GatewayService struct {
	engines EngineRegistry
	costs   CostCalculator
	metrics MetricsRecorder
	tracer  TraceRecorder
}

// NewGatewayService creates a new gateway service (DI constructor).
func NewGatewayService(
	engines EngineRegistry,
	costs CostCalculator,
	metrics MetricsRecorder,
	tracer TraceRecorder,
) *GatewayService {
	return &GatewayService{
		engines: engines,
		costs:   costs,
		metrics: metrics,
		tracer:  tracer,
	}
}

type engineOutcome struct {
	result *CompletionResult
	err    error
}

// Complete forwards req to the engine serving its provider and records
// metrics and traces for the attempt. The only error it returns is the
// engine failure, as an *UpstreamError. rc is filled with defaults and
// receives the measured duration.
func (g *GatewayService) Complete(
	ctx context.Context,
	req *CompletionRequest,
	rc *RequestContext,
) (*CompletionResult, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if rc == nil {
		rc = &RequestContext{}
	}

	// START
	rc.StartTime = time.Now()
	if rc.TraceID == "" {
		rc.TraceID = observability.GenerateTraceID()
	}
	if rc.UserID == "" {
		rc.UserID = DefaultUserID
	}
	if rc.SessionID == "" {
		rc.SessionID = rc.TraceID
	}

	// PROVIDER_RESOLVED
	provider := ClassifyProvider(req.Model)

	ctx = observability.WithTraceID(ctx, rc.TraceID)
	ctx = observability.WithUserID(ctx, rc.UserID)
	ctx = observability.WithSessionID(ctx, rc.SessionID)
	ctx = observability.WithProvider(ctx, provider.String())
	ctx = observability.WithModel(ctx, req.Model)

	logger := observability.FromContext(ctx)
	logger.Debug("forwarding completion",
		observability.Int("messages", len(req.Messages)),
		observability.String("preview", FormatMessages(req.Messages)),
	)

	// ACTIVE
	release := g.trackActive(ctx, req.Model, provider)
	defer release()

	trace := g.beginTrace(ctx, req, rc, provider)

	result, err := g.invoke(ctx, req, rc, provider, trace)
	endTime := time.Now()
	rc.Duration = endTime.Sub(rc.StartTime)

	if err != nil {
		// FAILED
		return nil, g.fail(ctx, req, rc, provider, trace, endTime, err)
	}

	// COMPLETED
	g.succeed(ctx, req, rc, provider, trace, endTime, result)

	return result, nil
}

// Score attaches an evaluation to an existing trace.
func (g *GatewayService) Score(ctx context.Context, traceID string, params ScoreParams) bool {
	if traceID == "" || !g.tracer.Enabled() {
		return false
	}

	recorded := false
	g.safely(ctx, "record score", func() {
		recorded = g.tracer.RecordScore(ctx, &TraceHandle{ID: traceID}, params)
	})
	return recorded
}

func (g *GatewayService) invoke(
	ctx context.Context,
	req *CompletionRequest,
	rc *RequestContext,
	provider ProviderTag,
	trace *TraceHandle,
) (*CompletionResult, error) {
	routeStart := time.Now()
	engine, err := g.engines.Resolve(ctx, provider)
	g.recordRoute(ctx, trace, provider, engine, routeStart, err)
	if err != nil {
		return nil, toUpstream(ctx, provider, err)
	}

	done := make(chan engineOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- engineOutcome{
					err: NewUpstreamError(ErrorKindInternal, provider, fmt.Errorf("engine %s panicked: %v", engine.Name(), r)),
				}
			}
		}()

		result, completeErr := engine.Complete(ctx, req.WithUser(rc.UserID))
		done <- engineOutcome{result: result, err: completeErr}
	}()

	select {
	case <-ctx.Done():
		return nil, toUpstream(ctx, provider, ctx.Err())
	case out := <-done:
		if out.err != nil {
			return nil, toUpstream(ctx, provider, out.err)
		}
		if out.result == nil {
			return nil, NewUpstreamError(ErrorKindInternal, provider, fmt.Errorf("engine %s returned no result", engine.Name()))
		}
		return out.result, nil
	}
}

func (g *GatewayService) succeed(
	ctx context.Context,
	req *CompletionRequest,
	rc *RequestContext,
	provider ProviderTag,
	trace *TraceHandle,
	endTime time.Time,
	result *CompletionResult,
) {
	promptTokens, completionTokens := result.Tokens()
	cost := g.costs.EstimateCost(req.Model, promptTokens, completionTokens)

	g.safely(ctx, "record request", func() {
		g.metrics.RecordRequest(RequestSample{
			Model:            req.Model,
			Provider:         provider,
			Status:           StatusSuccess,
			Duration:         rc.Duration,
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			Cost:             cost,
		})
	})

	if trace != nil {
		g.safely(ctx, "record generation", func() {
			g.tracer.RecordGeneration(ctx, trace, GenerationParams{
				Name:      generationName,
				Model:     req.Model,
				Input:     req.Messages,
				Output:    result.Choices,
				Usage:     result.Usage,
				Metadata:  generationMetadata(req, provider),
				StartTime: rc.StartTime,
				EndTime:   endTime,
				Level:     LevelDefault,
			})
		})
	}

	observability.FromContext(ctx).Info("completion succeeded",
		observability.Duration("duration", rc.Duration),
		observability.Int("prompt_tokens", promptTokens),
		observability.Int("completion_tokens", completionTokens),
		observability.Float64("cost_usd", cost),
	)
}

func (g *GatewayService) fail(
	ctx context.Context,
	req *CompletionRequest,
	rc *RequestContext,
	provider ProviderTag,
	trace *TraceHandle,
	endTime time.Time,
	err error,
) *UpstreamError {
	upstream := toUpstream(ctx, provider, err)

	g.safely(ctx, "record request", func() {
		g.metrics.RecordRequest(RequestSample{
			Model:    req.Model,
			Provider: provider,
			Status:   StatusError,
			Duration: rc.Duration,
		})
	})
	g.safely(ctx, "record error", func() {
		g.metrics.RecordError(req.Model, provider, upstream.Kind)
	})

	if trace != nil {
		g.safely(ctx, "record failed generation", func() {
			g.tracer.RecordGeneration(ctx, trace, GenerationParams{
				Name:          generationName,
				Model:         req.Model,
				Input:         req.Messages,
				Metadata:      generationMetadata(req, provider),
				StartTime:     rc.StartTime,
				EndTime:       endTime,
				Level:         LevelError,
				StatusMessage: upstream.Error(),
			})
		})
	}

	observability.FromContext(ctx).Error("completion failed",
		observability.String("error_kind", string(upstream.Kind)),
		observability.Duration("duration", rc.Duration),
		observability.Error(upstream.Err),
	)

	return upstream
}

func (g *GatewayService) trackActive(ctx context.Context, model string, provider ProviderTag) func() {
	var release func()
	g.safely(ctx, "track active request", func() {
		release = g.metrics.TrackActive(model, provider)
	})

	return func() {
		if release != nil {
			g.safely(ctx, "release active request", release)
		}
	}
}

func (g *GatewayService) beginTrace(
	ctx context.Context,
	req *CompletionRequest,
	rc *RequestContext,
	provider ProviderTag,
) *TraceHandle {
	if !g.tracer.Enabled() {
		return nil
	}

	var trace *TraceHandle
	g.safely(ctx, "begin trace", func() {
		trace = g.tracer.BeginTrace(ctx, TraceParams{
			ID:        rc.TraceID,
			Name:      traceName,
			UserID:    rc.UserID,
			SessionID: rc.SessionID,
			Metadata: BuildTraceMetadata(req, map[string]any{
				"endpoint": rc.Endpoint,
				"provider": provider.String(),
			}),
			Tags:  []string{provider.String(), req.Model},
			Input: req.Messages,
		})
	})
	return trace
}

func (g *GatewayService) recordRoute(
	ctx context.Context,
	trace *TraceHandle,
	provider ProviderTag,
	engine Engine,
	start time.Time,
	err error,
) {
	if trace == nil {
		return
	}

	output := map[string]any{}
	if err != nil {
		output["error"] = err.Error()
	} else {
		output["engine"] = engine.Name()
	}

	g.safely(ctx, "record route span", func() {
		g.tracer.RecordSpan(ctx, trace, SpanParams{
			Name:      routeSpanName,
			Input:     map[string]any{"provider": provider.String()},
			Output:    output,
			StartTime: start,
			EndTime:   time.Now(),
		})
	})
}

// safely runs an instrumentation call, logging instead of propagating panics.
func (g *GatewayService) safely(ctx context.Context, operation string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			observability.FromContext(ctx).Error("instrumentation failed",
				observability.String("operation", operation),
				observability.Any("panic", r),
			)
		}
	}()

	fn()
}

func generationMetadata(req *CompletionRequest, provider ProviderTag) map[string]any {
	metadata := map[string]any{"provider": provider.String()}
	if req.Temperature != nil {
		metadata["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		metadata["max_tokens"] = *req.MaxTokens
	}
	return metadata
}

func toUpstream(ctx context.Context, provider ProviderTag, err error) *UpstreamError {
	kind := ClassifyError(ctx, err)

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		if upstream.Kind == kind {
			return upstream
		}
		return NewUpstreamError(kind, provider, upstream.Err)
	}

	return NewUpstreamError(kind, provider, err)
}
