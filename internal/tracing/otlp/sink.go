// Package otlp converts trace events into OpenTelemetry spans.
//
// Every event of a trace becomes a span under one trace id derived from the
// proxy trace id. The trace-create event is the root span and the other
// events are its children, so backends such as Jaeger or Tempo show one tree
// per request.
package otlp

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/domain"
	"github.com/davidbz/ember/internal/tracing"
)

const (
	instrumentationName = "github.com/davidbz/ember/internal/tracing/otlp"
	serviceVersion      = "0.1.0"
)

// Attribute keys set on converted spans.
const (
	AttrUserID       = attribute.Key("enduser.id")
	AttrSessionID    = attribute.Key("session.id")
	AttrTags         = attribute.Key("ember.trace.tags")
	AttrModel        = attribute.Key("gen_ai.request.model")
	AttrInputTokens  = attribute.Key("gen_ai.usage.input_tokens")
	AttrOutputTokens = attribute.Key("gen_ai.usage.output_tokens")
	AttrTotalTokens  = attribute.Key("gen_ai.usage.total_tokens")
	AttrLevel        = attribute.Key("ember.level")
	AttrScoreName    = attribute.Key("ember.score.name")
	AttrScoreValue   = attribute.Key("ember.score.value")
	AttrScoreComment = attribute.Key("ember.score.comment")
	AttrEventType    = attribute.Key("ember.event.type")
	AttrInput        = attribute.Key("ember.input")
	AttrOutput       = attribute.Key("ember.output")

	metadataPrefix = "ember.metadata."
)

// NewExporter creates the span exporter for the given sink name: a gRPC OTLP
// exporter for "otlp" and a pretty-printing stdout exporter for "stdout".
func NewExporter(ctx context.Context, sink string, cfg *config.OTLPConfig) (sdktrace.SpanExporter, error) {
	switch sink {
	case config.SinkOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}

		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		return exporter, nil

	case config.SinkStdout:
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		return exporter, nil

	default:
		return nil, fmt.Errorf("unsupported span exporter: %s", sink)
	}
}

// Sink turns event batches into spans and exports them.
type Sink struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewSink creates a sink exporting through exporter. The provider is private
// to the sink and never installed globally.
func NewSink(exporter sdktrace.SpanExporter, serviceName string) (*Sink, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithIDGenerator(idGenerator{}),
	)

	return &Sink{
		provider: provider,
		tracer:   provider.Tracer(instrumentationName),
	}, nil
}

// Send converts events to spans and waits for them to be exported.
func (s *Sink) Send(ctx context.Context, events []tracing.Event) error {
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		s.emit(ctx, event)
	}

	if err := s.provider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("failed to export spans: %w", err)
	}
	return nil
}

// Close flushes pending spans and shuts the exporter down.
func (s *Sink) Close(ctx context.Context) error {
	if err := s.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down tracer provider: %w", err)
	}
	return nil
}

func (s *Sink) emit(ctx context.Context, event tracing.Event) {
	traceID := TraceIDFor(event.TraceID())
	eventAttr := AttrEventType.String(string(event.Type))

	switch event.Type {
	case tracing.EventTraceCreate:
		body := event.Trace
		attrs := []attribute.KeyValue{eventAttr, AttrTags.StringSlice(body.Tags)}
		if body.UserID != "" {
			attrs = append(attrs, AttrUserID.String(body.UserID))
		}
		if body.SessionID != "" {
			attrs = append(attrs, AttrSessionID.String(body.SessionID))
		}
		attrs = append(attrs, metadataAttributes(body.Metadata)...)
		attrs = appendJSON(attrs, AttrInput, body.Input)

		rootCtx := withRootIDs(ctx, traceID, rootSpanID(traceID))
		_, span := s.tracer.Start(rootCtx, body.Name,
			trace.WithNewRoot(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithTimestamp(body.Timestamp),
			trace.WithAttributes(attrs...),
		)
		span.End(trace.WithTimestamp(body.Timestamp))

	case tracing.EventGenerationCreate:
		body := event.Generation
		attrs := []attribute.KeyValue{eventAttr, AttrModel.String(body.Model)}
		if body.Usage != nil {
			attrs = append(attrs,
				AttrInputTokens.Int(body.Usage.Input),
				AttrOutputTokens.Int(body.Usage.Output),
				AttrTotalTokens.Int(body.Usage.Total),
			)
		}
		if body.Level != "" {
			attrs = append(attrs, AttrLevel.String(body.Level))
		}
		attrs = append(attrs, metadataAttributes(body.ModelParameters)...)
		attrs = appendJSON(attrs, AttrInput, body.Input)
		attrs = appendJSON(attrs, AttrOutput, body.Output)

		_, span := s.tracer.Start(childContext(ctx, traceID), body.Name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithTimestamp(body.StartTime),
			trace.WithAttributes(attrs...),
		)
		if body.Level == domain.LevelError {
			span.SetStatus(codes.Error, body.StatusMessage)
		}
		span.End(trace.WithTimestamp(body.EndTime))

	case tracing.EventSpanCreate:
		body := event.Span
		attrs := append([]attribute.KeyValue{eventAttr}, metadataAttributes(body.Metadata)...)
		attrs = appendJSON(attrs, AttrInput, body.Input)
		attrs = appendJSON(attrs, AttrOutput, body.Output)

		_, span := s.tracer.Start(childContext(ctx, traceID), body.Name,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithTimestamp(body.StartTime),
			trace.WithAttributes(attrs...),
		)
		span.End(trace.WithTimestamp(body.EndTime))

	case tracing.EventScoreCreate:
		body := event.Score
		attrs := []attribute.KeyValue{
			eventAttr,
			AttrScoreName.String(body.Name),
			AttrScoreValue.Float64(body.Value),
		}
		if body.Comment != "" {
			attrs = append(attrs, AttrScoreComment.String(body.Comment))
		}

		_, span := s.tracer.Start(childContext(ctx, traceID), "score "+body.Name,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithTimestamp(event.Timestamp),
			trace.WithAttributes(attrs...),
		)
		span.End(trace.WithTimestamp(event.Timestamp))
	}
}

// TraceIDFor maps a proxy trace id onto an OpenTelemetry trace id. UUIDs map
// byte for byte; any other string is hashed into a name-based UUID first.
func TraceIDFor(id string) trace.TraceID {
	parsed, err := uuid.Parse(id)
	if err != nil {
		parsed = uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
	}
	return trace.TraceID(parsed)
}

func rootSpanID(traceID trace.TraceID) trace.SpanID {
	var id trace.SpanID
	copy(id[:], traceID[8:])
	if !id.IsValid() {
		id[7] = 1
	}
	return id
}

// childContext parents new spans under the root span of traceID.
func childContext(ctx context.Context, traceID trace.TraceID) context.Context {
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     rootSpanID(traceID),
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithRemoteSpanContext(ctx, parent)
}

func metadataAttributes(metadata map[string]any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(metadata))
	for key, value := range metadata {
		attrs = append(attrs, attributeFor(metadataPrefix+key, value))
	}
	return attrs
}

func attributeFor(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case *float64:
		if v != nil {
			return attribute.Float64(key, *v)
		}
	case *int:
		if v != nil {
			return attribute.Int(key, *v)
		}
	}
	return attribute.String(key, fmt.Sprint(value))
}

func appendJSON(attrs []attribute.KeyValue, key attribute.Key, value any) []attribute.KeyValue {
	if value == nil {
		return attrs
	}
	if s, ok := value.(string); ok {
		return append(attrs, key.String(s))
	}
	data, err := json.Marshal(value)
	if err != nil {
		return attrs
	}
	return append(attrs, key.String(string(data)))
}

type rootIDsKey struct{}

type rootIDs struct {
	traceID trace.TraceID
	spanID  trace.SpanID
}

func withRootIDs(ctx context.Context, traceID trace.TraceID, spanID trace.SpanID) context.Context {
	return context.WithValue(ctx, rootIDsKey{}, rootIDs{traceID: traceID, spanID: spanID})
}

// idGenerator lets root spans take the ids carried in the context, so the
// trace-create span gets the id its children already point at.
type idGenerator struct{}

func (idGenerator) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	if ids, ok := ctx.Value(rootIDsKey{}).(rootIDs); ok {
		return ids.traceID, ids.spanID
	}
	return trace.TraceID(uuid.New()), randomSpanID()
}

func (idGenerator) NewSpanID(context.Context, trace.TraceID) trace.SpanID {
	return randomSpanID()
}

func randomSpanID() trace.SpanID {
	var id trace.SpanID
	for !id.IsValid() {
		_, _ = rand.Read(id[:])
	}
	return id
}
