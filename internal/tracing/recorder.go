// Package tracing forwards per-request traces to an external observability
// backend without blocking the request path.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/domain"
	"github.com/davidbz/ember/internal/observability"
)

const (
	defaultQueueSize     = 1000
	defaultBatchSize     = 50
	defaultFlushInterval = time.Second
	defaultSendTimeout   = 10 * time.Second

	usageUnitTokens = "TOKENS"
)

// Options tunes the delivery worker.
type Options struct {
	Enabled       bool
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	SendTimeout   time.Duration
}

// OptionsFromConfig maps the tracing configuration onto recorder options.
func OptionsFromConfig(cfg *config.TracingConfig) Options {
	return Options{
		Enabled:       cfg.Enabled,
		QueueSize:     cfg.QueueSize,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		SendTimeout:   cfg.SendTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = defaultFlushInterval
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = defaultSendTimeout
	}
	return o
}

// Recorder implements domain.TraceRecorder on top of a Sink.
// Events are queued and handed to the sink in batches by one worker.
type Recorder struct {
	sink   Sink
	opts   Options
	logger *zap.Logger

	queue    chan Event
	flushReq chan chan struct{}
	closing  chan struct{}
	done     chan struct{}

	closed    atomic.Bool
	dropped   atomic.Int64
	closeOnce sync.Once
	sinkOnce  sync.Once
	sinkErr   error
}

// NewRecorder starts a recorder delivering to sink. A nil sink or disabled
// options yield a recorder on which every method is a no-op.
func NewRecorder(sink Sink, opts Options, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil || !opts.Enabled {
		return NewDisabled()
	}

	opts = opts.withDefaults()

	r := &Recorder{
		sink:     sink,
		opts:     opts,
		logger:   logger.Named("tracing"),
		queue:    make(chan Event, opts.QueueSize),
		flushReq: make(chan chan struct{}),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}

	go r.run()

	return r
}

// NewDisabled returns a recorder that records nothing.
func NewDisabled() *Recorder {
	return &Recorder{logger: zap.NewNop()}
}

// Enabled reports whether events are delivered.
func (r *Recorder) Enabled() bool {
	return r.sink != nil
}

// Dropped returns the number of events discarded because the queue was full
// or the recorder was shut down.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// BeginTrace opens a trace. The params ID is kept when set.
func (r *Recorder) BeginTrace(ctx context.Context, params domain.TraceParams) *domain.TraceHandle {
	if !r.Enabled() {
		return nil
	}

	id := params.ID
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now()
	ok := r.enqueue(ctx, Event{
		ID:        uuid.NewString(),
		Type:      EventTraceCreate,
		Timestamp: now,
		Trace: &TraceBody{
			ID:        id,
			Name:      params.Name,
			UserID:    params.UserID,
			SessionID: params.SessionID,
			Metadata:  params.Metadata,
			Tags:      params.Tags,
			Input:     params.Input,
			Timestamp: now,
		},
	})
	if !ok {
		return nil
	}

	return &domain.TraceHandle{ID: id}
}

// RecordGeneration attaches an engine call to a trace.
func (r *Recorder) RecordGeneration(
	ctx context.Context,
	trace *domain.TraceHandle,
	params domain.GenerationParams,
) *domain.GenerationHandle {
	if !r.Enabled() || trace == nil {
		return nil
	}

	body := &GenerationBody{
		ID:              uuid.NewString(),
		TraceID:         trace.ID,
		Name:            params.Name,
		Model:           params.Model,
		ModelParameters: params.Metadata,
		Input:           params.Input,
		Output:          params.Output,
		StartTime:       params.StartTime,
		EndTime:         params.EndTime,
		Level:           params.Level,
		StatusMessage:   params.StatusMessage,
	}
	if params.Usage != nil {
		body.Usage = &UsageBody{
			Input:  params.Usage.PromptTokens,
			Output: params.Usage.CompletionTokens,
			Total:  params.Usage.TotalTokens,
			Unit:   usageUnitTokens,
		}
	}

	if !r.enqueue(ctx, Event{
		ID:         uuid.NewString(),
		Type:       EventGenerationCreate,
		Timestamp:  time.Now(),
		Generation: body,
	}) {
		return nil
	}

	return &domain.GenerationHandle{ID: body.ID, TraceID: trace.ID}
}

// RecordSpan attaches a unit of proxy-side work to a trace.
func (r *Recorder) RecordSpan(ctx context.Context, trace *domain.TraceHandle, params domain.SpanParams) *domain.SpanHandle {
	if !r.Enabled() || trace == nil {
		return nil
	}

	body := &SpanBody{
		ID:        uuid.NewString(),
		TraceID:   trace.ID,
		Name:      params.Name,
		Input:     params.Input,
		Output:    params.Output,
		Metadata:  params.Metadata,
		StartTime: params.StartTime,
		EndTime:   params.EndTime,
	}

	if !r.enqueue(ctx, Event{
		ID:        uuid.NewString(),
		Type:      EventSpanCreate,
		Timestamp: time.Now(),
		Span:      body,
	}) {
		return nil
	}

	return &domain.SpanHandle{ID: body.ID, TraceID: trace.ID}
}

// RecordScore attaches an evaluation to a trace.
func (r *Recorder) RecordScore(ctx context.Context, trace *domain.TraceHandle, params domain.ScoreParams) bool {
	if !r.Enabled() || trace == nil {
		return false
	}

	return r.enqueue(ctx, Event{
		ID:        uuid.NewString(),
		Type:      EventScoreCreate,
		Timestamp: time.Now(),
		Score: &ScoreBody{
			ID:      uuid.NewString(),
			TraceID: trace.ID,
			Name:    params.Name,
			Value:   params.Value,
			Comment: params.Comment,
		},
	})
}

// Flush waits until every event queued so far has been handed to the sink,
// or ctx is done.
func (r *Recorder) Flush(ctx context.Context) {
	if !r.Enabled() {
		return
	}

	ack := make(chan struct{})
	select {
	case r.flushReq <- ack:
	case <-r.done:
		return
	case <-ctx.Done():
		return
	}

	select {
	case <-ack:
	case <-r.done:
	case <-ctx.Done():
	}
}

// Shutdown delivers the remaining events and closes the sink.
// Calling it again returns the first result.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}

	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.closing)
	})

	select {
	case <-r.done:
	case <-ctx.Done():
		// The worker may still be sending. The sink is closed regardless,
		// bounded by the send timeout.
		closeCtx, cancel := context.WithTimeout(context.Background(), r.opts.SendTimeout)
		defer cancel()
		return errors.Join(fmt.Errorf("trace recorder shutdown: %w", ctx.Err()), r.closeSink(closeCtx))
	}

	return r.closeSink(ctx)
}

func (r *Recorder) closeSink(ctx context.Context) error {
	r.sinkOnce.Do(func() {
		if err := r.sink.Close(ctx); err != nil {
			r.sinkErr = fmt.Errorf("failed to close trace sink: %w", err)
		}
	})

	return r.sinkErr
}

func (r *Recorder) enqueue(ctx context.Context, event Event) bool {
	if r.closed.Load() {
		r.dropped.Add(1)
		return false
	}

	select {
	case r.queue <- event:
		return true
	default:
		r.dropped.Add(1)
		observability.FromContext(ctx).Warn("trace queue full, dropping event",
			observability.String("event_type", string(event.Type)),
			observability.Int64("dropped_total", r.dropped.Load()),
		)
		return false
	}
}

func (r *Recorder) run() {
	defer close(r.done)

	batch := make([]Event, 0, r.opts.BatchSize)
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-r.queue:
			batch = append(batch, event)
			if len(batch) >= r.opts.BatchSize {
				batch = r.send(batch)
			}

		case <-ticker.C:
			batch = r.send(batch)

		case ack := <-r.flushReq:
			batch = r.send(r.drain(batch))
			close(ack)

		case <-r.closing:
			r.send(r.drain(batch))
			return
		}
	}
}

// drain moves everything currently queued into batch.
func (r *Recorder) drain(batch []Event) []Event {
	for {
		select {
		case event := <-r.queue:
			batch = append(batch, event)
		default:
			return batch
		}
	}
}

// send delivers batch in chunks of BatchSize and returns an empty batch.
func (r *Recorder) send(batch []Event) []Event {
	for start := 0; start < len(batch); start += r.opts.BatchSize {
		end := min(start+r.opts.BatchSize, len(batch))
		r.deliver(batch[start:end])
	}
	return make([]Event, 0, r.opts.BatchSize)
}

func (r *Recorder) deliver(events []Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.SendTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("trace sink panicked", zap.Any("panic", rec), zap.Int("events", len(events)))
		}
	}()

	if err := r.sink.Send(ctx, events); err != nil {
		r.logger.Warn("failed to deliver trace events",
			zap.Int("events", len(events)),
			zap.Error(err),
		)
		return
	}

	r.logger.Debug("delivered trace events", zap.Int("events", len(events)))
}
