// Package sinks builds the trace sink selected by configuration.
package sinks

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/tracing"
	"github.com/davidbz/ember/internal/tracing/langfuse"
	"github.com/davidbz/ember/internal/tracing/otlp"
	"github.com/davidbz/ember/internal/tracing/redis"
)

// New creates the sink named by TRACING_SINK. It returns a nil sink when
// tracing is disabled or the selected sink is missing settings.
func New(ctx context.Context, cfg *config.Config) (tracing.Sink, error) {
	if !cfg.SinkConfigured() {
		return nil, nil //nolint:nilnil // a nil sink disables the recorder
	}

	switch cfg.Tracing.Sink {
	case config.SinkLangfuse:
		return langfuse.NewSink(&cfg.Langfuse, &http.Client{Timeout: cfg.Tracing.SendTimeout}, cfg.Tracing.SendTimeout)

	case config.SinkOTLP, config.SinkStdout:
		exporter, err := otlp.NewExporter(ctx, cfg.Tracing.Sink, &cfg.OTLP)
		if err != nil {
			return nil, err
		}
		return otlp.NewSink(exporter, cfg.OTLP.ServiceName)

	case config.SinkRedis:
		return redis.NewSink(ctx, &cfg.Redis)

	default:
		return nil, fmt.Errorf("unsupported tracing sink: %s", cfg.Tracing.Sink)
	}
}

// NewRecorder creates the trace recorder for cfg. A sink that cannot be
// built is logged and leaves tracing disabled; requests are still served.
func NewRecorder(cfg *config.Config, logger *zap.Logger) *tracing.Recorder {
	sink, err := New(context.Background(), cfg)
	if err != nil {
		logger.Warn("tracing disabled, sink unavailable",
			zap.String("sink", cfg.Tracing.Sink),
			zap.Error(err),
		)
		return tracing.NewDisabled()
	}

	if sink == nil {
		logger.Info("tracing disabled", zap.String("sink", cfg.Tracing.Sink))
		return tracing.NewDisabled()
	}

	logger.Info("tracing enabled", zap.String("sink", cfg.Tracing.Sink))
	return tracing.NewRecorder(sink, tracing.OptionsFromConfig(&cfg.Tracing), logger)
}
