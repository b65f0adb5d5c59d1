package sinks_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/tracing/langfuse"
	"github.com/davidbz/ember/internal/tracing/otlp"
	"github.com/davidbz/ember/internal/tracing/redis"
	"github.com/davidbz/ember/internal/tracing/sinks"
)

func baseConfig(sink string) *config.Config {
	cfg := &config.Config{}
	cfg.Tracing.Enabled = true
	cfg.Tracing.Sink = sink
	cfg.OTLP.ServiceName = "ember-test"
	return cfg
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("should build a langfuse sink", func(t *testing.T) {
		cfg := baseConfig(config.SinkLangfuse)
		cfg.Langfuse = config.LangfuseConfig{PublicKey: "pk", SecretKey: "sk", Host: "http://localhost:3000", Enabled: true}

		sink, err := sinks.New(ctx, cfg)
		require.NoError(t, err)
		require.IsType(t, &langfuse.Sink{}, sink)
	})

	t.Run("should build a stdout sink", func(t *testing.T) {
		sink, err := sinks.New(ctx, baseConfig(config.SinkStdout))
		require.NoError(t, err)
		require.IsType(t, &otlp.Sink{}, sink)
		require.NoError(t, sink.Close(ctx))
	})

	t.Run("should build a redis sink", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := baseConfig(config.SinkRedis)
		cfg.Redis = config.RedisConfig{Addr: mr.Addr(), Stream: "ember:traces"}

		sink, err := sinks.New(ctx, cfg)
		require.NoError(t, err)
		require.IsType(t, &redis.Sink{}, sink)
		require.NoError(t, sink.Close(ctx))
	})

	t.Run("should return no sink when langfuse keys are missing", func(t *testing.T) {
		cfg := baseConfig(config.SinkLangfuse)
		cfg.Langfuse.Enabled = true

		sink, err := sinks.New(ctx, cfg)
		require.NoError(t, err)
		require.Nil(t, sink)
	})

	t.Run("should return no sink when tracing is off", func(t *testing.T) {
		cfg := baseConfig(config.SinkStdout)
		cfg.Tracing.Enabled = false

		sink, err := sinks.New(ctx, cfg)
		require.NoError(t, err)
		require.Nil(t, sink)
	})
}

func TestNewRecorder(t *testing.T) {
	t.Run("should disable tracing when the sink cannot connect", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		cfg := baseConfig(config.SinkRedis)
		cfg.Redis.Addr = addr

		recorder := sinks.NewRecorder(cfg, zap.NewNop())
		require.False(t, recorder.Enabled())
	})

	t.Run("should enable tracing with a working sink", func(t *testing.T) {
		cfg := baseConfig(config.SinkStdout)
		cfg.Tracing.QueueSize = 10

		recorder := sinks.NewRecorder(cfg, zap.NewNop())
		require.True(t, recorder.Enabled())
		require.NoError(t, recorder.Shutdown(context.Background()))
	})
}
