package observability_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/davidbz/ember/internal/observability"
)

func TestGenerateTraceID(t *testing.T) {
	t.Run("should produce distinct identifiers", func(t *testing.T) {
		const n = 10000
		seen := make(map[string]struct{}, n)

		for range n {
			id := observability.GenerateTraceID()
			_, dup := seen[id]
			require.False(t, dup, "duplicate trace id %s", id)
			seen[id] = struct{}{}
		}
	})

	t.Run("should be a canonical uuid", func(t *testing.T) {
		_, err := uuid.Parse(observability.GenerateTraceID())
		require.NoError(t, err)
	})

	t.Run("should generate 16 hex char span ids", func(t *testing.T) {
		require.Len(t, observability.GenerateSpanID(), 16)
	})
}

func TestContextValues(t *testing.T) {
	t.Run("should carry every key into log fields", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		observability.SetLogger(zap.New(core))
		t.Cleanup(func() { observability.SetLogger(zap.NewNop()) })

		ctx := context.Background()
		ctx = observability.WithTraceID(ctx, "trace")
		ctx = observability.WithSpanID(ctx, "span")
		ctx = observability.WithRequestID(ctx, "request")
		ctx = observability.WithUserID(ctx, "user")
		ctx = observability.WithSessionID(ctx, "session")
		ctx = observability.WithModel(ctx, "gpt-4")
		ctx = observability.WithProvider(ctx, "openai")

		require.Equal(t, "trace", observability.GetTraceID(ctx))
		require.Equal(t, "request", observability.GetRequestID(ctx))

		observability.FromContext(ctx).Info("hello")

		entries := logs.All()
		require.Len(t, entries, 1)
		require.Equal(t, map[string]any{
			"trace_id":   "trace",
			"span_id":    "span",
			"request_id": "request",
			"user_id":    "user",
			"session_id": "session",
			"provider":   "openai",
			"model":      "gpt-4",
		}, entries[0].ContextMap())
	})

	t.Run("should return empty strings for a bare context", func(t *testing.T) {
		ctx := context.Background()
		require.Empty(t, observability.GetTraceID(ctx))
		require.Empty(t, observability.GetRequestID(ctx))
	})
}

func TestFromContext(t *testing.T) {
	t.Run("should attach context fields to log entries", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		observability.SetLogger(zap.New(core))
		t.Cleanup(func() { observability.SetLogger(zap.NewNop()) })

		ctx := observability.WithTraceID(context.Background(), "abc")
		ctx = observability.WithModel(ctx, "claude-3-haiku")

		observability.FromContext(ctx).Info("hello")

		entries := logs.All()
		require.Len(t, entries, 1)

		fields := entries[0].ContextMap()
		require.Equal(t, "abc", fields["trace_id"])
		require.Equal(t, "claude-3-haiku", fields["model"])
		require.NotContains(t, fields, "user_id")
	})
}

func TestInitLogger(t *testing.T) {
	t.Cleanup(func() { observability.SetLogger(zap.NewNop()) })

	t.Run("should reject an unknown level", func(t *testing.T) {
		_, err := observability.InitLogger("verbose", false)
		require.Error(t, err)
	})

	t.Run("should honour the configured level", func(t *testing.T) {
		logger, err := observability.InitLogger("warn", true)
		require.NoError(t, err)
		require.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		require.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	})
}
