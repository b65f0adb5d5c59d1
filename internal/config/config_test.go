package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/ember/internal/config"
)

func TestLoad(t *testing.T) {
	t.Run("should load config with defaults", func(t *testing.T) {
		os.Clearenv()

		cfg := config.Load()

		require.NotNil(t, cfg)

		require.Equal(t, "0.0.0.0", cfg.Server.Host)
		require.Equal(t, 8000, cfg.Server.Port)
		require.Equal(t, 30, cfg.Server.ReadTimeout)
		require.Equal(t, 620, cfg.Server.WriteTimeout)
		require.Equal(t, "info", cfg.Log.Level)
		require.False(t, cfg.Log.Debug)
		require.True(t, cfg.Log.RequestLogging)
		require.True(t, cfg.Metrics.Enabled)
		require.Equal(t, 9090, cfg.Metrics.Port)
		require.Equal(t, "llmproxy", cfg.Metrics.Namespace)
		require.Equal(t, 1000, cfg.Metrics.MaxModels)
		require.Equal(t, config.SinkLangfuse, cfg.Tracing.Sink)
		require.Equal(t, time.Second, cfg.Tracing.FlushInterval)
		require.Equal(t, "https://cloud.langfuse.com", cfg.Langfuse.Host)
		require.Equal(t, "ember:traces", cfg.Redis.Stream)
		require.Equal(t, 600, cfg.OpenAI.Timeout)
		require.Equal(t, 3, cfg.OpenAI.MaxRetries)
		require.Empty(t, cfg.OpenAI.APIKey)
		require.Contains(t, cfg.CORS.AllowedHeaders, "X-User-ID")
		require.Contains(t, cfg.CORS.AllowedHeaders, "X-Session-ID")
		require.False(t, cfg.Echo.Enabled)
	})

	t.Run("should load config from environment variables", func(t *testing.T) {
		t.Setenv("PROXY_PORT", "9000")
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("DEBUG_MODE", "true")
		t.Setenv("ENABLE_PROMETHEUS", "false")
		t.Setenv("TRACING_SINK", "redis")
		t.Setenv("TRACING_FLUSH_INTERVAL", "250ms")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("OPENAI_API_KEY", "sk-test-key")
		t.Setenv("OPENAI_BASE_URL", "http://litellm:4000")
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

		cfg := config.Load()

		require.Equal(t, 9000, cfg.Server.Port)
		require.Equal(t, "debug", cfg.Log.Level)
		require.True(t, cfg.Log.Debug)
		require.False(t, cfg.Metrics.Enabled)
		require.Equal(t, config.SinkRedis, cfg.Tracing.Sink)
		require.Equal(t, 250*time.Millisecond, cfg.Tracing.FlushInterval)
		require.Equal(t, "localhost:6379", cfg.Redis.Addr)
		require.Equal(t, "sk-test-key", cfg.OpenAI.APIKey)
		require.Equal(t, "http://litellm:4000", cfg.OpenAI.BaseURL)
		require.Equal(t, "sk-ant-test", cfg.Anthropic.APIKey)
	})
}

func TestSinkConfigured(t *testing.T) {
	base := func() *config.Config {
		os.Clearenv()
		return config.Load()
	}

	t.Run("should be disabled for langfuse without keys", func(t *testing.T) {
		cfg := base()
		require.False(t, cfg.SinkConfigured())
	})

	t.Run("should be enabled for langfuse with both keys", func(t *testing.T) {
		cfg := base()
		cfg.Langfuse.PublicKey = "pk"
		cfg.Langfuse.SecretKey = "sk"
		require.True(t, cfg.SinkConfigured())
	})

	t.Run("should respect the langfuse enabled flag", func(t *testing.T) {
		cfg := base()
		cfg.Langfuse.PublicKey = "pk"
		cfg.Langfuse.SecretKey = "sk"
		cfg.Langfuse.Enabled = false
		require.False(t, cfg.SinkConfigured())
	})

	t.Run("should be disabled when tracing is turned off", func(t *testing.T) {
		cfg := base()
		cfg.Tracing.Sink = config.SinkStdout
		cfg.Tracing.Enabled = false
		require.False(t, cfg.SinkConfigured())
	})

	t.Run("should require an address for the redis sink", func(t *testing.T) {
		cfg := base()
		cfg.Tracing.Sink = config.SinkRedis
		require.False(t, cfg.SinkConfigured())

		cfg.Redis.Addr = "localhost:6379"
		require.True(t, cfg.SinkConfigured())
	})

	t.Run("should reject unknown sinks", func(t *testing.T) {
		cfg := base()
		cfg.Tracing.Sink = "kafka"
		require.False(t, cfg.SinkConfigured())
	})
}
