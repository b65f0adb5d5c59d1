package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/davidbz/ember/internal/provider/anthropic"
	"github.com/davidbz/ember/internal/provider/openai"
)

// Tracing sink names accepted by TRACING_SINK.
const (
	SinkLangfuse = "langfuse"
	SinkOTLP     = "otlp"
	SinkStdout   = "stdout"
	SinkRedis    = "redis"
)

// Config represents the proxy configuration.
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
	Langfuse  LangfuseConfig
	OTLP      OTLPConfig
	Redis     RedisConfig
	Pricing   PricingConfig
	Echo      EchoConfig
	OpenAI    openai.Config
	Anthropic anthropic.Config
}

// ServerConfig contains HTTP server settings. Timeouts are in seconds.
type ServerConfig struct {
	Host            string `env:"PROXY_HOST"             envDefault:"0.0.0.0"`
	Port            int    `env:"PROXY_PORT"             envDefault:"8000"`
	ReadTimeout     int    `env:"PROXY_READ_TIMEOUT"     envDefault:"30"`
	WriteTimeout    int    `env:"PROXY_WRITE_TIMEOUT"    envDefault:"620"`
	ShutdownTimeout int    `env:"PROXY_SHUTDOWN_TIMEOUT" envDefault:"10"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization,X-User-ID,X-Session-ID"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level          string `env:"LOG_LEVEL"              envDefault:"info"`
	Debug          bool   `env:"DEBUG_MODE"             envDefault:"false"`
	RequestLogging bool   `env:"ENABLE_REQUEST_LOGGING" envDefault:"true"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `env:"ENABLE_PROMETHEUS"  envDefault:"true"`
	Port      int    `env:"PROMETHEUS_PORT"    envDefault:"9090"`
	Namespace string `env:"METRICS_NAMESPACE"  envDefault:"llmproxy"`
	MaxModels int    `env:"METRICS_MAX_MODELS" envDefault:"1000"`
}

// TracingConfig contains trace recorder settings shared by every sink.
type TracingConfig struct {
	Enabled       bool          `env:"TRACING_ENABLED"        envDefault:"true"`
	Sink          string        `env:"TRACING_SINK"           envDefault:"langfuse"`
	QueueSize     int           `env:"TRACING_QUEUE_SIZE"     envDefault:"1000"`
	BatchSize     int           `env:"TRACING_BATCH_SIZE"     envDefault:"50"`
	FlushInterval time.Duration `env:"TRACING_FLUSH_INTERVAL" envDefault:"1s"`
	SendTimeout   time.Duration `env:"TRACING_SEND_TIMEOUT"   envDefault:"10s"`
}

// LangfuseConfig contains Langfuse ingestion credentials.
type LangfuseConfig struct {
	PublicKey string `env:"LANGFUSE_PUBLIC_KEY"`
	SecretKey string `env:"LANGFUSE_SECRET_KEY"`
	Host      string `env:"LANGFUSE_HOST"       envDefault:"https://cloud.langfuse.com"`
	Enabled   bool   `env:"LANGFUSE_ENABLED"    envDefault:"true"`
}

// OTLPConfig contains OpenTelemetry exporter settings.
type OTLPConfig struct {
	Endpoint    string `env:"OTLP_ENDPOINT"     envDefault:"localhost:4317"`
	Insecure    bool   `env:"OTLP_INSECURE"     envDefault:"true"`
	ServiceName string `env:"OTLP_SERVICE_NAME" envDefault:"ember"`
}

// RedisConfig contains the Redis stream sink settings.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"           envDefault:"0"`
	Stream   string `env:"REDIS_TRACE_STREAM" envDefault:"ember:traces"`
	MaxLen   int64  `env:"REDIS_TRACE_MAXLEN" envDefault:"100000"`
}

// PricingConfig points at an optional YAML pricing table.
type PricingConfig struct {
	File string `env:"PRICING_FILE"`
}

// EchoConfig toggles the in-memory echo engine.
type EchoConfig struct {
	Enabled bool `env:"ECHO_ENABLED" envDefault:"false"`
}

// SinkConfigured reports whether the selected sink has everything it needs.
// A sink that is not configured leaves the trace recorder disabled.
func (c *Config) SinkConfigured() bool {
	if !c.Tracing.Enabled {
		return false
	}

	switch c.Tracing.Sink {
	case SinkLangfuse:
		return c.Langfuse.Enabled && c.Langfuse.PublicKey != "" && c.Langfuse.SecretKey != "" && c.Langfuse.Host != ""
	case SinkOTLP:
		return c.OTLP.Endpoint != ""
	case SinkStdout:
		return true
	case SinkRedis:
		return c.Redis.Addr != ""
	default:
		return false
	}
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*LogConfig
	*MetricsConfig
	*TracingConfig
	*LangfuseConfig
	*OTLPConfig
	*RedisConfig
	*PricingConfig
	*EchoConfig

	OpenAI    *openai.Config
	Anthropic *anthropic.Config
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.Log,
		&cfg.Metrics,
		&cfg.Tracing,
		&cfg.Langfuse,
		&cfg.OTLP,
		&cfg.Redis,
		&cfg.Pricing,
		&cfg.Echo,
		&cfg.OpenAI,
		&cfg.Anthropic,
	}
}
