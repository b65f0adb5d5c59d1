// Package metrics exposes proxy request metrics in Prometheus format.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/domain"
)

const (
	otherModelLabel = "other"

	tokenTypePrompt     = "prompt"
	tokenTypeCompletion = "completion"
)

// DurationBuckets are tuned for LLM latencies, from 100ms to 5 minutes.
//
//nolint:gochecknoglobals // Immutable bucket layout
var DurationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}

// Registry owns the proxy's Prometheus series. Every method is safe for
// concurrent use and never propagates a failure to the caller.
type Registry struct {
	enabled  bool
	logger   *zap.Logger
	registry *prometheus.Registry
	models   *modelLimiter

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensUsed      *prometheus.CounterVec
	costTotal       *prometheus.CounterVec
	activeRequests  *prometheus.GaugeVec
	errorsTotal     *prometheus.CounterVec
}

// NewRegistry creates the metrics registry (DI constructor).
func NewRegistry(cfg *config.MetricsConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		enabled:  cfg.Enabled,
		logger:   logger.Named("metrics"),
		registry: prometheus.NewRegistry(),
		models:   newModelLimiter(cfg.MaxModels),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "requests_total",
				Help:      "Total number of completion requests",
			},
			[]string{"model", "provider", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_duration_seconds",
				Help:      "Completion request duration in seconds",
				Buckets:   DurationBuckets,
			},
			[]string{"model", "provider"},
		),
		tokensUsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "tokens_used_total",
				Help:      "Total tokens consumed",
			},
			[]string{"model", "provider", "token_type"},
		),
		costTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "cost_usd_total",
				Help:      "Estimated spend in USD",
			},
			[]string{"model", "provider"},
		),
		activeRequests: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "active_requests",
				Help:      "Completion requests currently in flight",
			},
			[]string{"model", "provider"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "errors_total",
				Help:      "Total failed completion requests by error kind",
			},
			[]string{"model", "provider", "error_kind"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requestsTotal,
		r.requestDuration,
		r.tokensUsed,
		r.costTotal,
		r.activeRequests,
		r.errorsTotal,
	)

	return r
}

// Enabled reports whether samples are recorded.
func (r *Registry) Enabled() bool {
	return r.enabled
}

// RecordRequest records the outcome of one completion attempt.
// Tokens and cost are only added when positive.
func (r *Registry) RecordRequest(sample domain.RequestSample) {
	r.guard("record_request", func() error {
		model := r.models.label(sample.Model)
		provider := sample.Provider.String()

		counter, err := r.requestsTotal.GetMetricWithLabelValues(model, provider, sample.Status)
		if err != nil {
			return err
		}
		counter.Inc()

		observer, err := r.requestDuration.GetMetricWithLabelValues(model, provider)
		if err != nil {
			return err
		}
		observer.Observe(sample.Duration.Seconds())

		if err := r.addTokens(model, provider, tokenTypePrompt, sample.PromptTokens); err != nil {
			return err
		}
		if err := r.addTokens(model, provider, tokenTypeCompletion, sample.CompletionTokens); err != nil {
			return err
		}

		if sample.Cost > 0 {
			cost, err := r.costTotal.GetMetricWithLabelValues(model, provider)
			if err != nil {
				return err
			}
			cost.Add(sample.Cost)
		}

		return nil
	})
}

// RecordError counts a failed request under its error kind.
func (r *Registry) RecordError(model string, provider domain.ProviderTag, kind domain.ErrorKind) {
	r.guard("record_error", func() error {
		counter, err := r.errorsTotal.GetMetricWithLabelValues(r.models.label(model), provider.String(), string(kind))
		if err != nil {
			return err
		}
		counter.Inc()
		return nil
	})
}

// TrackActive increments the in-flight gauge and returns its release.
// Calling release more than once has no further effect.
func (r *Registry) TrackActive(model string, provider domain.ProviderTag) func() {
	var gauge prometheus.Gauge
	r.guard("inc_active", func() error {
		g, err := r.activeRequests.GetMetricWithLabelValues(r.models.label(model), provider.String())
		if err != nil {
			return err
		}
		g.Inc()
		gauge = g
		return nil
	})

	if gauge == nil {
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.guard("dec_active", func() error {
				gauge.Dec()
				return nil
			})
		})
	}
}

// Handler serves the exposition format for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Registry) addTokens(model, provider, tokenType string, tokens int) error {
	if tokens <= 0 {
		return nil
	}

	counter, err := r.tokensUsed.GetMetricWithLabelValues(model, provider, tokenType)
	if err != nil {
		return err
	}
	counter.Add(float64(tokens))
	return nil
}

// guard runs fn when metrics are enabled and turns failures into log lines.
func (r *Registry) guard(operation string, fn func() error) {
	if !r.enabled {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("metric update panicked",
				zap.String("operation", operation),
				zap.Error(panicError(rec)),
			)
		}
	}()

	if err := fn(); err != nil {
		r.logger.Warn("metric update failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
}

func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return errors.New(fmt.Sprint(rec))
}

// modelLimiter caps the number of distinct model label values.
type modelLimiter struct {
	maxModels int
	mu        sync.RWMutex
	seen      map[string]struct{}
}

func newModelLimiter(maxModels int) *modelLimiter {
	return &modelLimiter{
		maxModels: maxModels,
		seen:      make(map[string]struct{}),
	}
}

// label returns model, or "other" once the cap is reached for new models.
// A cap of zero or less disables the limit.
func (l *modelLimiter) label(model string) string {
	if l.maxModels <= 0 {
		return model
	}

	l.mu.RLock()
	_, known := l.seen[model]
	full := len(l.seen) >= l.maxModels
	l.mu.RUnlock()

	if known {
		return model
	}
	if full {
		return otherModelLabel
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, known = l.seen[model]; known {
		return model
	}
	if len(l.seen) >= l.maxModels {
		return otherModelLabel
	}
	l.seen[model] = struct{}{}
	return model
}
