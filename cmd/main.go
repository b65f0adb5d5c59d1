package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/domain"
	"github.com/davidbz/ember/internal/httpserver"
	"github.com/davidbz/ember/internal/httpserver/middleware"
	"github.com/davidbz/ember/internal/metrics"
	"github.com/davidbz/ember/internal/observability"
	"github.com/davidbz/ember/internal/pricing"
	"github.com/davidbz/ember/internal/provider/anthropic"
	"github.com/davidbz/ember/internal/provider/echo"
	"github.com/davidbz/ember/internal/provider/openai"
	"github.com/davidbz/ember/internal/provider/registry"
	"github.com/davidbz/ember/internal/tracing"
	"github.com/davidbz/ember/internal/tracing/sinks"
)

// ErrProviderNotConfigured indicates that a provider is not configured and should be skipped.
var ErrProviderNotConfigured = errors.New("provider not configured")

func main() {
	container := buildContainer()

	if err := container.Invoke(run); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

// app groups everything run needs from the container.
type app struct {
	dig.In

	Server        *config.ServerConfig
	API           *httpserver.Server
	MetricsServer *httpserver.MetricsServer `optional:"true"`
	Recorder      *tracing.Recorder
	Logger        *zap.Logger
}

// run serves until SIGINT or SIGTERM, then drains the servers and the recorder.
func run(rt app) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	servers := []*httpserver.Server{rt.API}
	if rt.MetricsServer != nil {
		servers = append(servers, rt.MetricsServer.Server)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, server := range servers {
		g.Go(server.Start)
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(rt.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		var errs []error
		for _, server := range servers {
			errs = append(errs, server.Shutdown(shutdownCtx))
		}

		// Pending trace events are flushed after the last request finished.
		if err := rt.Recorder.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown trace recorder: %w", err))
		}

		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	rt.Logger.Info("shutdown complete")
	_ = rt.Logger.Sync()
	return nil
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(func(cfg *config.LogConfig) (*zap.Logger, error) {
		return observability.InitLogger(cfg.Level, cfg.Debug)
	}); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(metrics.NewRegistry); err != nil {
		log.Fatalf("Failed to provide metrics registry: %v", err)
	}
	if err := container.Provide(sinks.NewRecorder); err != nil {
		log.Fatalf("Failed to provide trace recorder: %v", err)
	}

	// Pricing
	if err := container.Provide(func(pricingCfg *config.PricingConfig, echoCfg *config.EchoConfig) (domain.PricingTable, error) {
		table, err := pricing.Load(pricingCfg)
		if err != nil {
			return domain.PricingTable{}, err
		}
		if echoCfg.Enabled {
			table = pricing.WithRules(table, echo.PricingRule())
		}
		return table, table.Validate()
	}); err != nil {
		log.Fatalf("Failed to provide pricing table: %v", err)
	}

	// Engine Registry
	if err := container.Provide(buildRegistry); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	// Domain Services
	if err := container.Provide(func(
		engines *registry.Registry,
		table domain.PricingTable,
		metricsRegistry *metrics.Registry,
		recorder *tracing.Recorder,
	) *domain.GatewayService {
		return domain.NewGatewayService(
			engines,
			domain.NewStandardCostCalculator(table),
			metricsRegistry,
			recorder,
		)
	}); err != nil {
		log.Fatalf("Failed to provide gateway service: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(httpserver.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(httpserver.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}
	if err := container.Provide(func(
		serverCfg *config.ServerConfig,
		metricsCfg *config.MetricsConfig,
		metricsRegistry *metrics.Registry,
	) *httpserver.MetricsServer {
		if !metricsCfg.Enabled {
			return nil
		}
		return httpserver.NewMetricsServer(serverCfg, metricsCfg, metricsRegistry)
	}); err != nil {
		log.Fatalf("Failed to provide metrics server: %v", err)
	}

	return container
}

// engineConstructor builds one engine or reports ErrProviderNotConfigured.
type engineConstructor func() (domain.Engine, error)

// buildRegistry registers every configured engine. OpenAI is the default
// engine and serves every provider tag without a dedicated engine.
func buildRegistry(
	openaiCfg *openai.Config,
	anthropicCfg *anthropic.Config,
	echoCfg *config.EchoConfig,
	logger *zap.Logger,
) (*registry.Registry, error) {
	ctx := context.Background()
	reg := registry.NewRegistry()

	constructors := []engineConstructor{
		func() (domain.Engine, error) {
			if openaiCfg.APIKey == "" {
				return nil, ErrProviderNotConfigured
			}
			return openai.NewEngine(*openaiCfg)
		},
		func() (domain.Engine, error) {
			if anthropicCfg.APIKey == "" {
				return nil, ErrProviderNotConfigured
			}
			return anthropic.NewEngine(*anthropicCfg)
		},
		func() (domain.Engine, error) {
			if !echoCfg.Enabled {
				return nil, ErrProviderNotConfigured
			}
			return echo.NewEngine(), nil
		},
	}

	for _, construct := range constructors {
		engine, err := construct()
		if errors.Is(err, ErrProviderNotConfigured) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create engine: %w", err)
		}

		if err := reg.Register(ctx, engine); err != nil {
			return nil, fmt.Errorf("failed to register %s engine: %w", engine.Name(), err)
		}
		logger.Info("engine registered",
			zap.String("engine", engine.Name()),
			zap.Int("providers", len(engine.Providers())),
		)
	}

	if _, err := reg.Get(ctx, "openai"); err == nil {
		if err := reg.SetDefault("openai"); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("no default engine, requests without a dedicated engine will fail")
	}

	return reg, nil
}
