// connwatchd monitors the health of a service's external dependencies:
// the PostgreSQL datastore, the Redis cache, and the NATS broker. It
// probes each one on its own cadence, classifies failures into health
// states, and serves the results over HTTP and Prometheus metrics.
//
// Run:
//
//	go run ./cmd/connwatchd -config config.yaml
//
// Endpoints:
//   - Connectivity: http://localhost:8080/internal/connectivity
//   - Metrics:      http://localhost:9090/metrics
//
// The daemon starts even when every dependency is unreachable; the
// first probes report the real state.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Combine-Capital/connwatch/pkg/chaos"
	"github.com/Combine-Capital/connwatch/pkg/config"
	"github.com/Combine-Capital/connwatch/pkg/connectivity"
	"github.com/Combine-Capital/connwatch/pkg/events"
	"github.com/Combine-Capital/connwatch/pkg/logging"
	"github.com/Combine-Capital/connwatch/pkg/metrics"
	"github.com/Combine-Capital/connwatch/pkg/probe"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	// Load configuration from file and environment variables with CONNWATCH_ prefix
	cfg := config.MustLoad(*configPath, "CONNWATCH")

	logger := logging.New(cfg.Log)
	logger.Info().
		Str(logging.ServiceName, cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Msg("connwatch starting")

	// Initialize Prometheus metrics
	if err := metrics.Init(cfg.Metrics); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}
	defer func() { _ = metrics.Shutdown(ctx) }()

	promSink, err := connectivity.NewPromSink()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to register connectivity metrics")
	}

	// The registry tracks all three dependencies, initially DISCONNECTED.
	registry := connectivity.NewRegistry(connectivity.RegistryConfig{
		Dependencies: map[connectivity.DependencyID]connectivity.Thresholds{
			connectivity.Datastore: thresholds(cfg.Monitor.Datastore),
			connectivity.Cache:     thresholds(cfg.Monitor.Cache),
			connectivity.Broker:    thresholds(cfg.Monitor.Broker),
		},
	}, promSink, logger)

	// Datastore: the pool is created without a connectivity check so the
	// monitor comes up while the database is down.
	pgPool, err := probe.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure datastore pool")
	}
	defer pgPool.Close()
	registry.MarkConnecting(connectivity.Datastore)

	// Cache: the client dials lazily on first probe.
	redisClient := probe.NewRedisClient(cfg.Cache)
	defer func() { _ = redisClient.Close() }()
	registry.MarkConnecting(connectivity.Cache)

	// Broker: connects in the background with unlimited retries and
	// reports disconnects and reconnects between probes.
	natsProber, err := probe.NewNATSProber(cfg.EventBus, cfg.Monitor.Broker, registry, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure broker connection")
	}
	defer natsProber.Close()
	registry.MarkConnecting(connectivity.Broker)

	// Transition events share the broker prober's connection, so the sink
	// attaches after the prober exists; AddSink is safe while the prober's
	// connection callbacks are already reporting. The stream may be
	// unreachable at startup; events are best-effort either way.
	if cfg.EventBus.Publish {
		pub, err := events.NewPublisher(ctx, natsProber.Conn(), cfg.EventBus, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("event publication disabled, stream unavailable")
		} else {
			registry.AddSink(events.NewSink(pub, registry))
		}
	}

	// Fault injection, only when explicitly enabled.
	var injector *chaos.Injector
	var interceptor probe.Interceptor
	if cfg.Chaos.Enabled {
		injector = chaos.New()
		interceptor = injector
		logger.Warn().Msg("fault injection enabled")
	}

	scheduler := probe.NewScheduler(registry, cfg.Monitor, interceptor, logger)
	scheduler.Register(probe.NewPostgresProber(pgPool, cfg.Monitor.Datastore, registry), cfg.Monitor.Datastore)
	scheduler.Register(probe.NewRedisProber(redisClient, cfg.Cache.Mode, cfg.Monitor.Cache, registry), cfg.Monitor.Cache)
	scheduler.Register(natsProber, cfg.Monitor.Broker)
	scheduler.Start(ctx)
	defer scheduler.Stop()
	logger.Info().Msg("probe scheduler started")

	// HTTP read surface.
	mux := http.NewServeMux()
	connectivity.NewHandlers(registry, scheduler).Register(mux)
	if injector != nil {
		chaos.NewHandlers(injector).Register(mux)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	logger.Info().Msg("connwatch stopped")
}

func thresholds(dep config.DependencyConfig) connectivity.Thresholds {
	return connectivity.Thresholds{
		DegradedAt: dep.DegradedAt,
		FailedAt:   dep.FailedAt,
	}
}
