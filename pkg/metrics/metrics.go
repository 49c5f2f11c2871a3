// Package metrics provides Prometheus metrics collection for the connwatch
// monitor, with standardized naming conventions and label validation.
//
// Example usage:
//
//	if err := metrics.Init(cfg.Metrics); err != nil {
//	    log.Fatal(err)
//	}
//	defer metrics.Shutdown(context.Background())
//
//	gauge, err := metrics.NewGauge(metrics.GaugeOpts{
//	    Namespace: "connwatch",
//	    Name:      "dependency_state",
//	    Help:      "Dependency health state (1=UP, 0=DOWN)",
//	    Labels:    []string{"dependency"},
//	})
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// registry is the global Prometheus registry for all metrics
	registry *prometheus.Registry

	// registryMu protects concurrent access to registry initialization
	registryMu sync.RWMutex

	// initialized tracks whether Init() has been called
	initialized bool

	// server is the HTTP server for the metrics endpoint
	server *http.Server

	// serverMu protects concurrent access to server
	serverMu sync.Mutex
)

// Init initializes the metrics system with the provided configuration.
// It creates a new Prometheus registry and, if enabled, starts an HTTP server
// on the configured port and path to expose metrics.
//
// This function is safe to call multiple times - subsequent calls are no-ops.
func Init(cfg config.MetricsConfig) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if initialized {
		return nil // Already initialized
	}

	registry = prometheus.NewRegistry()

	if !cfg.Enabled {
		// Metrics collection still works, but no exposition server runs.
		initialized = true
		return nil
	}

	// Go runtime metrics (goroutines, memory, GC, etc.)
	registry.MustRegister(prometheus.NewGoCollector())

	// Process metrics (CPU, memory, file descriptors, etc.)
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	// Start HTTP server for metrics endpoint
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	serverMu.Lock()
	server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	srv := server // Capture for goroutine
	serverMu.Unlock()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Metrics are non-critical; don't crash the monitor.
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	initialized = true
	return nil
}

// Shutdown gracefully shuts down the metrics HTTP server.
// It waits for up to the context deadline for in-flight requests to complete.
func Shutdown(ctx context.Context) error {
	serverMu.Lock()
	defer serverMu.Unlock()

	if server == nil {
		return nil
	}

	return server.Shutdown(ctx)
}

// Registry returns the global Prometheus registry.
// This is useful for custom metric registration or testing.
// Returns nil if Init() has not been called.
func Registry() *prometheus.Registry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry
}

// IsInitialized returns true if Init() has been called successfully.
func IsInitialized() bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return initialized
}
