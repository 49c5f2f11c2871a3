package connectivity

import (
	"testing"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/config"
	"github.com/Combine-Capital/connwatch/pkg/metrics"
)

func TestPromSink(t *testing.T) {
	// Enabled=false registers metrics without starting the HTTP server.
	if err := metrics.Init(config.MetricsConfig{Enabled: false}); err != nil {
		t.Fatalf("metrics.Init: %v", err)
	}

	sink, err := NewPromSink()
	if err != nil {
		t.Fatalf("NewPromSink: %v", err)
	}

	sink.StateChanged(Datastore, Disconnected, Connected)
	sink.StateChanged(Datastore, Degraded, Failed)
	sink.RetryObserved(Datastore)
	sink.FailureOccurred(Datastore)
	sink.Recovered(Datastore, 30*time.Second)
	sink.ObserveLatency(Datastore, 12*time.Millisecond)

	families, err := metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	for _, name := range []string{
		"connwatch_dependency_state",
		"connwatch_dependency_latency_ms",
		"connwatch_dependency_retry_total",
		"connwatch_dependency_failure_total",
		"connwatch_dependency_recovery_seconds",
	} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}

	// A second registration collides with the first.
	if _, err := NewPromSink(); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
