package connectivity

import (
	"time"

	"github.com/Combine-Capital/connwatch/pkg/metrics"
)

// PromSink is a Sink that exports health events as Prometheus metrics:
//
//	connwatch_dependency_state            gauge, 1 when Connected else 0
//	connwatch_dependency_latency_ms       gauge, last measured probe latency
//	connwatch_dependency_retry_total      counter, failure reports
//	connwatch_dependency_failure_total    counter, transitions into Failed
//	connwatch_dependency_recovery_seconds histogram, failure episode durations
//
// All series carry a "dependency" label.
type PromSink struct {
	state     *metrics.Gauge
	latencyMs *metrics.Gauge
	retries   *metrics.Counter
	failures  *metrics.Counter
	recovery  *metrics.Histogram
}

// NewPromSink registers the connectivity metrics with the global registry.
// metrics.Init must have been called first.
func NewPromSink() (*PromSink, error) {
	state, err := metrics.NewGauge(metrics.GaugeOpts{
		Namespace: "connwatch",
		Name:      "dependency_state",
		Help:      "Dependency health state (1=UP, 0=DOWN)",
		Labels:    []string{"dependency"},
	})
	if err != nil {
		return nil, err
	}

	latencyMs, err := metrics.NewGauge(metrics.GaugeOpts{
		Namespace: "connwatch",
		Name:      "dependency_latency_ms",
		Help:      "Last measured probe latency in milliseconds",
		Labels:    []string{"dependency"},
	})
	if err != nil {
		return nil, err
	}

	retries, err := metrics.NewCounter(metrics.CounterOpts{
		Namespace: "connwatch",
		Name:      "dependency_retry_total",
		Help:      "Total failed probe attempts",
		Labels:    []string{"dependency"},
	})
	if err != nil {
		return nil, err
	}

	failures, err := metrics.NewCounter(metrics.CounterOpts{
		Namespace: "connwatch",
		Name:      "dependency_failure_total",
		Help:      "Total transitions into the FAILED state",
		Labels:    []string{"dependency"},
	})
	if err != nil {
		return nil, err
	}

	recovery, err := metrics.NewHistogram(metrics.HistogramOpts{
		Namespace: "connwatch",
		Name:      "dependency_recovery_seconds",
		Help:      "Duration of failure episodes, from first failure to reconnect",
		Labels:    []string{"dependency"},
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})
	if err != nil {
		return nil, err
	}

	return &PromSink{
		state:     state,
		latencyMs: latencyMs,
		retries:   retries,
		failures:  failures,
		recovery:  recovery,
	}, nil
}

func (p *PromSink) StateChanged(id DependencyID, oldState, newState State) {
	if newState.Healthy() {
		p.state.Set(1, id.String())
	} else {
		p.state.Set(0, id.String())
	}
}

func (p *PromSink) RetryObserved(id DependencyID) {
	p.retries.Inc(id.String())
}

func (p *PromSink) FailureOccurred(id DependencyID) {
	p.failures.Inc(id.String())
}

func (p *PromSink) Recovered(id DependencyID, downFor time.Duration) {
	p.recovery.Observe(downFor.Seconds(), id.String())
}

func (p *PromSink) ObserveLatency(id DependencyID, latency time.Duration) {
	p.latencyMs.Set(float64(latency.Milliseconds()), id.String())
}
