package metrics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// validMetricName validates metric names according to Prometheus conventions
	validMetricName = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

	// validLabelName validates label names according to Prometheus conventions
	validLabelName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// Counter is a Prometheus counter that can only increase.
type Counter struct {
	vec *prometheus.CounterVec
}

// CounterOpts specifies options for creating a counter.
type CounterOpts struct {
	Namespace string   // Metric namespace (e.g., "connwatch")
	Subsystem string   // Metric subsystem (e.g., "probe")
	Name      string   // Metric name (e.g., "failures_total")
	Help      string   // Human-readable help text
	Labels    []string // Label names for this metric
}

// NewCounter creates and registers a new counter with the global registry.
// The full metric name will be "{namespace}_{subsystem}_{name}".
// Returns an error if the metric name or labels are invalid, or if a metric
// with the same name is already registered.
func NewCounter(opts CounterOpts) (*Counter, error) {
	if !IsInitialized() {
		return nil, fmt.Errorf("metrics not initialized, call Init() first")
	}

	if err := validateMetricOpts(opts.Namespace, opts.Subsystem, opts.Name, opts.Labels); err != nil {
		return nil, err
	}

	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      opts.Name,
			Help:      opts.Help,
		},
		opts.Labels,
	)

	if err := registry.Register(vec); err != nil {
		return nil, fmt.Errorf("failed to register counter: %w", err)
	}

	return &Counter{vec: vec}, nil
}

// Inc increments the counter by 1 for the given label values.
func (c *Counter) Inc(labelValues ...string) {
	c.vec.WithLabelValues(labelValues...).Inc()
}

// Add increments the counter by the given value for the given label values.
// The value must be non-negative.
func (c *Counter) Add(value float64, labelValues ...string) {
	c.vec.WithLabelValues(labelValues...).Add(value)
}

// Gauge is a Prometheus gauge that can increase or decrease.
type Gauge struct {
	vec *prometheus.GaugeVec
}

// GaugeOpts specifies options for creating a gauge.
type GaugeOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
}

// NewGauge creates and registers a new gauge with the global registry.
// The full metric name will be "{namespace}_{subsystem}_{name}".
func NewGauge(opts GaugeOpts) (*Gauge, error) {
	if !IsInitialized() {
		return nil, fmt.Errorf("metrics not initialized, call Init() first")
	}

	if err := validateMetricOpts(opts.Namespace, opts.Subsystem, opts.Name, opts.Labels); err != nil {
		return nil, err
	}

	vec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      opts.Name,
			Help:      opts.Help,
		},
		opts.Labels,
	)

	if err := registry.Register(vec); err != nil {
		return nil, fmt.Errorf("failed to register gauge: %w", err)
	}

	return &Gauge{vec: vec}, nil
}

// Set sets the gauge to the given value for the given label values.
func (g *Gauge) Set(value float64, labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Set(value)
}

// Inc increments the gauge by 1 for the given label values.
func (g *Gauge) Inc(labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Inc()
}

// Dec decrements the gauge by 1 for the given label values.
func (g *Gauge) Dec(labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Dec()
}

// Histogram is a Prometheus histogram that samples observations.
type Histogram struct {
	vec *prometheus.HistogramVec
}

// HistogramOpts specifies options for creating a histogram.
type HistogramOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
	Buckets   []float64 // Histogram buckets (use nil for default)
}

// NewHistogram creates and registers a new histogram with the global registry.
// The full metric name will be "{namespace}_{subsystem}_{name}".
func NewHistogram(opts HistogramOpts) (*Histogram, error) {
	if !IsInitialized() {
		return nil, fmt.Errorf("metrics not initialized, call Init() first")
	}

	if err := validateMetricOpts(opts.Namespace, opts.Subsystem, opts.Name, opts.Labels); err != nil {
		return nil, err
	}

	buckets := opts.Buckets
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}

	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      opts.Name,
			Help:      opts.Help,
			Buckets:   buckets,
		},
		opts.Labels,
	)

	if err := registry.Register(vec); err != nil {
		return nil, fmt.Errorf("failed to register histogram: %w", err)
	}

	return &Histogram{vec: vec}, nil
}

// Observe adds an observation to the histogram for the given label values.
func (h *Histogram) Observe(value float64, labelValues ...string) {
	h.vec.WithLabelValues(labelValues...).Observe(value)
}

// validateMetricOpts validates metric options according to Prometheus naming conventions.
func validateMetricOpts(namespace, subsystem, name string, labels []string) error {
	var fullName strings.Builder
	if namespace != "" {
		fullName.WriteString(namespace)
		fullName.WriteString("_")
	}
	if subsystem != "" {
		fullName.WriteString(subsystem)
		fullName.WriteString("_")
	}
	fullName.WriteString(name)

	if !validMetricName.MatchString(fullName.String()) {
		return fmt.Errorf("invalid metric name: %s (must match %s)", fullName.String(), validMetricName.String())
	}

	for _, label := range labels {
		if !validLabelName.MatchString(label) {
			return fmt.Errorf("invalid label name: %s (must match %s)", label, validLabelName.String())
		}
		// Reserved label names
		if strings.HasPrefix(label, "__") {
			return fmt.Errorf("label name %s is reserved (starts with __)", label)
		}
	}

	return nil
}
