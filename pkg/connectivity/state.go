// Package connectivity tracks the health of a service's external dependencies.
// It maintains a per-dependency state machine driven by probe outcomes,
// classifies consecutive failures into escalating states, and serves
// point-in-time snapshots of every dependency.
//
// Example usage:
//
//	reg := connectivity.NewRegistry(connectivity.RegistryConfig{
//	    Dependencies: map[connectivity.DependencyID]connectivity.Thresholds{
//	        connectivity.Datastore: {DegradedAt: 2, FailedAt: 5},
//	    },
//	}, sink, logger)
//
//	reg.ReportFailure(connectivity.Datastore, "connection refused")
//	snap, err := reg.Snapshot(connectivity.Datastore)
package connectivity

// DependencyID identifies a monitored external dependency.
type DependencyID string

// The dependencies tracked by the monitor.
const (
	// Datastore is the primary relational database.
	Datastore DependencyID = "datastore"

	// Cache is the shared cache cluster.
	Cache DependencyID = "cache"

	// Broker is the message broker.
	Broker DependencyID = "broker"
)

// String returns the lowercase identifier used in snapshots and metrics.
func (d DependencyID) String() string {
	return string(d)
}

// State is the health state of a dependency.
type State string

// Health states, roughly ordered from healthy to unhealthy.
const (
	// Disconnected is the initial state before any probe outcome is known.
	Disconnected State = "DISCONNECTED"

	// Connecting indicates a connection attempt is in progress.
	Connecting State = "CONNECTING"

	// Connected indicates the most recent probe succeeded.
	Connected State = "CONNECTED"

	// Degraded indicates a moderate run of consecutive failures, or an
	// active instability storm.
	Degraded State = "DEGRADED"

	// Retrying indicates a short run of consecutive failures.
	Retrying State = "RETRYING"

	// Failed indicates a sustained run of consecutive failures.
	Failed State = "FAILED"
)

// Healthy reports whether the state counts as "up" for metrics purposes.
func (s State) Healthy() bool {
	return s == Connected
}

// severity orders states for reconciling concurrent degradation signals.
// A storm only moves a dependency to Degraded when its current state is
// less severe.
func (s State) severity() int {
	switch s {
	case Connected:
		return 0
	case Connecting:
		return 1
	case Disconnected:
		return 2
	case Retrying:
		return 3
	case Degraded:
		return 4
	case Failed:
		return 5
	default:
		return 2
	}
}

// MoreSevereThan reports whether s represents a worse condition than other.
func (s State) MoreSevereThan(other State) bool {
	return s.severity() > other.severity()
}

// Thresholds are the consecutive-failure boundaries that drive failure
// classification for a single dependency.
type Thresholds struct {
	// DegradedAt is the consecutive-failure count at which the dependency
	// moves from Retrying to Degraded.
	DegradedAt int

	// FailedAt is the consecutive-failure count at which the dependency
	// moves to Failed. Must be greater than DegradedAt.
	FailedAt int
}

// Classify maps a consecutive-failure count to a failure state.
// The count is assumed to be at least 1 (a failure was just recorded).
func (t Thresholds) Classify(consecutiveFailures int) State {
	switch {
	case consecutiveFailures >= t.FailedAt:
		return Failed
	case consecutiveFailures >= t.DegradedAt:
		return Degraded
	default:
		return Retrying
	}
}
