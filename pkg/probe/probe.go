// Package probe contains the active health probes for each monitored
// dependency and the scheduler that runs them. Each prober performs one
// cheap liveness operation against its backend and reports the outcome;
// the scheduler feeds results into the connectivity registry.
package probe

import (
	"context"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/connectivity"
)

// Result is the outcome of a single probe attempt.
type Result struct {
	// Err is nil on success. On failure it carries the reason, which
	// becomes the dependency's failure message.
	Err error

	// Latency is how long the probe operation took.
	Latency time.Duration

	// Metadata holds backend diagnostics gathered during the probe
	// (pool statistics, server version, connected URL). Merged into the
	// dependency's metadata on every probe, success or failure.
	Metadata map[string]string
}

// Prober performs a single liveness check against one dependency.
// Probe must honor ctx cancellation and never panic on an unreachable
// backend; errors are outcomes, not exceptions.
type Prober interface {
	ID() connectivity.DependencyID
	Probe(ctx context.Context) Result
}

// stormResetter is implemented by probers that carry an instability
// window. The scheduler resets these on a fixed cadence.
type stormResetter interface {
	ResetStorm()
}
