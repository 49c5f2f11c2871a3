package connectivity

import (
	"sort"
	"sync"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/errors"
	"github.com/Combine-Capital/connwatch/pkg/logging"
)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Dependencies maps each tracked dependency to its classification
	// thresholds. The registry tracks exactly this set; reports for any
	// other identifier are ignored.
	Dependencies map[DependencyID]Thresholds
}

// Registry is the concurrent store of per-dependency health records.
// All tracked dependencies start Disconnected. Updates to different
// dependencies never block each other; each record carries its own lock.
type Registry struct {
	records    map[DependencyID]*record
	thresholds map[DependencyID]Thresholds
	log        *logging.Logger

	sinkMu sync.RWMutex
	sinks  []Sink

	now func() time.Time
}

// NewRegistry creates a registry tracking the configured dependencies,
// all initially Disconnected. A nil sink is replaced with NopSink.
func NewRegistry(cfg RegistryConfig, sink Sink, log *logging.Logger) *Registry {
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = logging.Nop()
	}

	records := make(map[DependencyID]*record, len(cfg.Dependencies))
	thresholds := make(map[DependencyID]Thresholds, len(cfg.Dependencies))
	for id, t := range cfg.Dependencies {
		records[id] = newRecord(id)
		thresholds[id] = t
	}

	return &Registry{
		records:    records,
		thresholds: thresholds,
		sinks:      []Sink{sink},
		log:        log.WithComponent("connectivity"),
		now:        time.Now,
	}
}

// AddSink attaches an additional sink. Safe to call while reports are
// already flowing; the new sink receives events from subsequent reports.
func (r *Registry) AddSink(s Sink) {
	if s == nil {
		return
	}
	r.sinkMu.Lock()
	r.sinks = append(r.sinks, s)
	r.sinkMu.Unlock()
}

// lookup returns the record for id, or nil if id is not tracked.
// Unknown identifiers are logged and otherwise ignored so a misconfigured
// reporter cannot grow the tracked set or crash the monitor.
func (r *Registry) lookup(id DependencyID) *record {
	rec, ok := r.records[id]
	if !ok {
		r.log.Warn().Str(logging.Dependency, id.String()).Msg("report for untracked dependency ignored")
		return nil
	}
	return rec
}

// ReportSuccess records a successful probe of id. The dependency moves to
// Connected unconditionally, both failure counters reset, and the failure
// message clears. If the success ends a failure episode, the sink's
// Recovered hook fires with the episode duration.
func (r *Registry) ReportSuccess(id DependencyID) {
	rec := r.lookup(id)
	if rec == nil {
		return
	}

	now := r.now()

	rec.mu.Lock()
	oldState := rec.state
	hadEpisode := oldState != Connected && !rec.failureEpisodeStart.IsZero()
	var downFor time.Duration
	if hadEpisode {
		downFor = now.Sub(rec.failureEpisodeStart)
	}

	rec.state = Connected
	rec.retryCount = 0
	rec.consecutiveFailures = 0
	rec.lastFailureMessage = ""
	rec.failureEpisodeStart = time.Time{}
	if oldState != Connected {
		rec.connectedSince = now
	}
	rec.mu.Unlock()

	if oldState != Connected {
		r.notifyTransition(id, oldState, Connected, 0)
		if hadEpisode {
			r.notify(func(s Sink) { s.Recovered(id, downFor) })
		}
	}
}

// ReportFailure records a failed probe of id with a human-readable reason.
// Both failure counters increment and the resulting state is classified
// from the consecutive-failure count. A repeat classification refreshes
// the failure message and time without raising a transition event.
func (r *Registry) ReportFailure(id DependencyID, message string) {
	rec := r.lookup(id)
	if rec == nil {
		return
	}
	thresholds := r.thresholds[id]

	now := r.now()

	rec.mu.Lock()
	oldState := rec.state
	rec.retryCount++
	rec.consecutiveFailures++
	rec.lastFailureMessage = message
	rec.lastFailureTime = now
	if rec.failureEpisodeStart.IsZero() {
		rec.failureEpisodeStart = now
	}
	newState := thresholds.Classify(rec.consecutiveFailures)
	rec.state = newState
	failures := rec.consecutiveFailures
	rec.mu.Unlock()

	r.notify(func(s Sink) { s.RetryObserved(id) })
	if newState != oldState {
		r.notifyTransition(id, oldState, newState, failures)
		if newState == Failed {
			r.notify(func(s Sink) { s.FailureOccurred(id) })
		}
	}
}

// MarkConnecting records that a connection attempt to id is in progress.
// Counters are untouched; a failed attempt will be reported separately.
func (r *Registry) MarkConnecting(id DependencyID) {
	rec := r.lookup(id)
	if rec == nil {
		return
	}

	rec.mu.Lock()
	oldState := rec.state
	rec.state = Connecting
	rec.mu.Unlock()

	if oldState != Connecting {
		r.notifyTransition(id, oldState, Connecting, 0)
	}
}

// ReportStorm records that an instability-window detector for id fired.
// The dependency moves to Degraded unless its current state is already
// more severe, in which case only the failure message refreshes. Storms
// never touch the consecutive-failure counters; probe outcomes own those.
func (r *Registry) ReportStorm(id DependencyID, message string) {
	rec := r.lookup(id)
	if rec == nil {
		return
	}

	now := r.now()

	rec.mu.Lock()
	oldState := rec.state
	rec.lastFailureMessage = message
	rec.lastFailureTime = now
	transitioned := false
	if !oldState.MoreSevereThan(Degraded) && oldState != Degraded {
		rec.state = Degraded
		if rec.failureEpisodeStart.IsZero() {
			rec.failureEpisodeStart = now
		}
		transitioned = true
	}
	rec.mu.Unlock()

	if transitioned {
		r.notifyTransition(id, oldState, Degraded, 0)
	}
}

// UpdateMetadata merges the given entries into id's metadata map.
// Existing keys not present in meta are preserved.
func (r *Registry) UpdateMetadata(id DependencyID, meta map[string]string) {
	rec := r.lookup(id)
	if rec == nil || len(meta) == 0 {
		return
	}
	rec.mergeMetadata(meta)
}

// RecordLatency forwards a measured probe latency to the sink.
func (r *Registry) RecordLatency(id DependencyID, latency time.Duration) {
	if r.lookup(id) == nil {
		return
	}
	r.notify(func(s Sink) { s.ObserveLatency(id, latency) })
}

// Snapshot returns a deep copy of id's current health record.
// Returns a NotFound error for untracked identifiers.
func (r *Registry) Snapshot(id DependencyID) (Snapshot, error) {
	rec, ok := r.records[id]
	if !ok {
		return Snapshot{}, errors.NewNotFound("dependency", id.String())
	}
	return rec.snapshot(r.now()), nil
}

// AllSnapshots returns a snapshot of every tracked dependency, keyed by
// identifier. Each record is copied under its own lock; the result is a
// consistent view per dependency, not a global atomic cut.
func (r *Registry) AllSnapshots() map[DependencyID]Snapshot {
	now := r.now()
	out := make(map[DependencyID]Snapshot, len(r.records))
	for id, rec := range r.records {
		out[id] = rec.snapshot(now)
	}
	return out
}

// Dependencies returns the tracked identifiers in sorted order.
func (r *Registry) Dependencies() []DependencyID {
	ids := make([]DependencyID, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// notifyTransition logs a state change and forwards it to the sink.
func (r *Registry) notifyTransition(id DependencyID, oldState, newState State, failures int) {
	evt := r.log.Info()
	if newState == Failed {
		evt = r.log.Error()
	} else if newState == Degraded || newState == Retrying {
		evt = r.log.Warn()
	}
	evt.
		Str(logging.Dependency, id.String()).
		Str(logging.OldState, string(oldState)).
		Str(logging.NewState, string(newState)).
		Int(logging.Failures, failures).
		Msg("dependency state changed")

	r.notify(func(s Sink) { s.StateChanged(id, oldState, newState) })
}

// notify invokes a sink hook outside the record locks, containing panics
// per sink so one misbehaving sink cannot silence the rest.
func (r *Registry) notify(fn func(Sink)) {
	r.sinkMu.RLock()
	sinks := r.sinks
	r.sinkMu.RUnlock()

	for _, s := range sinks {
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.log.Error().Interface("panic", p).Msg("sink panicked")
				}
			}()
			fn(s)
		}()
	}
}
