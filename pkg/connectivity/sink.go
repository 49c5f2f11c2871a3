package connectivity

import "time"

// Sink receives health events from the registry. Implementations must be
// safe for concurrent use. The registry calls sinks outside its internal
// locks and recovers from sink panics, so a misbehaving sink cannot
// corrupt tracking state.
type Sink interface {
	// StateChanged is called once per actual transition. It is never
	// called when an update leaves the state unchanged.
	StateChanged(id DependencyID, oldState, newState State)

	// RetryObserved is called on every reported failure, whether or not
	// it caused a transition.
	RetryObserved(id DependencyID)

	// FailureOccurred is called when a dependency enters Failed.
	FailureOccurred(id DependencyID)

	// Recovered is called when a dependency returns to Connected after a
	// failure episode, with the duration of the episode.
	Recovered(id DependencyID, downFor time.Duration)

	// ObserveLatency is called with each measured probe latency.
	ObserveLatency(id DependencyID, latency time.Duration)
}

// NopSink discards all events. Useful as a default and in tests.
type NopSink struct{}

func (NopSink) StateChanged(DependencyID, State, State)    {}
func (NopSink) RetryObserved(DependencyID)                 {}
func (NopSink) FailureOccurred(DependencyID)               {}
func (NopSink) Recovered(DependencyID, time.Duration)      {}
func (NopSink) ObserveLatency(DependencyID, time.Duration) {}

// MultiSink fans events out to multiple sinks in order.
type MultiSink []Sink

func (m MultiSink) StateChanged(id DependencyID, oldState, newState State) {
	for _, s := range m {
		s.StateChanged(id, oldState, newState)
	}
}

func (m MultiSink) RetryObserved(id DependencyID) {
	for _, s := range m {
		s.RetryObserved(id)
	}
}

func (m MultiSink) FailureOccurred(id DependencyID) {
	for _, s := range m {
		s.FailureOccurred(id)
	}
}

func (m MultiSink) Recovered(id DependencyID, downFor time.Duration) {
	for _, s := range m {
		s.Recovered(id, downFor)
	}
}

func (m MultiSink) ObserveLatency(id DependencyID, latency time.Duration) {
	for _, s := range m {
		s.ObserveLatency(id, latency)
	}
}
