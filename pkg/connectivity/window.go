package connectivity

import (
	"sync"
	"time"
)

// StormWindow counts qualifying instability events (broker rebalances,
// pool timeouts) and declares a storm when the count reaches a threshold
// with the most recent event still inside the window.
//
// The counter is not a sliding window: the owner resets it on a fixed
// cadence via Reset, so a slow trickle of events can accumulate across
// resets. Recency is enforced only through the last-event timestamp.
type StormWindow struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	count     int
	last      time.Time

	now func() time.Time
}

// NewStormWindow creates a detector that declares a storm once threshold
// events have been recorded and the latest is within window of now.
func NewStormWindow(threshold int, window time.Duration) *StormWindow {
	return &StormWindow{
		threshold: threshold,
		window:    window,
		now:       time.Now,
	}
}

// Record registers one qualifying event and returns true if the window is
// now in a storm.
func (w *StormWindow) Record() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count++
	w.last = w.now()
	return w.activeLocked()
}

// Active reports whether the window is currently in a storm.
func (w *StormWindow) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activeLocked()
}

func (w *StormWindow) activeLocked() bool {
	if w.count < w.threshold {
		return false
	}
	return w.now().Sub(w.last) < w.window
}

// Count returns the number of events recorded since the last reset.
func (w *StormWindow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Reset clears the event count. The owner calls this on a fixed cadence.
func (w *StormWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.count = 0
	w.last = time.Time{}
}
