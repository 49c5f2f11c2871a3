package connectivity

import (
	"sync"
	"time"
)

// Snapshot is an immutable point-in-time view of one dependency's health.
// Field names match the wire format served by the read endpoints.
type Snapshot struct {
	Dependency          DependencyID      `json:"dependency"`
	State               State             `json:"state"`
	RetryCount          int               `json:"retryCount"`
	ConsecutiveFailures int               `json:"consecutiveFailures"`
	ConnectedSince      *time.Time        `json:"connectedSince,omitempty"`
	LastFailureTime     *time.Time        `json:"lastFailureTime,omitempty"`
	LastFailureMessage  string            `json:"lastFailureMessage,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	SnapshotTime        time.Time         `json:"snapshotTime"`
}

// record holds the mutable tracking state for one dependency. All fields
// are guarded by mu; Snapshot copies everything out under the lock so
// callers never observe partial updates.
type record struct {
	mu sync.Mutex

	id    DependencyID
	state State

	retryCount          int
	consecutiveFailures int

	connectedSince     time.Time
	lastFailureTime    time.Time
	lastFailureMessage string

	// failureEpisodeStart marks the first failure of the current outage,
	// used to compute recovery duration when the dependency reconnects.
	failureEpisodeStart time.Time

	metadata map[string]string
}

func newRecord(id DependencyID) *record {
	return &record{
		id:       id,
		state:    Disconnected,
		metadata: make(map[string]string),
	}
}

// snapshot deep-copies the record under its lock.
func (r *record) snapshot(now time.Time) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Dependency:          r.id,
		State:               r.state,
		RetryCount:          r.retryCount,
		ConsecutiveFailures: r.consecutiveFailures,
		LastFailureMessage:  r.lastFailureMessage,
		SnapshotTime:        now,
	}
	if !r.connectedSince.IsZero() {
		t := r.connectedSince
		snap.ConnectedSince = &t
	}
	if !r.lastFailureTime.IsZero() {
		t := r.lastFailureTime
		snap.LastFailureTime = &t
	}
	if len(r.metadata) > 0 {
		snap.Metadata = make(map[string]string, len(r.metadata))
		for k, v := range r.metadata {
			snap.Metadata[k] = v
		}
	}
	return snap
}

// mergeMetadata copies the given entries into the record's metadata,
// overwriting colliding keys and keeping the rest.
func (r *record) mergeMetadata(meta map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range meta {
		r.metadata[k] = v
	}
}
