package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/connectivity"
	"github.com/google/uuid"
)

func TestSubjectFor(t *testing.T) {
	cases := map[connectivity.DependencyID]string{
		connectivity.Datastore: "connwatch.events.v1.datastore",
		connectivity.Cache:     "connwatch.events.v1.cache",
		connectivity.Broker:    "connwatch.events.v1.broker",
	}

	for id, want := range cases {
		if got := subjectFor(id); got != want {
			t.Errorf("subjectFor(%s) = %q, want %q", id, got, want)
		}
	}
}

func TestTransitionEventWireFormat(t *testing.T) {
	evt := TransitionEvent{
		EventID:    uuid.NewString(),
		Dependency: "broker",
		OldState:   "CONNECTED",
		NewState:   "DEGRADED",
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	// Consumers depend on these exact keys.
	for _, key := range []string{"eventId", "dependency", "oldState", "newState", "timestamp"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("wire format missing key %q", key)
		}
	}
	if raw["newState"] != "DEGRADED" {
		t.Errorf("newState = %v", raw["newState"])
	}
}
