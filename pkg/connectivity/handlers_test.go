package connectivity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Combine-Capital/connwatch/pkg/errors"
)

// fakeTrigger records trigger invocations and reports a success on each.
type fakeTrigger struct {
	reg   *Registry
	calls []DependencyID
}

func (f *fakeTrigger) TriggerNow(_ context.Context, id DependencyID) error {
	if _, err := f.reg.Snapshot(id); err != nil {
		return errors.NewNotFound("dependency", id.String())
	}
	f.calls = append(f.calls, id)
	f.reg.ReportSuccess(id)
	return nil
}

func newTestServer(t *testing.T) (*Registry, *fakeTrigger, *httptest.Server) {
	t.Helper()
	reg := newTestRegistry(nil)
	trigger := &fakeTrigger{reg: reg}

	mux := http.NewServeMux()
	NewHandlers(reg, trigger).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return reg, trigger, srv
}

func TestHandleAll(t *testing.T) {
	reg, _, srv := newTestServer(t)
	reg.ReportFailure(Datastore, "connection refused")

	resp, err := http.Get(srv.URL + "/internal/connectivity")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 3 {
		t.Errorf("snapshot count = %d, want 3", len(body))
	}
	if body["datastore"].State != Retrying {
		t.Errorf("datastore state = %s, want %s", body["datastore"].State, Retrying)
	}
	if body["cache"].State != Disconnected {
		t.Errorf("cache state = %s, want %s", body["cache"].State, Disconnected)
	}
}

func TestHandleOne(t *testing.T) {
	reg, _, srv := newTestServer(t)
	reg.ReportSuccess(Cache)

	resp, err := http.Get(srv.URL + "/internal/connectivity/cache")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.State != Connected {
		t.Errorf("state = %s, want %s", snap.State, Connected)
	}
	if snap.Dependency != Cache {
		t.Errorf("dependency = %s, want %s", snap.Dependency, Cache)
	}
}

func TestHandleOneUnknown(t *testing.T) {
	_, _, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/internal/connectivity/search")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleCheck(t *testing.T) {
	_, trigger, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/internal/connectivity/broker/check", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(trigger.calls) != 1 || trigger.calls[0] != Broker {
		t.Errorf("trigger calls = %v, want [broker]", trigger.calls)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.State != Connected {
		t.Errorf("state after manual check = %s, want %s", snap.State, Connected)
	}
}

func TestHandleCheckUnknown(t *testing.T) {
	_, _, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/internal/connectivity/search/check", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleCheckRequiresPost(t *testing.T) {
	_, _, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/internal/connectivity/broker/check")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
