package chaos

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/connectivity"
)

func TestInjectNoRules(t *testing.T) {
	inj := New()
	if err := inj.Inject(context.Background(), connectivity.Cache); err != nil {
		t.Errorf("Inject() with no rules = %v, want nil", err)
	}
}

func TestForceFailure(t *testing.T) {
	inj := New()
	inj.ForceFailure(connectivity.Datastore, 0)

	if err := inj.Inject(context.Background(), connectivity.Datastore); err == nil {
		t.Error("expected injected failure")
	}
	if err := inj.Inject(context.Background(), connectivity.Cache); err != nil {
		t.Errorf("fault leaked to another dependency: %v", err)
	}

	inj.Clear(connectivity.Datastore)
	if err := inj.Inject(context.Background(), connectivity.Datastore); err != nil {
		t.Errorf("Inject() after Clear = %v, want nil", err)
	}
}

func TestForceFailureExpires(t *testing.T) {
	inj := New()
	inj.ForceFailure(connectivity.Broker, 10*time.Millisecond)

	if err := inj.Inject(context.Background(), connectivity.Broker); err == nil {
		t.Error("expected injected failure before expiry")
	}

	time.Sleep(20 * time.Millisecond)
	if err := inj.Inject(context.Background(), connectivity.Broker); err != nil {
		t.Errorf("Inject() after expiry = %v, want nil", err)
	}
}

func TestLatencyRespectsContext(t *testing.T) {
	inj := New()
	inj.SetLatency(connectivity.Cache, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := inj.Inject(ctx, connectivity.Cache)
	if err == nil {
		t.Error("expected error when injected latency exceeds the deadline")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Inject() slept %s past the deadline", elapsed)
	}
}

func TestAdminEndpoints(t *testing.T) {
	inj := New()
	mux := http.NewServeMux()
	NewHandlers(inj).Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	body, _ := json.Marshal(map[string]int64{"latencyMs": 250})
	resp, err := http.Post(srv.URL+"/internal/chaos/cache/latency", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST latency: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("latency status = %d, want 200", resp.StatusCode)
	}

	rules := inj.Rules()
	if rules[connectivity.Cache].Latency != 250*time.Millisecond {
		t.Errorf("latency rule = %v", rules[connectivity.Cache].Latency)
	}

	body, _ = json.Marshal(map[string]int64{"durationSeconds": 0})
	resp, err = http.Post(srv.URL+"/internal/chaos/cache/fail", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST fail: %v", err)
	}
	resp.Body.Close()
	if !inj.Rules()[connectivity.Cache].FailForever {
		t.Error("fail rule not applied")
	}

	resp, err = http.Post(srv.URL+"/internal/chaos/cache/clear", "application/json", nil)
	if err != nil {
		t.Fatalf("POST clear: %v", err)
	}
	resp.Body.Close()
	if len(inj.Rules()) != 0 {
		t.Errorf("rules after clear = %v", inj.Rules())
	}

	resp, err = http.Post(srv.URL+"/internal/chaos/cache/explode", "application/json", nil)
	if err != nil {
		t.Fatalf("POST unknown: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown fault status = %d, want 404", resp.StatusCode)
	}
}
