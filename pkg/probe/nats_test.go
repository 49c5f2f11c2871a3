package probe

import (
	"errors"
	"testing"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/connectivity"
	"github.com/Combine-Capital/connwatch/pkg/logging"
)

// reporterSpy captures passive reports from the broker prober.
type reporterSpy struct {
	successes int
	failures  []string
	storms    []string
}

func (r *reporterSpy) ReportSuccess(connectivity.DependencyID) { r.successes++ }

func (r *reporterSpy) ReportFailure(_ connectivity.DependencyID, message string) {
	r.failures = append(r.failures, message)
}

func (r *reporterSpy) ReportStorm(_ connectivity.DependencyID, message string) {
	r.storms = append(r.storms, message)
}

func newChurnProber(spy *reporterSpy, threshold int) *NATSProber {
	return &NATSProber{
		churn: connectivity.NewStormWindow(threshold, 5*time.Minute),
		sink:  spy,
		log:   logging.Nop(),
	}
}

func TestDisconnectReportsFailure(t *testing.T) {
	spy := &reporterSpy{}
	p := newChurnProber(spy, 5)

	p.onDisconnect(nil, errors.New("server shutdown"))

	if len(spy.failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(spy.failures))
	}
	if spy.failures[0] != "broker connection lost: server shutdown" {
		t.Errorf("failure message = %q", spy.failures[0])
	}
}

func TestDisconnectWithoutError(t *testing.T) {
	spy := &reporterSpy{}
	p := newChurnProber(spy, 5)

	p.onDisconnect(nil, nil)

	if len(spy.failures) != 1 || spy.failures[0] != "broker connection lost" {
		t.Errorf("failures = %v", spy.failures)
	}
}

func TestChurnStorm(t *testing.T) {
	spy := &reporterSpy{}
	p := newChurnProber(spy, 5)

	// Four disconnects stay below the threshold.
	for i := 0; i < 4; i++ {
		p.onDisconnect(nil, nil)
	}
	if len(spy.storms) != 0 {
		t.Fatalf("storm reported below threshold: %v", spy.storms)
	}

	// The fifth churn event crosses it.
	p.onDisconnect(nil, nil)
	if len(spy.storms) != 1 {
		t.Fatalf("storms = %d, want 1", len(spy.storms))
	}
	if spy.storms[0] != "connection churn detected (5 recent events)" {
		t.Errorf("storm message = %q", spy.storms[0])
	}
}

func TestResetStormClearsChurn(t *testing.T) {
	spy := &reporterSpy{}
	p := newChurnProber(spy, 2)

	p.onDisconnect(nil, nil)
	p.ResetStorm()
	p.onDisconnect(nil, nil)

	if len(spy.storms) != 0 {
		t.Errorf("storm survived a window reset: %v", spy.storms)
	}
}
