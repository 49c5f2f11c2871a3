// Package chaos provides fault injection for exercising the connectivity
// monitor: synthetic probe latency and forced probe failures, controlled
// at runtime through admin endpoints. Intended for non-production
// environments; the injector is only wired in when explicitly enabled.
package chaos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/connectivity"
	"github.com/Combine-Capital/connwatch/pkg/errors"
)

// Rule is the active fault configuration for one dependency.
type Rule struct {
	Latency     time.Duration
	FailUntil   time.Time
	FailForever bool
}

// failActive reports whether the rule currently forces failures.
func (r Rule) failActive(now time.Time) bool {
	return r.FailForever || now.Before(r.FailUntil)
}

// Injector intercepts probe executions and applies the configured
// faults. It implements the scheduler's Interceptor interface.
type Injector struct {
	mu    sync.Mutex
	rules map[connectivity.DependencyID]Rule
}

// New creates an injector with no active faults.
func New() *Injector {
	return &Injector{rules: make(map[connectivity.DependencyID]Rule)}
}

// Inject applies the dependency's faults: first the synthetic latency,
// then the forced failure. Sleeping respects ctx so an injected delay
// cannot outlive the probe timeout.
func (i *Injector) Inject(ctx context.Context, id connectivity.DependencyID) error {
	i.mu.Lock()
	rule, ok := i.rules[id]
	i.mu.Unlock()
	if !ok {
		return nil
	}

	if rule.Latency > 0 {
		timer := time.NewTimer(rule.Latency)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return errors.NewTemporary("injected latency exceeded probe deadline", ctx.Err())
		}
	}

	if rule.failActive(time.Now()) {
		return errors.NewTemporary(fmt.Sprintf("injected failure for %s", id), nil)
	}
	return nil
}

// SetLatency adds a synthetic delay to every probe of id.
func (i *Injector) SetLatency(id connectivity.DependencyID, d time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	rule := i.rules[id]
	rule.Latency = d
	i.rules[id] = rule
}

// ForceFailure makes probes of id fail for the given duration.
// A non-positive duration forces failures until cleared.
func (i *Injector) ForceFailure(id connectivity.DependencyID, d time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	rule := i.rules[id]
	if d > 0 {
		rule.FailUntil = time.Now().Add(d)
		rule.FailForever = false
	} else {
		rule.FailForever = true
		rule.FailUntil = time.Time{}
	}
	i.rules[id] = rule
}

// Clear removes all faults for id.
func (i *Injector) Clear(id connectivity.DependencyID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.rules, id)
}

// Rules returns a copy of the active fault configuration.
func (i *Injector) Rules() map[connectivity.DependencyID]Rule {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make(map[connectivity.DependencyID]Rule, len(i.rules))
	for id, rule := range i.rules {
		out[id] = rule
	}
	return out
}
