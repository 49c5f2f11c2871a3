package probe

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/config"
	"github.com/Combine-Capital/connwatch/pkg/connectivity"
	"github.com/Combine-Capital/connwatch/pkg/errors"
	"github.com/Combine-Capital/connwatch/pkg/logging"
)

// Interceptor inspects a probe before it runs. A non-nil error aborts
// the probe and is reported as its failure. The fault injector
// implements this for chaos testing.
type Interceptor interface {
	Inject(ctx context.Context, id connectivity.DependencyID) error
}

// Scheduler runs registered probers on their configured cadence and
// feeds outcomes into the connectivity registry. Probe executions share
// a bounded worker pool so a slow backend cannot starve the others of
// goroutines, and every execution is bounded by the probe timeout.
type Scheduler struct {
	registry    *connectivity.Registry
	cfg         config.MonitorConfig
	log         *logging.Logger
	interceptor Interceptor

	mu      sync.Mutex
	entries map[connectivity.DependencyID]*entry

	sem    chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type entry struct {
	prober   Prober
	schedule config.DependencyConfig
}

// NewScheduler creates a scheduler. interceptor may be nil.
func NewScheduler(registry *connectivity.Registry, cfg config.MonitorConfig, interceptor Interceptor, log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Nop()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		registry:    registry,
		cfg:         cfg,
		log:         log.WithComponent("scheduler"),
		interceptor: interceptor,
		entries:     make(map[connectivity.DependencyID]*entry),
		sem:         make(chan struct{}, workers),
	}
}

// Register adds a prober with its schedule. Must be called before Start.
func (s *Scheduler) Register(p Prober, schedule config.DependencyConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[p.ID()] = &entry{prober: p, schedule: schedule}
}

// Start launches the probe loops and the storm-reset loop. It returns
// immediately; loops run until Stop or ctx cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e := e
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runLoop(ctx, e)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.resetLoop(ctx)
	}()
}

// Stop cancels the probe loops. In-flight probes finish on their own;
// their timeout bounds how long that takes.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// TriggerNow runs a probe of id immediately and reports its outcome
// before returning. Returns a NotFound error for unregistered ids.
func (s *Scheduler) TriggerNow(ctx context.Context, id connectivity.DependencyID) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return errors.NewNotFound("dependency", id.String())
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return errors.NewTemporary("probe not scheduled before deadline", ctx.Err())
	}
	defer func() { <-s.sem }()

	s.runProbe(ctx, e.prober)
	return nil
}

// runLoop drives one dependency: a jittered initial delay, then probes
// on a fixed interval. Ticks that fire while a probe is waiting for a
// worker slot are not queued.
func (s *Scheduler) runLoop(ctx context.Context, e *entry) {
	delay := e.schedule.InitialDelay
	if s.cfg.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(s.cfg.Jitter)))
	}

	timer := time.NewTimer(delay)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		return
	}

	s.probeWithWorker(ctx, e.prober)

	ticker := time.NewTicker(e.schedule.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.probeWithWorker(ctx, e.prober)
		case <-ctx.Done():
			return
		}
	}
}

// probeWithWorker runs one probe inside the shared worker pool.
func (s *Scheduler) probeWithWorker(ctx context.Context, p Prober) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-s.sem }()

	s.runProbe(ctx, p)
}

// runProbe executes one probe attempt and reports the outcome. A panic
// inside a prober is contained and reported as a failure of that
// dependency only.
func (s *Scheduler) runProbe(ctx context.Context, p Prober) {
	id := p.ID()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Str(logging.Dependency, id.String()).
				Interface("panic", r).
				Msg("probe panicked")
			s.registry.ReportFailure(id, fmt.Sprintf("probe panicked: %v", r))
		}
	}()

	probeCtx := ctx
	if s.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, s.cfg.ProbeTimeout)
		defer cancel()
	}

	if s.interceptor != nil {
		if err := s.interceptor.Inject(probeCtx, id); err != nil {
			s.registry.ReportFailure(id, err.Error())
			return
		}
	}

	res := p.Probe(probeCtx)

	if res.Latency > 0 {
		s.registry.RecordLatency(id, res.Latency)
	}
	if len(res.Metadata) > 0 {
		s.registry.UpdateMetadata(id, res.Metadata)
	}

	if res.Err != nil {
		s.registry.ReportFailure(id, res.Err.Error())
		return
	}
	s.registry.ReportSuccess(id)
}

// resetLoop clears every prober's instability window on a fixed
// cadence, independent of the windows' own durations.
func (s *Scheduler) resetLoop(ctx context.Context) {
	interval := s.cfg.StormResetInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for _, e := range s.entries {
				if r, ok := e.prober.(stormResetter); ok {
					r.ResetStorm()
				}
			}
			s.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}
