// Package events publishes dependency state transitions to the event bus
// so other services can react to infrastructure health changes.
// Publication is best-effort: a broker outage must never influence the
// health tracking that is reporting on that same broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/config"
	"github.com/Combine-Capital/connwatch/pkg/connectivity"
	"github.com/Combine-Capital/connwatch/pkg/errors"
	"github.com/Combine-Capital/connwatch/pkg/logging"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// subjectPrefix is the JetStream subject space for transition events.
// Events for one dependency publish to connwatch.events.v1.<dependency>.
const subjectPrefix = "connwatch.events.v1"

// TransitionEvent is the wire format for a published state transition.
type TransitionEvent struct {
	EventID    string    `json:"eventId"`
	Dependency string    `json:"dependency"`
	OldState   string    `json:"oldState"`
	NewState   string    `json:"newState"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher writes transition events to a JetStream stream.
type Publisher struct {
	js  jetstream.JetStream
	cfg config.EventBusConfig
	log *logging.Logger
}

// NewPublisher creates a publisher on an existing broker connection and
// ensures the stream exists. The connection is shared with the broker
// prober; the publisher never opens its own.
func NewPublisher(ctx context.Context, nc *nats.Conn, cfg config.EventBusConfig, log *logging.Logger) (*Publisher, error) {
	if cfg.StreamName == "" {
		return nil, errors.NewInvalidInput("stream_name", "stream name is required")
	}
	if log == nil {
		log = logging.Nop()
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, errors.NewTemporary("failed to create JetStream context", err)
	}

	p := &Publisher{
		js:  js,
		cfg: cfg,
		log: log.WithComponent("events"),
	}

	if err := p.ensureStream(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to ensure stream exists")
	}
	return p, nil
}

// ensureStream creates or updates the JetStream stream.
func (p *Publisher) ensureStream(ctx context.Context) error {
	wildcard := subjectPrefix + ".>"

	stream, err := p.js.Stream(ctx, p.cfg.StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to get stream info")
		}

		for _, subj := range info.Config.Subjects {
			if subj == wildcard {
				return nil
			}
		}

		_, err = p.js.UpdateStream(ctx, jetstream.StreamConfig{
			Name:     p.cfg.StreamName,
			Subjects: append(info.Config.Subjects, wildcard),
		})
		if err != nil {
			return errors.Wrap(err, "failed to update stream")
		}
		return nil
	}

	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        p.cfg.StreamName,
		Description: "Dependency connectivity events",
		Subjects:    []string{wildcard},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create stream")
	}
	return nil
}

// PublishTransition writes one transition event to the dependency's
// subject.
func (p *Publisher) PublishTransition(ctx context.Context, id connectivity.DependencyID, oldState, newState connectivity.State) error {
	evt := TransitionEvent{
		EventID:    uuid.NewString(),
		Dependency: id.String(),
		OldState:   string(oldState),
		NewState:   string(newState),
		Timestamp:  time.Now().UTC(),
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return errors.NewPermanent("failed to marshal event", err)
	}

	if _, err := p.js.Publish(ctx, subjectFor(id), data); err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "publish cancelled")
		}
		return errors.NewTemporary("failed to publish event", err)
	}
	return nil
}

// subjectFor returns the subject a dependency's events publish to.
func subjectFor(id connectivity.DependencyID) string {
	return fmt.Sprintf("%s.%s", subjectPrefix, id)
}

// FailureReporter receives a passive failure report when a publish is
// not acknowledged. The registry implements it.
type FailureReporter interface {
	ReportFailure(id connectivity.DependencyID, message string)
}

// Sink adapts the publisher to the registry's sink interface. Only
// state transitions publish; failures and latencies stay local. Each
// publish runs on its own goroutine with a deadline so a stalled broker
// cannot block the registry's reporting path.
//
// A failed publish is itself a broker health signal and is reported as
// one. This cannot loop unboundedly: publishes only happen on
// transitions, and repeated broker failures stop transitioning once the
// state settles.
type Sink struct {
	pub      *Publisher
	reporter FailureReporter
	timeout  time.Duration
}

// NewSink wraps a publisher as a registry sink. reporter may be nil, in
// which case publish failures are only logged.
func NewSink(pub *Publisher, reporter FailureReporter) *Sink {
	return &Sink{pub: pub, reporter: reporter, timeout: 5 * time.Second}
}

func (s *Sink) StateChanged(id connectivity.DependencyID, oldState, newState connectivity.State) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.pub.PublishTransition(ctx, id, oldState, newState); err != nil {
			s.pub.log.Warn().
				Str(logging.Dependency, id.String()).
				Err(err).
				Msg("transition event not published")
			if s.reporter != nil {
				s.reporter.ReportFailure(connectivity.Broker, fmt.Sprintf("event publish failed: %v", err))
			}
		}
	}()
}

func (s *Sink) RetryObserved(connectivity.DependencyID)                 {}
func (s *Sink) FailureOccurred(connectivity.DependencyID)               {}
func (s *Sink) Recovered(connectivity.DependencyID, time.Duration)      {}
func (s *Sink) ObserveLatency(connectivity.DependencyID, time.Duration) {}
