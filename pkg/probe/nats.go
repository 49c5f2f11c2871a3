package probe

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/config"
	"github.com/Combine-Capital/connwatch/pkg/connectivity"
	"github.com/Combine-Capital/connwatch/pkg/errors"
	"github.com/Combine-Capital/connwatch/pkg/logging"
	"github.com/nats-io/nats.go"
)

// passiveReporter is the slice of the registry the broker prober needs
// for connection-event reporting.
type passiveReporter interface {
	ReportSuccess(id connectivity.DependencyID)
	ReportFailure(id connectivity.DependencyID, message string)
	ReportStorm(id connectivity.DependencyID, message string)
}

// NATSProber checks the broker connection. Unlike the request-response
// probers it also reports passively: the client's disconnect and
// reconnect callbacks feed the registry between scheduled probes, and
// reconnect churn clustering inside the instability window is reported
// as a storm.
type NATSProber struct {
	conn  *nats.Conn
	churn *connectivity.StormWindow
	sink  passiveReporter
	log   *logging.Logger
}

// NewNATSProber connects to the broker and installs the connection
// callbacks. The client retries the initial connection in the
// background, so this succeeds even when the broker is unreachable.
func NewNATSProber(cfg config.EventBusConfig, depCfg config.DependencyConfig, sink passiveReporter, log *logging.Logger) (*NATSProber, error) {
	if log == nil {
		log = logging.Nop()
	}

	p := &NATSProber{
		churn: connectivity.NewStormWindow(depCfg.StormThreshold, depCfg.StormWindow),
		sink:  sink,
		log:   log.WithComponent("probe").WithDependency(connectivity.Broker.String()),
	}

	conn, err := nats.Connect(strings.Join(cfg.Servers, ","),
		nats.Name("connwatch"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(p.onDisconnect),
		nats.ReconnectHandler(p.onReconnect),
	)
	if err != nil {
		return nil, errors.NewPermanent("failed to create broker connection", err)
	}
	p.conn = conn
	return p, nil
}

func (p *NATSProber) ID() connectivity.DependencyID {
	return connectivity.Broker
}

// Probe verifies the connection is established and measures round-trip
// time to the server.
func (p *NATSProber) Probe(ctx context.Context) Result {
	if status := p.conn.Status(); status != nats.CONNECTED {
		return Result{
			Err:      errors.NewTemporary(fmt.Sprintf("broker connection %s", strings.ToLower(status.String())), nil),
			Metadata: p.collectStats(0),
		}
	}

	start := time.Now()
	rtt, err := p.conn.RTT()
	latency := time.Since(start)
	if err != nil {
		return Result{
			Err:      errors.NewTemporary("broker round-trip failed", err),
			Latency:  latency,
			Metadata: p.collectStats(0),
		}
	}

	return Result{Latency: latency, Metadata: p.collectStats(rtt)}
}

func (p *NATSProber) collectStats(rtt time.Duration) map[string]string {
	meta := map[string]string{
		"reconnects":  strconv.FormatUint(p.conn.Stats().Reconnects, 10),
		"serverCount": strconv.Itoa(len(p.conn.Servers())),
	}
	if url := p.conn.ConnectedUrl(); url != "" {
		meta["connectedUrl"] = url
	}
	if rtt > 0 {
		meta["rtt"] = rtt.String()
	}
	return meta
}

// onDisconnect reports a broker failure as soon as the client notices,
// without waiting for the next scheduled probe.
func (p *NATSProber) onDisconnect(_ *nats.Conn, err error) {
	msg := "broker connection lost"
	if err != nil {
		msg = fmt.Sprintf("broker connection lost: %v", err)
	}
	p.log.Warn().Msg(msg)
	p.sink.ReportFailure(connectivity.Broker, msg)
	p.recordChurn()
}

// onReconnect restores the connected state and counts the reconnect as
// churn; a dependency that keeps reconnecting is not healthy even
// though each reconnect ends in success.
func (p *NATSProber) onReconnect(nc *nats.Conn) {
	p.log.Info().Str("url", nc.ConnectedUrl()).Msg("broker reconnected")
	p.sink.ReportSuccess(connectivity.Broker)
	p.recordChurn()
}

func (p *NATSProber) recordChurn() {
	if p.churn.Record() {
		p.sink.ReportStorm(connectivity.Broker,
			fmt.Sprintf("connection churn detected (%d recent events)", p.churn.Count()))
	}
}

// ResetStorm clears the churn window.
func (p *NATSProber) ResetStorm() {
	p.churn.Reset()
}

// Conn exposes the underlying connection for the event publisher.
func (p *NATSProber) Conn() *nats.Conn {
	return p.conn
}

// Close drains the broker connection.
func (p *NATSProber) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
