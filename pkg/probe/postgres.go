package probe

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/config"
	"github.com/Combine-Capital/connwatch/pkg/connectivity"
	"github.com/Combine-Capital/connwatch/pkg/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPool is the subset of pgxpool.Pool the datastore prober needs.
// Narrowed to an interface so tests can substitute a mock pool.
type PostgresPool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Ping(ctx context.Context) error
	Stat() *pgxpool.Stat
	Close()
}

// NewPostgresPool creates a connection pool from the configuration.
// Unlike a conventional startup path, it does not ping the database:
// the monitor must come up even when the datastore is unreachable, and
// the first probe will report the real state.
func NewPostgresPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password,
	)
	if cfg.SSLMode != "" {
		connStr += fmt.Sprintf(" sslmode=%s", cfg.SSLMode)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, errors.NewInvalidInputWithCause("database", "invalid pool configuration", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.NewPermanent("failed to create connection pool", err)
	}
	return pool, nil
}

// PostgresProber checks the datastore by running a trivial query through
// the pool. It also watches pool-exhaustion events (acquires that found
// no idle connection) through an instability window and reports a storm
// when they cluster.
type PostgresProber struct {
	pool  PostgresPool
	storm *connectivity.StormWindow
	sink  stormReporter

	// lastEmptyAcquire tracks the pool's cumulative empty-acquire count
	// so each probe observes only the delta. Accessed from probe
	// executions only, which the scheduler never overlaps per prober.
	lastEmptyAcquire int64
	statsPrimed      bool
}

// stormReporter is the slice of the registry the probers need for
// instability reporting.
type stormReporter interface {
	ReportStorm(id connectivity.DependencyID, message string)
}

// NewPostgresProber creates the datastore prober. cfg supplies the
// instability-window settings.
func NewPostgresProber(pool PostgresPool, cfg config.DependencyConfig, sink stormReporter) *PostgresProber {
	return &PostgresProber{
		pool:  pool,
		storm: connectivity.NewStormWindow(cfg.StormThreshold, cfg.StormWindow),
		sink:  sink,
	}
}

func (p *PostgresProber) ID() connectivity.DependencyID {
	return connectivity.Datastore
}

// Probe runs SELECT 1 through the pool and collects pool statistics.
func (p *PostgresProber) Probe(ctx context.Context) Result {
	start := time.Now()

	var result int
	err := p.pool.QueryRow(ctx, "SELECT 1").Scan(&result)
	latency := time.Since(start)

	meta := p.collectStats()

	if err != nil {
		return Result{
			Err:      errors.NewTemporary("datastore probe failed", err),
			Latency:  latency,
			Metadata: meta,
		}
	}
	if result != 1 {
		return Result{
			Err:      errors.NewPermanent(fmt.Sprintf("datastore probe returned unexpected result: %d", result), nil),
			Latency:  latency,
			Metadata: meta,
		}
	}

	return Result{Latency: latency, Metadata: meta}
}

// collectStats snapshots pool statistics and feeds pool-exhaustion
// events into the instability window.
func (p *PostgresProber) collectStats() map[string]string {
	stats := p.pool.Stat()
	if stats == nil {
		return nil
	}

	meta := map[string]string{
		"totalConns":    strconv.FormatInt(int64(stats.TotalConns()), 10),
		"idleConns":     strconv.FormatInt(int64(stats.IdleConns()), 10),
		"acquiredConns": strconv.FormatInt(int64(stats.AcquiredConns()), 10),
		"maxConns":      strconv.FormatInt(int64(stats.MaxConns()), 10),
	}

	empty := stats.EmptyAcquireCount()
	if p.statsPrimed {
		for i := p.lastEmptyAcquire; i < empty; i++ {
			if p.storm.Record() && p.sink != nil {
				p.sink.ReportStorm(connectivity.Datastore,
					fmt.Sprintf("connection pool exhaustion (%d recent acquire waits)", p.storm.Count()))
			}
		}
	}
	p.lastEmptyAcquire = empty
	p.statsPrimed = true

	return meta
}

// ResetStorm clears the pool-exhaustion window. Called by the scheduler
// on its fixed reset cadence.
func (p *PostgresProber) ResetStorm() {
	p.storm.Reset()
}
