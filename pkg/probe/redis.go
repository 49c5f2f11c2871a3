package probe

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/config"
	"github.com/Combine-Capital/connwatch/pkg/connectivity"
	"github.com/Combine-Capital/connwatch/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a cache client from the configuration. No
// connection is attempted here; the client dials lazily and the first
// probe reports reachability.
func NewRedisClient(cfg config.CacheConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
}

// RedisProber checks the cache with a PING and watches the client's
// pool-timeout counter. Timeouts clustering inside the instability
// window indicate the pool is starved even while pings succeed.
type RedisProber struct {
	client *redis.Client
	mode   string
	storm  *connectivity.StormWindow
	sink   stormReporter

	lastTimeouts uint32
	statsPrimed  bool
}

// NewRedisProber creates the cache prober. cfg supplies the
// instability-window settings; mode is informational metadata.
func NewRedisProber(client *redis.Client, mode string, cfg config.DependencyConfig, sink stormReporter) *RedisProber {
	return &RedisProber{
		client: client,
		mode:   mode,
		storm:  connectivity.NewStormWindow(cfg.StormThreshold, cfg.StormWindow),
		sink:   sink,
	}
}

func (p *RedisProber) ID() connectivity.DependencyID {
	return connectivity.Cache
}

// Probe sends a PING and collects client pool statistics.
func (p *RedisProber) Probe(ctx context.Context) Result {
	start := time.Now()
	err := p.client.Ping(ctx).Err()
	latency := time.Since(start)

	meta := p.collectStats()

	if err != nil {
		return Result{
			Err:      errors.NewTemporary("cache probe failed", err),
			Latency:  latency,
			Metadata: meta,
		}
	}
	return Result{Latency: latency, Metadata: meta}
}

// collectStats snapshots pool statistics and feeds timeout events into
// the instability window.
func (p *RedisProber) collectStats() map[string]string {
	stats := p.client.PoolStats()

	meta := map[string]string{
		"mode":       p.mode,
		"totalConns": strconv.FormatUint(uint64(stats.TotalConns), 10),
		"idleConns":  strconv.FormatUint(uint64(stats.IdleConns), 10),
		"hits":       strconv.FormatUint(uint64(stats.Hits), 10),
		"misses":     strconv.FormatUint(uint64(stats.Misses), 10),
		"timeouts":   strconv.FormatUint(uint64(stats.Timeouts), 10),
	}

	if p.statsPrimed {
		for i := p.lastTimeouts; i < stats.Timeouts; i++ {
			if p.storm.Record() && p.sink != nil {
				p.sink.ReportStorm(connectivity.Cache,
					fmt.Sprintf("connection pool experiencing timeouts (%d recent)", p.storm.Count()))
			}
		}
	}
	p.lastTimeouts = stats.Timeouts
	p.statsPrimed = true

	return meta
}

// ResetStorm clears the pool-timeout window.
func (p *RedisProber) ResetStorm() {
	p.storm.Reset()
}
