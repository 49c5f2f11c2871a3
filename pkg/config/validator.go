package config

import (
	"fmt"
	"time"
)

// Validate validates the configuration and returns an error if any required fields are missing
// or have invalid values.
func Validate(cfg *Config) error {
	if cfg.Server.HTTPPort == 0 {
		return fmt.Errorf("server.http_port is required")
	}

	// Validate Database config (if used)
	if cfg.Database.Host != "" {
		if cfg.Database.Port == 0 {
			return fmt.Errorf("database.port is required when database.host is set")
		}
		if cfg.Database.User == "" {
			return fmt.Errorf("database.user is required when database.host is set")
		}
		if cfg.Database.Database == "" {
			return fmt.Errorf("database.database is required when database.host is set")
		}
	}

	// Validate Cache config (if used)
	if cfg.Cache.Host != "" {
		if cfg.Cache.Port == 0 {
			return fmt.Errorf("cache.port is required when cache.host is set")
		}
	}

	// Validate EventBus config (if publication is enabled)
	if cfg.EventBus.Publish {
		if len(cfg.EventBus.Servers) == 0 {
			return fmt.Errorf("eventbus.servers is required when eventbus.publish is enabled")
		}
		if cfg.EventBus.StreamName == "" {
			return fmt.Errorf("eventbus.stream_name is required when eventbus.publish is enabled")
		}
	}

	// Validate Metrics config (if enabled)
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port == 0 {
			return fmt.Errorf("metrics.port is required when metrics are enabled")
		}
	}

	// Validate Monitor thresholds
	for _, dep := range []struct {
		name string
		cfg  DependencyConfig
	}{
		{"monitor.datastore", cfg.Monitor.Datastore},
		{"monitor.cache", cfg.Monitor.Cache},
		{"monitor.broker", cfg.Monitor.Broker},
	} {
		if dep.cfg.DegradedAt <= 0 {
			return fmt.Errorf("%s.degraded_at must be positive", dep.name)
		}
		if dep.cfg.FailedAt <= dep.cfg.DegradedAt {
			return fmt.Errorf("%s.failed_at must be greater than degraded_at", dep.name)
		}
	}
	if cfg.Monitor.Workers <= 0 {
		return fmt.Errorf("monitor.workers must be positive")
	}

	return nil
}

// applyDefaults applies default values to the configuration where values are not set.
func applyDefaults(cfg *Config) {
	// Service defaults
	if cfg.Service.Name == "" {
		cfg.Service.Name = "connwatch"
	}
	if cfg.Service.Env == "" {
		cfg.Service.Env = "development"
	}

	// Server defaults
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	// Database defaults
	if cfg.Database.Port == 0 && cfg.Database.Host != "" {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.MaxConnLifetime == 0 {
		cfg.Database.MaxConnLifetime = time.Hour
	}
	if cfg.Database.MaxConnIdleTime == 0 {
		cfg.Database.MaxConnIdleTime = 10 * time.Minute
	}
	if cfg.Database.ConnectTimeout == 0 {
		cfg.Database.ConnectTimeout = 5 * time.Second
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "prefer"
	}

	// Cache defaults
	if cfg.Cache.Port == 0 && cfg.Cache.Host != "" {
		cfg.Cache.Port = 6379
	}
	if cfg.Cache.Mode == "" {
		cfg.Cache.Mode = "standalone"
	}
	if cfg.Cache.MaxRetries == 0 {
		cfg.Cache.MaxRetries = 3
	}
	if cfg.Cache.DialTimeout == 0 {
		cfg.Cache.DialTimeout = 5 * time.Second
	}
	if cfg.Cache.ReadTimeout == 0 {
		cfg.Cache.ReadTimeout = 3 * time.Second
	}
	if cfg.Cache.WriteTimeout == 0 {
		cfg.Cache.WriteTimeout = 3 * time.Second
	}
	if cfg.Cache.PoolSize == 0 {
		cfg.Cache.PoolSize = 10
	}
	if cfg.Cache.MinIdleConns == 0 {
		cfg.Cache.MinIdleConns = 2
	}

	// EventBus defaults
	if cfg.EventBus.StreamName == "" && len(cfg.EventBus.Servers) > 0 {
		cfg.EventBus.StreamName = "connwatch_events"
	}

	// Log defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	// Metrics defaults
	if cfg.Metrics.Port == 0 && cfg.Metrics.Enabled {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = cfg.Service.Name
	}

	// Monitor defaults. Thresholds mirror the operational profile of each
	// dependency: the broker tolerates more consecutive failures before
	// FAILED because cluster metadata queries fail transiently during
	// ordinary broker restarts.
	if cfg.Monitor.ProbeTimeout == 0 {
		cfg.Monitor.ProbeTimeout = 5 * time.Second
	}
	if cfg.Monitor.Jitter == 0 {
		cfg.Monitor.Jitter = 2 * time.Second
	}
	if cfg.Monitor.Workers == 0 {
		cfg.Monitor.Workers = 3
	}
	if cfg.Monitor.StormResetInterval == 0 {
		cfg.Monitor.StormResetInterval = 5 * time.Minute
	}
	applyDependencyDefaults(&cfg.Monitor.Datastore, 2, 5, 5*time.Second, 10*time.Second, 3, time.Minute)
	applyDependencyDefaults(&cfg.Monitor.Cache, 2, 5, 5*time.Second, 10*time.Second, 3, time.Minute)
	applyDependencyDefaults(&cfg.Monitor.Broker, 3, 7, 10*time.Second, 15*time.Second, 5, 5*time.Minute)
}

func applyDependencyDefaults(dc *DependencyConfig, degradedAt, failedAt int, interval, delay time.Duration, stormThreshold int, stormWindow time.Duration) {
	if dc.DegradedAt == 0 {
		dc.DegradedAt = degradedAt
	}
	if dc.FailedAt == 0 {
		dc.FailedAt = failedAt
	}
	if dc.ProbeInterval == 0 {
		dc.ProbeInterval = interval
	}
	if dc.InitialDelay == 0 {
		dc.InitialDelay = delay
	}
	if dc.StormThreshold == 0 {
		dc.StormThreshold = stormThreshold
	}
	if dc.StormWindow == 0 {
		dc.StormWindow = stormWindow
	}
}
