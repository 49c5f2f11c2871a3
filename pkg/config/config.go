// Package config provides configuration management for the connwatch monitor.
// It supports loading configuration from YAML files, JSON files, and environment
// variables with automatic validation and default value application.
//
// Example usage:
//
//	cfg, err := config.Load("config.yaml", "CONNWATCH")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Or panic on error:
//	cfg := config.MustLoad("config.yaml", "CONNWATCH")
package config

import (
	"time"
)

// Config represents the complete configuration for the connwatch service.
type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	EventBus EventBusConfig `mapstructure:"eventbus"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Chaos    ChaosConfig    `mapstructure:"chaos"`
}

// ServiceConfig contains general service information.
type ServiceConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Env     string `mapstructure:"env"` // development, staging, production
}

// ServerConfig contains the HTTP server configuration for the read surface.
type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains PostgreSQL connection configuration for the
// datastore probe.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"` // disable, require, verify-ca, verify-full
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// CacheConfig contains Redis connection configuration for the cache probe.
type CacheConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	Mode         string        `mapstructure:"mode"` // standalone, cluster (informational)
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// EventBusConfig contains the NATS connection configuration for the broker
// probe and for probe-event publication.
type EventBusConfig struct {
	Servers    []string `mapstructure:"servers"`     // NATS server URLs
	StreamName string   `mapstructure:"stream_name"` // JetStream stream for probe events
	Publish    bool     `mapstructure:"publish"`     // publish probe/transition events
}

// LogConfig contains structured logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Port      int    `mapstructure:"port"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"` // Metric prefix
}

// MonitorConfig contains the connectivity monitor's scheduling and
// classification configuration.
type MonitorConfig struct {
	// ProbeTimeout bounds every probe invocation, scheduled or manual.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`

	// Jitter is the maximum random delay added to each dependency's initial
	// probe, to avoid a correlated burst of first probes at startup.
	Jitter time.Duration `mapstructure:"jitter"`

	// Workers is the size of the shared worker pool probe executions run on.
	Workers int `mapstructure:"workers"`

	// StormResetInterval is the fixed cadence at which instability-window
	// counters are reset. This is independent of each window's duration.
	StormResetInterval time.Duration `mapstructure:"storm_reset_interval"`

	Datastore DependencyConfig `mapstructure:"datastore"`
	Cache     DependencyConfig `mapstructure:"cache"`
	Broker    DependencyConfig `mapstructure:"broker"`
}

// DependencyConfig contains per-dependency probe scheduling and
// classification thresholds.
type DependencyConfig struct {
	// DegradedAt and FailedAt are the consecutive-failure boundaries for the
	// RETRYING -> DEGRADED -> FAILED classification. DegradedAt < FailedAt.
	DegradedAt int `mapstructure:"degraded_at"`
	FailedAt   int `mapstructure:"failed_at"`

	// ProbeInterval is the period between scheduled probes.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`

	// InitialDelay postpones the first scheduled probe after startup.
	InitialDelay time.Duration `mapstructure:"initial_delay"`

	// StormThreshold and StormWindow configure the instability-window
	// detector: StormThreshold qualifying events with the most recent one
	// inside StormWindow declare a storm.
	StormThreshold int           `mapstructure:"storm_threshold"`
	StormWindow    time.Duration `mapstructure:"storm_window"`
}

// ChaosConfig enables the fault-injection admin endpoints.
type ChaosConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
