// Package logging provides structured logging with zerolog for the connwatch
// monitor. It supports configurable log levels and output formats
// (JSON/console), with consistent field naming across all components.
//
// Example usage:
//
//	cfg := config.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//	logger := logging.New(cfg)
//	logger.Info().Str(logging.Dependency, "cache").Msg("probe scheduled")
package logging

// Standard field names for structured logging.
// These constants ensure consistent field naming across all components.
const (
	// ServiceName is the field name for the service generating the log.
	ServiceName = "service_name"

	// Component is the field name for the component/package generating the log.
	Component = "component"

	// Dependency is the field name for the monitored dependency identifier.
	Dependency = "dependency"

	// OldState and NewState are the field names for health state transitions.
	OldState = "old_state"
	NewState = "new_state"

	// Failures is the field name for the consecutive-failure count.
	Failures = "failures"

	// Error is the field name for error information.
	Error = "error"

	// Duration is the field name for operation duration.
	Duration = "duration_ms"
)
