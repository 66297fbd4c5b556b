package config

import (
	"fmt"

	"daorewards/storage"
)

var validLevels = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case storage.BackendMemory:
	case storage.BackendLevelDB, storage.BackendBolt:
		if c.DataDir == "" {
			return fmt.Errorf("config: DataDir required for %s backend", c.Backend)
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.NativeDenom == "" {
		return fmt.Errorf("config: NativeDenom must not be empty")
	}
	if c.Owner == "" {
		return fmt.Errorf("config: Owner must not be empty")
	}
	if _, ok := validLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("config: logging.Level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("config: logging rotation limits must not be negative")
	}
	if c.Metrics.RequestsPerMinute < 0 || c.Metrics.Burst < 0 {
		return fmt.Errorf("config: metrics rate limits must not be negative")
	}
	if c.Telemetry.Enabled() && c.Telemetry.ServiceName == "" {
		return fmt.Errorf("config: telemetry.ServiceName required when exporters are enabled")
	}
	return nil
}
