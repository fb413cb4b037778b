package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
var validLogFormats = map[string]bool{"json": true, "text": true, "console": true}
var validProviderTypes = map[string]bool{"openai": true, "anthropic": true}

// Validate rejects configurations that cannot work. It runs after
// ApplyDefaults, so absent optional fields are already filled.
func Validate(cfg *Config) error {
	if cfg.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address must not be empty")
	}

	for name, pc := range cfg.Providers {
		if !validProviderTypes[strings.ToLower(pc.Type)] {
			return fmt.Errorf("provider %q has unsupported type %q", name, pc.Type)
		}
	}

	if p := cfg.Pipeline.Provider; p != "" {
		if _, ok := cfg.Providers[p]; !ok {
			return fmt.Errorf("pipeline.provider %q is not defined under providers", p)
		}
	}

	if !validLogLevels[strings.ToLower(cfg.Telemetry.Logging.Level)] {
		return fmt.Errorf("telemetry.logging.level %q is invalid", cfg.Telemetry.Logging.Level)
	}
	if !validLogFormats[strings.ToLower(cfg.Telemetry.Logging.Format)] {
		return fmt.Errorf("telemetry.logging.format %q is invalid", cfg.Telemetry.Logging.Format)
	}

	if r := cfg.Telemetry.Tracing.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry.tracing.sample_ratio %v must be in [0, 1]", r)
	}

	if cfg.Storage.Retention.RetentionDays < 0 {
		return fmt.Errorf("storage.retention.retention_days must not be negative")
	}
	if cfg.Storage.Retention.MaxRuns < 0 {
		return fmt.Errorf("storage.retention.max_runs must not be negative")
	}

	return nil
}
