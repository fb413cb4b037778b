// Package config loads and validates the application configuration from a
// YAML file, applying documented defaults and a small set of environment
// overrides for secrets.
package config

import (
	"time"

	"briefline/copyforge/pkg/providers"
	"briefline/copyforge/pkg/store"
	"briefline/copyforge/pkg/telemetry/metrics"
	"briefline/copyforge/pkg/telemetry/tracing"
)

// Config is the full application configuration.
type Config struct {
	// Server configures the HTTP API server.
	Server ServerConfig `yaml:"server"`

	// Providers maps provider names to their adapter configuration.
	Providers map[string]providers.ProviderConfig `yaml:"providers"`

	// Pipeline configures graph topology, policy, and provider selection.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Storage configures the flat-file run store.
	Storage StorageConfig `yaml:"storage"`

	// Telemetry configures logging, metrics, and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// ListenAddress is the host:port to bind. Default: 127.0.0.1:8080.
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds request reads. Default: 30s.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds response writes. Default: 120s; runs execute
	// synchronously inside the request.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout bounds keep-alive connections. Default: 120s.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown. Default: 30s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PipelineConfig configures run execution.
type PipelineConfig struct {
	// GraphPath is a YAML graph topology file. Empty uses the built-in
	// plan/write/review/analyze/done graph.
	GraphPath string `yaml:"graph_path"`

	// PolicyPath is the policy YAML file. Empty uses policy defaults.
	PolicyPath string `yaml:"policy_path"`

	// WatchPolicy hot-reloads the policy file on change (serve mode).
	WatchPolicy bool `yaml:"watch_policy"`

	// Provider names the entry in Providers used for LLM-backed stages.
	// Empty disables LLM stages; deterministic generation still runs.
	Provider string `yaml:"provider"`
}

// StorageConfig configures run persistence.
type StorageConfig struct {
	// Root is the store root directory. Default: data.
	Root string `yaml:"root"`

	// Retention controls pruning of stored runs.
	Retention store.RetentionConfig `yaml:"retention"`
}

// TelemetryConfig groups the observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig  `yaml:"logging"`
	Metrics metrics.Config `yaml:"metrics"`
	Tracing tracing.Config `yaml:"tracing"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error. Default: info.
	Level string `yaml:"level"`

	// Format is json, text, or console. Default: json.
	Format string `yaml:"format"`

	// RedactPII redacts contact details in logged brief and draft text.
	// Default: true.
	RedactPII *bool `yaml:"redact_pii"`
}
