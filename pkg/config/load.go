package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a configuration from raw YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration with no file at all: defaults only.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg
}

// applyEnvOverrides fills secrets from the environment so API keys stay
// out of config files. COPYFORGE_LISTEN_ADDRESS overrides the bind
// address for container deployments.
func applyEnvOverrides(cfg *Config) {
	if addr := os.Getenv("COPYFORGE_LISTEN_ADDRESS"); addr != "" {
		cfg.Server.ListenAddress = addr
	}
	for name, pc := range cfg.Providers {
		if pc.APIKey != "" {
			continue
		}
		envKey := strings.ToUpper(pc.Type) + "_API_KEY"
		if key := os.Getenv(envKey); key != "" {
			pc.APIKey = key
			cfg.Providers[name] = pc
		}
	}
}
