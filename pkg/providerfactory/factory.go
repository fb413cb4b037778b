// Package providerfactory creates provider adapters from configuration.
package providerfactory

import (
	"fmt"
	"log/slog"
	"strings"

	"briefline/copyforge/pkg/providers"
	"briefline/copyforge/pkg/providers/anthropic"
	"briefline/copyforge/pkg/providers/openai"
)

// NewProvider creates a provider instance for the configured adapter type.
//
// Supported types:
//   - "openai": OpenAI chat-completions API (and compatible endpoints)
//   - "anthropic": Anthropic Messages API
//
// When config.Type is empty it is inferred from the provider name; names
// containing "anthropic" or "claude" select the Anthropic adapter, anything
// else selects OpenAI-compatible.
func NewProvider(config providers.ProviderConfig) (providers.Provider, error) {
	providerType := config.Type
	if providerType == "" {
		providerType = inferProviderType(config.Name)
		config.Type = providerType
	}

	slog.Debug("creating provider",
		"name", config.Name,
		"type", providerType,
		"base_url", config.BaseURL,
	)

	var provider providers.Provider
	var err error

	switch providerType {
	case "openai":
		provider, err = openai.NewProvider(config)

	case "anthropic":
		provider, err = anthropic.NewProvider(config)

	default:
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "type",
			Message:  fmt.Sprintf("unsupported provider type: %q (supported: openai, anthropic)", providerType),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", config.Name, err)
	}

	return provider, nil
}

func inferProviderType(name string) string {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "anthropic") || strings.Contains(lower, "claude") {
		return "anthropic"
	}
	return "openai"
}
