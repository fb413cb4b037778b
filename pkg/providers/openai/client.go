// Package openai implements the providers.Provider interface for
// OpenAI-compatible chat-completion APIs.
package openai

import (
	"context"
	"fmt"
	"log/slog"

	"briefline/copyforge/pkg/providers"
)

// Provider is the OpenAI provider adapter.
type Provider struct {
	*providers.HTTPProvider
}

// NewProvider creates a new OpenAI provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "openai",
			Field:    "name",
			Message:  "provider name is required",
		}
	}
	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required",
		}
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com"
	}

	p := &Provider{
		HTTPProvider: providers.NewHTTPProvider(config),
	}

	slog.Info("openai provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)

	return p, nil
}

// Complete sends a chat completion request.
func (p *Provider) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := validateRequest(p.Name(), req); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/chat/completions", p.Config().BaseURL)
	headers := map[string]string{
		"Authorization": "Bearer " + p.Config().APIKey,
		"Content-Type":  "application/json",
	}

	var apiResp chatResponse
	if err := p.DoJSONRequest(ctx, "POST", url, transformRequest(req), &apiResp, headers); err != nil {
		return nil, err
	}

	resp, err := transformResponse(&apiResp)
	if err != nil {
		return nil, &providers.ParseError{
			Provider: p.Name(),
			Cause:    err,
		}
	}

	slog.Debug("completion request succeeded",
		"provider", p.Name(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)

	return resp, nil
}

func validateRequest(provider string, req *providers.CompletionRequest) error {
	if req == nil || req.Model == "" {
		return &providers.ConfigError{
			Provider: provider,
			Field:    "model",
			Message:  "model is required",
		}
	}
	if len(req.Messages) == 0 {
		return &providers.ConfigError{
			Provider: provider,
			Field:    "messages",
			Message:  "at least one message is required",
		}
	}
	return nil
}
