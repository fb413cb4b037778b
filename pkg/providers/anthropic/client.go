// Package anthropic implements the providers.Provider interface for
// Anthropic's Messages API.
package anthropic

import (
	"context"
	"fmt"
	"log/slog"

	"briefline/copyforge/pkg/providers"
)

// DefaultVersion is the anthropic-version header value.
const DefaultVersion = "2023-06-01"

// DefaultMaxTokens is applied when the request does not set one; the
// Messages API requires the field.
const DefaultMaxTokens = 1024

// Provider is the Anthropic provider adapter.
type Provider struct {
	*providers.HTTPProvider
}

// NewProvider creates a new Anthropic provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "anthropic",
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
		config.BaseURL = "https://api.anthropic.com"
	}

	p := &Provider{
		HTTPProvider: providers.NewHTTPProvider(config),
	}

	slog.Info("anthropic provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)

	return p, nil
}

// Complete sends a messages request.
func (p *Provider) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if req == nil || req.Model == "" {
		return nil, &providers.ConfigError{
			Provider: p.Name(),
			Field:    "model",
			Message:  "model is required",
		}
	}
	if len(req.Messages) == 0 {
		return nil, &providers.ConfigError{
			Provider: p.Name(),
			Field:    "messages",
			Message:  "at least one message is required",
		}
	}

	url := fmt.Sprintf("%s/v1/messages", p.Config().BaseURL)
	headers := map[string]string{
		"x-api-key":         p.Config().APIKey,
		"anthropic-version": DefaultVersion,
		"Content-Type":      "application/json",
	}

	var apiResp messagesResponse
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
