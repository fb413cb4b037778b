// Package providers defines the provider-agnostic LLM client layer used by
// the pipeline for planning, drafting, review augmentation, safety
// classification, and pairwise judging.
//
// A provider takes role-tagged messages plus a model identifier and returns
// generated text with optional token-usage counters. Every call honors a
// configurable timeout; a timeout surfaces as a TimeoutError, distinct from
// transport and API failures, so callers can decide fallback behavior per
// call site.
package providers

import "context"

// Provider is the interface all LLM provider adapters implement.
//
// Implementations must respect context cancellation and return promptly when
// the context is cancelled or the configured timeout elapses.
type Provider interface {
	// Complete sends a completion request and returns the normalized
	// response. The request is transformed to the provider-specific wire
	// format and the response back to the provider-agnostic one.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider's configured name (e.g. "openai").
	Name() string

	// Type returns the adapter type (e.g. "openai", "anthropic").
	Type() string

	// Config returns the provider's configuration.
	Config() ProviderConfig

	// Close releases HTTP connections and other resources. The provider
	// must not be used after Close.
	Close() error
}
