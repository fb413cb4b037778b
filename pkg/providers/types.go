package providers

import "time"

// Message represents a single role-tagged message in a conversation.
type Message struct {
	// Role identifies the sender: system, user, or assistant.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// Role constants for Message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TokenUsage tracks token consumption for one call.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens generated.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is prompt plus completion.
	TotalTokens int `json:"total_tokens"`
}

// Add accumulates usage from another call into the receiver.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// CompletionRequest is a provider-agnostic completion request.
type CompletionRequest struct {
	// Model is the provider-specific model identifier.
	Model string `json:"model"`

	// Messages is the conversation to complete.
	Messages []Message `json:"messages"`

	// Temperature controls randomness (0.0 to 1.0). Zero means the
	// provider default.
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens caps the number of generated tokens. Zero means the
	// provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// CompletionResponse is a provider-agnostic completion response.
type CompletionResponse struct {
	// Content is the generated text.
	Content string `json:"content"`

	// Model is the model that produced the response, as reported by the
	// provider.
	Model string `json:"model"`

	// Usage holds token counters when the provider reports them.
	Usage TokenUsage `json:"usage"`
}

// ProviderConfig contains configuration for one provider adapter.
type ProviderConfig struct {
	// Name is the provider's configured name.
	Name string `yaml:"-"`

	// Type selects the adapter: "openai" or "anthropic".
	Type string `yaml:"type"`

	// BaseURL overrides the provider's API endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates requests. An empty key leaves optional
	// augmentation calls (safety classifier, LLM judge) disabled.
	APIKey string `yaml:"api_key"`

	// Timeout bounds each completion call. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the retry budget for transient transport errors.
	// Default: 2.
	MaxRetries int `yaml:"max_retries"`

	// MaxIdleConns configures the HTTP connection pool. Default: 20.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// IdleConnTimeout configures the HTTP connection pool. Default: 90s.
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`

	// Models maps capability tiers (lite, standard, premium) to concrete
	// model identifiers for this provider.
	Models map[string]string `yaml:"models"`
}

// ModelForTier resolves a capability tier to this provider's concrete model
// identifier. An unmapped tier falls through to the tier name itself so
// explicit model ids keep working.
func (c ProviderConfig) ModelForTier(tier string) string {
	if m, ok := c.Models[tier]; ok && m != "" {
		return m
	}
	return tier
}
