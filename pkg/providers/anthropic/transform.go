package anthropic

import (
	"fmt"
	"strings"

	"briefline/copyforge/pkg/providers"
)

// messagesRequest is the Anthropic Messages API wire format. System prompts
// travel in a dedicated top-level field rather than the messages array.
type messagesRequest struct {
	Model       string       `json:"model"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the Anthropic Messages API response format.
type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func transformRequest(req *providers.CompletionRequest) *messagesRequest {
	out := &messagesRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = DefaultMaxTokens
	}

	var systemParts []string
	for _, m := range req.Messages {
		if m.Role == providers.RoleSystem {
			systemParts = append(systemParts, m.Content)
			continue
		}
		out.Messages = append(out.Messages, apiMessage{Role: m.Role, Content: m.Content})
	}
	out.System = strings.Join(systemParts, "\n\n")

	return out
}

func transformResponse(resp *messagesResponse) (*providers.CompletionResponse, error) {
	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("response contains no text content")
	}

	usage := providers.TokenUsage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}

	return &providers.CompletionResponse{
		Content: strings.Join(parts, ""),
		Model:   resp.Model,
		Usage:   usage,
	}, nil
}
