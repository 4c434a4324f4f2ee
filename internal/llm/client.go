// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"fmt"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a new LLM client based on provider. On error the
// returned Client is nil.
func NewClient(ctx context.Context, provider Provider, apiKey string) (Client, error) {
	var (
		client Client
		err    error
	)
	switch provider {
	case ProviderGemini:
		client, err = NewGeminiClient(ctx, apiKey)
	case ProviderAnthropic:
		client, err = NewAnthropicClient(apiKey)
	case ProviderOpenAI:
		client, err = NewOpenAIClient(apiKey)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// systemAsUserTurn folds a system instruction into the transcript for
// providers whose request shape we drive through messages only.
func systemAsUserTurn(system string, messages []ChatMessage) []ChatMessage {
	if system == "" {
		return messages
	}
	out := make([]ChatMessage, 0, len(messages)+1)
	out = append(out, ChatMessage{Role: "user", Content: "[System instruction: " + system + "]"})
	return append(out, messages...)
}
