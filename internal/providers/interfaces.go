package providers

import "context"

// ProviderInfo names the backend that served a call, for logs and interaction records.
type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

type GenerateRequest struct {
	Operation string `json:"operation"`
	// System replaces the provider's default system message when set.
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	// MaxTokens caps the completion length; zero leaves the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
}

// LLMProvider completes answer and notes prompts.
type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

// EmbeddingProvider returns one vector per input, in input order.
type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}
