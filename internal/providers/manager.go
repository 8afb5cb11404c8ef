package providers

import (
	"context"
	"fmt"

	"studyrag/internal/config"
)

const defaultAzureVersion = "2024-02-01"

// NewEmbeddingProvider builds the real embedding provider named by
// cfg.EmbedProvider. Missing credentials surface as ErrMissingCredentials.
func NewEmbeddingProvider(ctx context.Context, cfg config.Config) (EmbeddingProvider, error) {
	switch cfg.EmbedProvider {
	case "openai", "azure":
		return NewOpenAIProvider(openAIConfig(cfg, cfg.EmbedProvider == "azure"))
	case "gemini":
		return NewGeminiProvider(ctx, GeminiConfig{APIKey: cfg.GeminiAPIKey, EmbedModel: cfg.EmbedModel})
	case "ollama":
		return NewOllamaEmbeddingProvider(cfg.OllamaBaseURL, cfg.EmbedModel), nil
	case "mock":
		return NewMockProvider(cfg.EmbedDim), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbedProvider)
	}
}

// NewLLMProvider builds the completion provider wrapped in the configured retry policy.
func NewLLMProvider(ctx context.Context, cfg config.Config) (LLMProvider, error) {
	var (
		p   LLMProvider
		err error
	)
	switch cfg.LLMProvider {
	case "", "mock":
		p = NewMockProvider(cfg.EmbedDim)
	case "openai", "azure":
		p, err = NewOpenAIProvider(openAIConfig(cfg, cfg.LLMProvider == "azure"))
	case "gemini":
		p, err = NewGeminiProvider(ctx, GeminiConfig{APIKey: cfg.GeminiAPIKey, ChatModel: cfg.LLMModel})
	default:
		err = fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
	if err != nil {
		return nil, err
	}
	return NewRetryingLLM(p, RetryPolicyFromConfig(cfg)), nil
}

func RetryPolicyFromConfig(cfg config.Config) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg.RetryAttempts > 0 {
		p.Attempts = cfg.RetryAttempts
	}
	if cfg.RetryBaseDelay > 0 {
		p.BaseDelay = cfg.RetryBaseDelay
	}
	return p
}

// openAIConfig builds the client config for one role; azure selects the
// deployment-style API for that role only.
func openAIConfig(cfg config.Config, azure bool) OpenAIConfig {
	oc := OpenAIConfig{
		BaseURL:    cfg.OpenAIBaseURL,
		APIKey:     cfg.OpenAIAPIKey,
		EmbedModel: cfg.EmbedModel,
		ChatModel:  cfg.LLMModel,
		Timeout:    cfg.LLMTimeout,
	}
	if azure {
		oc.AzureVersion = cfg.AzureVersion
		if oc.AzureVersion == "" {
			oc.AzureVersion = defaultAzureVersion
		}
	}
	return oc
}
