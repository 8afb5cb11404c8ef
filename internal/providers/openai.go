package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultSystemPrompt = "You are a patient study tutor. Answer only from the provided textbook context."

type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	EmbedModel string
	ChatModel  string
	// AzureVersion switches to Azure OpenAI: BaseURL is the resource endpoint,
	// models are deployment names and auth uses the api-key header.
	AzureVersion string
	Timeout      time.Duration
}

// OpenAIProvider speaks the OpenAI REST API or an Azure OpenAI deployment.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	name   string
	client *http.Client
}

func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingCredentials)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		if cfg.AzureVersion != "" {
			return nil, fmt.Errorf("azure openai endpoint: %w", ErrMissingCredentials)
		}
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "text-embedding-3-small"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	name := "openai"
	if cfg.AzureVersion != "" {
		name = "azure"
	}
	return &OpenAIProvider{cfg: cfg, name: name, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: o.name, Model: o.cfg.EmbedModel}
	body := map[string]any{"input": req.Inputs}
	if o.cfg.AzureVersion == "" {
		body["model"] = o.cfg.EmbedModel
	}
	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := o.post(ctx, o.endpoint("embeddings", o.cfg.EmbedModel), body, &parsed); err != nil {
		return nil, info, fmt.Errorf("%s embedding: %w", o.name, err)
	}
	out := make([][]float32, len(req.Inputs))
	for _, d := range parsed.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, info, fmt.Errorf("%s embedding: missing vector for input %d", o.name, i)
		}
	}
	return out, info, nil
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: o.name, Model: o.cfg.ChatModel}
	system := req.System
	if system == "" {
		system = defaultSystemPrompt
	}
	body := map[string]any{
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": req.Prompt},
		},
	}
	if o.cfg.AzureVersion == "" {
		body["model"] = o.cfg.ChatModel
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := o.post(ctx, o.endpoint("chat/completions", o.cfg.ChatModel), body, &parsed); err != nil {
		return GenerateResponse{}, info, fmt.Errorf("%s generate: %w", o.name, err)
	}
	if len(parsed.Choices) == 0 {
		return GenerateResponse{}, info, fmt.Errorf("%s returned empty choices", o.name)
	}
	return GenerateResponse{Text: strings.TrimSpace(parsed.Choices[0].Message.Content)}, info, nil
}

func (o *OpenAIProvider) endpoint(path, model string) string {
	if o.cfg.AzureVersion == "" {
		return o.cfg.BaseURL + "/" + path
	}
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		o.cfg.BaseURL, url.PathEscape(model), path, url.QueryEscape(o.cfg.AzureVersion))
}

func (o *OpenAIProvider) post(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.cfg.AzureVersion != "" {
		httpReq.Header.Set("api-key", o.cfg.APIKey)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &StatusError{Provider: o.name, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
