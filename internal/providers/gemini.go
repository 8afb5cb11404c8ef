package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type GeminiConfig struct {
	APIKey     string
	EmbedModel string
	ChatModel  string
	Dimension  int
}

// GeminiProvider calls the Gemini API through one shared genai client.
type GeminiProvider struct {
	client *genai.Client
	cfg    GeminiConfig
}

func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingCredentials)
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "gemini-embedding-001"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, cfg: cfg}, nil
}

func (g *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.cfg.EmbedModel}
	contents := make([]*genai.Content, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: in}}})
	}
	var config *genai.EmbedContentConfig
	dim := req.Dimension
	if dim <= 0 {
		dim = g.cfg.Dimension
	}
	if dim > 0 {
		d := int32(dim)
		config = &genai.EmbedContentConfig{OutputDimensionality: &d}
	}
	resp, err := g.client.Models.EmbedContent(ctx, g.cfg.EmbedModel, contents, config)
	if err != nil {
		return nil, info, fmt.Errorf("gemini embedding: %w", asStatusError(err))
	}
	if len(resp.Embeddings) != len(req.Inputs) {
		return nil, info, fmt.Errorf("gemini embedding: got %d vectors for %d inputs", len(resp.Embeddings), len(req.Inputs))
	}
	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	return out, info, nil
}

func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.cfg.ChatModel}
	system := req.System
	if system == "" {
		system = defaultSystemPrompt
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.ChatModel,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}}, config)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("gemini generate: %w", asStatusError(err))
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return GenerateResponse{}, info, fmt.Errorf("gemini returned empty text")
	}
	return GenerateResponse{Text: text}, info, nil
}

// asStatusError lifts genai API errors into StatusError so retries see the HTTP code.
func asStatusError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "gemini", StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return err
}
