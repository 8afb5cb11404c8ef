package embedding

import (
	"context"
	"fmt"
	"strings"

	"studyrag/internal/providers"
	"studyrag/internal/vector"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	DefaultDimension = 1536

	// placeholder stands in for empty input, which providers reject.
	placeholder = " "
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]byte, error)
}

type Mode string

const (
	ModeReal     Mode = "real"
	ModeFallback Mode = "fallback"
)

// strategy is either realStrategy or fallbackStrategy. It is chosen once in
// NewGateway and never changes afterwards.
type strategy interface {
	mode() Mode
}

type realStrategy struct {
	provider providers.EmbeddingProvider
}

func (realStrategy) mode() Mode { return ModeReal }

type fallbackStrategy struct{}

func (fallbackStrategy) mode() Mode { return ModeFallback }

type Options struct {
	UseReal bool
	// Dim is the fallback vector dimension.
	Dim    int
	Policy providers.RetryPolicy
}

type ProviderFactory func(ctx context.Context) (providers.EmbeddingProvider, error)

// Gateway always returns an embedding: real-provider failures degrade to the
// deterministic fallback vector for that call.
type Gateway struct {
	strategy strategy
	dim      int
	policy   providers.RetryPolicy
}

func NewGateway(ctx context.Context, opts Options, build ProviderFactory) *Gateway {
	g := &Gateway{strategy: fallbackStrategy{}, dim: opts.Dim, policy: opts.Policy}
	if g.dim <= 0 {
		g.dim = DefaultDimension
	}
	if !opts.UseReal {
		return g
	}
	if build == nil {
		logutil.GetLogger(ctx).Warn("real embeddings requested without provider, using fallback")
		return g
	}
	p, err := build(ctx)
	if err != nil {
		logutil.GetLogger(ctx).Warn("real embeddings unavailable, using fallback", zap.Error(err))
		return g
	}
	g.strategy = realStrategy{provider: p}
	return g
}

func (g *Gateway) Mode() Mode {
	return g.strategy.mode()
}

func (g *Gateway) Embed(ctx context.Context, text string) ([]byte, error) {
	b, _, err := g.EmbedWithMode(ctx, text)
	return b, err
}

// EmbedWithMode also reports which strategy produced the bytes for this call.
func (g *Gateway) EmbedWithMode(ctx context.Context, text string) ([]byte, Mode, error) {
	if strings.TrimSpace(text) == "" {
		text = placeholder
	}
	if s, ok := g.strategy.(realStrategy); ok {
		vec, err := g.embedReal(ctx, s, text)
		if err == nil {
			b, err := vector.VectorToBytes(vec)
			return b, ModeReal, err
		}
		logutil.GetLogger(ctx).Warn("embedding fallback used", zap.Int("text_len", len(text)), zap.Error(err))
	}
	b, err := vector.VectorToBytes(FallbackVector(text, g.dim))
	return b, ModeFallback, err
}

func (g *Gateway) embedReal(ctx context.Context, s realStrategy, text string) ([]float32, error) {
	return providers.Retry(ctx, g.policy, "embed", func(ctx context.Context) ([]float32, error) {
		vecs, _, err := s.provider.Embed(ctx, providers.EmbedRequest{Operation: "embed", Inputs: []string{text}})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 || len(vecs[0]) == 0 {
			return nil, fmt.Errorf("provider returned no embedding")
		}
		if !vector.Finite(vecs[0]) {
			return nil, fmt.Errorf("provider returned non-finite embedding")
		}
		return vecs[0], nil
	})
}

// FallbackVector is the provider-free embedding used in fallback mode.
func FallbackVector(text string, dim int) []float32 {
	return providers.DeterministicVector(text, dim)
}
