package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// MockProvider answers without any network access. Embeddings come from
// DeterministicVector; completions are canned text keyed by operation.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 1536
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, DeterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim)}, nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	op := strings.ToLower(req.Operation)
	text := "Mock response."
	switch {
	case strings.Contains(op, "notes"):
		text = "- Mock study note grounded in the supplied context.\n- Replace the mock provider for real notes."
	case strings.Contains(op, "ask"), strings.Contains(op, "chat"):
		text = "Mock answer based on the supplied context."
	}
	return GenerateResponse{Text: text}, ProviderInfo{Name: "mock", Model: "mock-llm-v1"}, nil
}

// DeterministicVector expands sha256(text) into dim values in [-1, 1].
// The same text always yields the same vector.
func DeterministicVector(text string, dim int) []float32 {
	if dim <= 0 {
		dim = 1536
	}
	seed := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)
	var block [sha256.Size]byte
	var counter [8]byte
	for i := 0; i < dim; i++ {
		slot := i % (sha256.Size / 4)
		if slot == 0 {
			binary.BigEndian.PutUint64(counter[:], uint64(i/(sha256.Size/4)))
			block = sha256.Sum256(append(seed[:], counter[:]...))
		}
		u := binary.BigEndian.Uint32(block[slot*4:])
		vec[i] = float32(float64(u)/math.MaxUint32*2 - 1)
	}
	return vec
}
