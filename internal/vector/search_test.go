package vector

import (
	"context"
	"errors"
	"math"
	"testing"

	"studyrag/internal/models"

	"github.com/stretchr/testify/require"
)

func mustBytes(t *testing.T, v []float32) []byte {
	t.Helper()
	b, err := VectorToBytes(v)
	require.NoError(t, err)
	return b
}

// unitAt returns a 2-d unit vector whose cosine against (1, 0) is s.
func unitAt(s float64) []float32 {
	return []float32{float32(s), float32(math.Sqrt(1 - s*s))}
}

func corpusWithScores(t *testing.T, scores ...float64) []models.CorpusChunk {
	out := make([]models.CorpusChunk, 0, len(scores))
	for i, s := range scores {
		out = append(out, models.CorpusChunk{ChunkID: int64(i + 1), DocumentID: 7, Text: "chunk", Embedding: mustBytes(t, unitAt(s))})
	}
	return out
}

func TestTopKOrdersByScoreAndKeepsTieOrder(t *testing.T) {
	query := mustBytes(t, []float32{1, 0})
	corpus := corpusWithScores(t, 0.9, 0.1, 0.5, 0.9, 0.3)

	got, err := TopK(context.Background(), query, corpus, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []int64{1, 4, 3}, []int64{got[0].ChunkID, got[1].ChunkID, got[2].ChunkID})
	require.InDelta(t, 0.9, got[0].Score, 1e-6)
	require.InDelta(t, 0.9, got[1].Score, 1e-6)
	require.InDelta(t, 0.5, got[2].Score, 1e-6)
}

func TestTopKResultNeverIncreases(t *testing.T) {
	query := mustBytes(t, []float32{1, 0})
	corpus := corpusWithScores(t, 0.2, 0.8, -0.4, 0.6, 0.1, 0.95, 0)

	got, err := TopK(context.Background(), query, corpus, 10)
	require.NoError(t, err)
	require.Len(t, got, len(corpus))
	for i := 1; i < len(got); i++ {
		require.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestTopKEmptyCorpus(t *testing.T) {
	got, err := TopK(context.Background(), mustBytes(t, []float32{1}), nil, 5)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestTopKIsolatesBrokenRecords(t *testing.T) {
	query := mustBytes(t, []float32{1, 0})
	corpus := corpusWithScores(t, 0.4, 0.7)
	corpus = append(corpus,
		models.CorpusChunk{ChunkID: 10, Embedding: []byte{1, 2, 3}},
		models.CorpusChunk{ChunkID: 11, Embedding: mustBytes(t, []float32{1, 0, 0})},
	)

	got, err := TopK(context.Background(), query, corpus, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)
	require.Equal(t, int64(2), got[0].ChunkID)
	require.Equal(t, int64(1), got[1].ChunkID)
	require.Equal(t, 0.0, got[2].Score)
	require.Equal(t, 0.0, got[3].Score)
}

func TestTopKScoresNonFiniteRecordsAsZero(t *testing.T) {
	query := mustBytes(t, []float32{1, 0})
	corpus := []models.CorpusChunk{
		{ChunkID: 1, Embedding: mustBytes(t, []float32{0.1, 1})},
		{ChunkID: 2, Embedding: mustBytes(t, []float32{float32(math.NaN()), 1})},
		{ChunkID: 3, Embedding: mustBytes(t, []float32{1, 0.01})},
		{ChunkID: 4, Embedding: mustBytes(t, []float32{float32(math.Inf(1)), 1})},
	}

	got, err := TopK(context.Background(), query, corpus, 4)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 1, 2, 4}, []int64{got[0].ChunkID, got[1].ChunkID, got[2].ChunkID, got[3].ChunkID})
	for _, r := range got {
		require.False(t, math.IsNaN(r.Score))
	}
	require.Equal(t, 0.0, got[2].Score)
	require.Equal(t, 0.0, got[3].Score)
}

func TestTopKRejectsBadQuery(t *testing.T) {
	_, err := TopK(context.Background(), []byte{1}, corpusWithScores(t, 0.5), 1)
	require.ErrorIs(t, err, ErrEncoding)
}

type stubCorpus struct {
	rows []models.CorpusChunk
	err  error
}

func (s stubCorpus) ListCorpus(context.Context) ([]models.CorpusChunk, error) {
	return s.rows, s.err
}

func TestSearcherSearch(t *testing.T) {
	s := NewSearcher(stubCorpus{rows: corpusWithScores(t, 0.1, 0.3)})
	got, err := s.Search(context.Background(), mustBytes(t, []float32{1, 0}), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(2), got[0].ChunkID)

	failing := NewSearcher(stubCorpus{err: errors.New("db down")})
	_, err = failing.Search(context.Background(), mustBytes(t, []float32{1, 0}), 1)
	require.Error(t, err)
}
