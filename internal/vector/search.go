package vector

import (
	"context"
	"fmt"
	"sort"

	"studyrag/internal/models"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type CorpusReader interface {
	ListCorpus(ctx context.Context) ([]models.CorpusChunk, error)
}

type Searcher struct {
	corpus CorpusReader
}

func NewSearcher(corpus CorpusReader) *Searcher {
	return &Searcher{corpus: corpus}
}

// Search loads the full corpus and ranks it by brute force.
func (s *Searcher) Search(ctx context.Context, query []byte, topK int) ([]models.SearchResultChunk, error) {
	corpus, err := s.corpus.ListCorpus(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	return TopK(ctx, query, corpus, topK)
}

// TopK scores every record against query and returns up to k of them,
// highest first. Records whose embedding cannot be scored get 0 and stay in
// the ranking. Equal scores keep corpus order.
func TopK(ctx context.Context, query []byte, corpus []models.CorpusChunk, k int) ([]models.SearchResultChunk, error) {
	if len(corpus) == 0 || k <= 0 {
		return []models.SearchResultChunk{}, nil
	}
	queryVec, err := BytesToVector(query)
	if err != nil {
		return nil, fmt.Errorf("decode query embedding: %w", err)
	}

	results := make([]models.SearchResultChunk, 0, len(corpus))
	skipped := 0
	for _, c := range corpus {
		results = append(results, models.SearchResultChunk{CorpusChunk: c, Score: score(queryVec, c.Embedding, &skipped)})
	}
	if skipped > 0 {
		logutil.GetLogger(ctx).Warn("corpus records scored as zero",
			zap.Int("count", skipped), zap.Int("corpus_size", len(corpus)))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func score(query []float32, raw []byte, skipped *int) float64 {
	vec, err := BytesToVector(raw)
	if err != nil {
		*skipped++
		return 0
	}
	sim, err := CosineSimilarity(query, vec)
	if err != nil {
		*skipped++
		return 0
	}
	return sim
}
