package ingest

import (
	"context"
	"fmt"
	"time"

	"studyrag/internal/embedding"
	"studyrag/internal/extract"
	"studyrag/internal/models"
	"studyrag/internal/util"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Store is the subset of storage.Store that ingestion writes to.
type Store interface {
	InsertDocument(ctx context.Context, doc models.Document) (int64, error)
	InsertChunkWithEmbedding(ctx context.Context, c models.Chunk, vec []byte) (int64, error)
}

type Input struct {
	Name string
	Data []byte
	Meta models.ClassMeta
}

type Result struct {
	DocumentID int64
	ChunkIDs   []int64
}

type Ingestor struct {
	store    Store
	embedder embedding.Embedder
	chunker  util.Chunker
}

func NewIngestor(store Store, embedder embedding.Embedder, chunker util.Chunker) *Ingestor {
	return &Ingestor{store: store, embedder: embedder, chunker: chunker}
}

func (in *Ingestor) Chunker() util.Chunker {
	return in.chunker
}

// Ingest runs a whole document through extract, register, plan and store.
// Chunks are embedded and stored one at a time in index order.
func (in *Ingestor) Ingest(ctx context.Context, input Input) (Result, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("document", input.Name))
	start := time.Now()

	text, err := extract.Extract(input.Name, input.Data)
	if err != nil {
		return Result{}, err
	}
	docID, err := in.RegisterDocument(ctx, input.Name, int64(len(input.Data)), input.Meta)
	if err != nil {
		return Result{}, err
	}
	planned := Plan(text, in.chunker)
	ids := make([]int64, 0, len(planned))
	for _, pc := range planned {
		id, err := in.StoreChunk(ctx, docID, pc)
		if err != nil {
			return Result{DocumentID: docID, ChunkIDs: ids}, err
		}
		ids = append(ids, id)
	}
	logger.Info("document ingested",
		zap.Int64("document_id", docID),
		zap.Int("chunks", len(ids)),
		zap.Duration("took", time.Since(start)),
	)
	return Result{DocumentID: docID, ChunkIDs: ids}, nil
}

func (in *Ingestor) RegisterDocument(ctx context.Context, name string, size int64, meta models.ClassMeta) (int64, error) {
	id, err := in.store.InsertDocument(ctx, models.Document{
		Name:      name,
		SizeBytes: size,
		Extension: extract.Ext(name),
		Meta:      meta,
	})
	if err != nil {
		return 0, fmt.Errorf("register document: %w", err)
	}
	return id, nil
}

// StoreChunk embeds one planned chunk and persists it with its vector.
func (in *Ingestor) StoreChunk(ctx context.Context, documentID int64, pc PlannedChunk) (int64, error) {
	vec, err := in.embedder.Embed(ctx, pc.Text)
	if err != nil {
		return 0, fmt.Errorf("embed chunk %d: %w", pc.Index, err)
	}
	id, err := in.store.InsertChunkWithEmbedding(ctx, pc.Chunk(documentID), vec)
	if err != nil {
		return 0, fmt.Errorf("store chunk %d: %w", pc.Index, err)
	}
	return id, nil
}
