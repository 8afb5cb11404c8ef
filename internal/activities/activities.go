package activities

import (
	"context"
	"errors"
	"fmt"

	"studyrag/internal/extract"
	"studyrag/internal/ingest"
	"studyrag/internal/source"

	"github.com/xxxsen/common/logutil"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

// Activities wraps the ingestion steps so each runs as its own Temporal activity.
type Activities struct {
	inbox    source.Inbox
	ingestor *ingest.Ingestor
}

func New(inbox source.Inbox, ingestor *ingest.Ingestor) *Activities {
	return &Activities{inbox: inbox, ingestor: ingestor}
}

// ExtractTextActivity reads the inbox object and extracts its text. Bad or
// unsupported files fail without retry.
func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	data, err := source.ReadAll(ctx, a.inbox, in.Key)
	if err != nil {
		return ExtractTextOutput{}, err
	}
	name := in.Name
	if name == "" {
		name = in.Key
	}
	text, err := extract.Extract(name, data)
	if err != nil {
		if errors.Is(err, extract.ErrExtraction) {
			logutil.GetLogger(ctx).Warn("extract text failed", zap.String("key", in.Key), zap.Error(err))
			return ExtractTextOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeExtraction, err)
		}
		return ExtractTextOutput{}, err
	}
	return ExtractTextOutput{Text: text, SizeBytes: int64(len(data))}, nil
}

func (a *Activities) RegisterDocumentActivity(ctx context.Context, in RegisterDocumentInput) (RegisterDocumentOutput, error) {
	id, err := a.ingestor.RegisterDocument(ctx, in.Name, in.SizeBytes, in.Meta)
	if err != nil {
		return RegisterDocumentOutput{}, err
	}
	return RegisterDocumentOutput{DocumentID: id}, nil
}

func (a *Activities) PlanChunksActivity(ctx context.Context, in PlanChunksInput) (PlanChunksOutput, error) {
	_ = ctx
	return PlanChunksOutput{Chunks: ingest.Plan(in.Text, a.ingestor.Chunker())}, nil
}

func (a *Activities) StoreChunkActivity(ctx context.Context, in StoreChunkInput) (StoreChunkOutput, error) {
	if in.DocumentID <= 0 {
		return StoreChunkOutput{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("invalid document id %d", in.DocumentID), "InvalidInput", nil)
	}
	id, err := a.ingestor.StoreChunk(ctx, in.DocumentID, in.Chunk)
	if err != nil {
		return StoreChunkOutput{}, err
	}
	return StoreChunkOutput{ChunkID: id}, nil
}
