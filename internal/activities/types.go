package activities

import (
	"studyrag/internal/ingest"
	"studyrag/internal/models"
)

const (
	ExtractTextName      = "ExtractTextActivity"
	RegisterDocumentName = "RegisterDocumentActivity"
	PlanChunksName       = "PlanChunksActivity"
	StoreChunkName       = "StoreChunkActivity"

	// ErrTypeExtraction marks non-retryable extraction failures.
	ErrTypeExtraction = "ExtractionError"
)

type ExtractTextInput struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type ExtractTextOutput struct {
	Text      string `json:"text"`
	SizeBytes int64  `json:"size_bytes"`
}

type RegisterDocumentInput struct {
	Name      string           `json:"name"`
	SizeBytes int64            `json:"size_bytes"`
	Meta      models.ClassMeta `json:"meta"`
}

type RegisterDocumentOutput struct {
	DocumentID int64 `json:"document_id"`
}

type PlanChunksInput struct {
	Text string `json:"text"`
}

type PlanChunksOutput struct {
	Chunks []ingest.PlannedChunk `json:"chunks"`
}

type StoreChunkInput struct {
	DocumentID int64               `json:"document_id"`
	Chunk      ingest.PlannedChunk `json:"chunk"`
}

type StoreChunkOutput struct {
	ChunkID int64 `json:"chunk_id"`
}
