package workflows

import "studyrag/internal/models"

type DocumentIngestInput struct {
	Key  string           `json:"key"`
	Name string           `json:"name,omitempty"`
	Meta models.ClassMeta `json:"meta"`
}

type IngestProgress struct {
	Key         string `json:"key"`
	DocumentID  int64  `json:"document_id"`
	CurrentStep string `json:"current_step"`
	Status      string `json:"status"`
	Total       int    `json:"total"`
	Stored      int    `json:"stored"`
	FailReason  string `json:"fail_reason,omitempty"`
}

const (
	StatusProcessing = "processing"
	StatusIngested   = "ingested"
	StatusFailed     = "failed"
)
