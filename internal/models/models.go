package models

import "time"

const ChunkKindText = "text"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ClassMeta struct {
	Class   string `json:"class,omitempty"`
	Subject string `json:"subject,omitempty"`
	Chapter string `json:"chapter,omitempty"`
}

type Document struct {
	DocumentID int64     `json:"document_id"`
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	Extension  string    `json:"extension"`
	Meta       ClassMeta `json:"meta"`
	CreatedAt  time.Time `json:"created_at"`
}

type Chunk struct {
	ChunkID    int64     `json:"chunk_id"`
	DocumentID int64     `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	Text       string    `json:"text"`
	TokenCount int       `json:"token_count"`
	PageFrom   int       `json:"page_from"`
	PageTo     int       `json:"page_to"`
	Kind       string    `json:"kind"`
	CreatedAt  time.Time `json:"created_at"`
}

// CorpusChunk is one row of the retrieval corpus: a chunk joined with its embedding bytes.
type CorpusChunk struct {
	ChunkID    int64  `json:"chunk_id" db:"chunk_id"`
	DocumentID int64  `json:"document_id" db:"document_id"`
	Text       string `json:"text" db:"text"`
	Embedding  []byte `json:"-" db:"vector"`
}

// SearchResultChunk lives only for the duration of one retrieval call.
type SearchResultChunk struct {
	CorpusChunk
	Score float64 `json:"score"`
}

type InteractionLog struct {
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	ChunkIDs   string  `json:"chunk_ids"`
	Confidence float64 `json:"confidence"`
}

type ConversationTurn struct {
	TurnID         int64     `json:"turn_id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	ChunkIDs       string    `json:"chunk_ids,omitempty"`
	Confidence     *float64  `json:"confidence,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
