package storage

import (
	"context"
	"fmt"

	"studyrag/internal/models"
)

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) InsertChunk(ctx context.Context, c models.Chunk) (int64, error) {
	return insertChunk(ctx, r.db.Pool, c)
}

func (r *ChunkRepo) InsertEmbedding(ctx context.Context, chunkID int64, vec []byte) error {
	return insertEmbedding(ctx, r.db.Pool, chunkID, vec)
}

// InsertChunkWithEmbedding writes the chunk row and its embedding row in one
// transaction so a chunk never exists without a vector.
func (r *ChunkRepo) InsertChunkWithEmbedding(ctx context.Context, c models.Chunk, vec []byte) (int64, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx insert chunk: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	id, err := insertChunk(ctx, tx, c)
	if err != nil {
		return 0, err
	}
	if err := insertEmbedding(ctx, tx, id, vec); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit chunk tx: %w", err)
	}
	return id, nil
}

func (r *ChunkRepo) ListCorpus(ctx context.Context) ([]models.CorpusChunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT c.id, c.document_id, c.text, e.vector
FROM chunks c
JOIN embeddings e ON e.chunk_id = c.id
ORDER BY c.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}
	defer rows.Close()
	out := make([]models.CorpusChunk, 0, 256)
	for rows.Next() {
		var c models.CorpusChunk
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Text, &c.Embedding); err != nil {
			return nil, fmt.Errorf("scan corpus chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corpus: %w", err)
	}
	return out, nil
}

func insertChunk(ctx context.Context, q querier, c models.Chunk) (int64, error) {
	kind := c.Kind
	if kind == "" {
		kind = models.ChunkKindText
	}
	var id int64
	err := q.QueryRow(ctx, `
INSERT INTO chunks (document_id, chunk_index, title, summary, text, token_count, page_from, page_to, kind)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`,
		c.DocumentID, c.ChunkIndex, c.Title, c.Summary, c.Text, c.TokenCount, c.PageFrom, c.PageTo, kind,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert chunk %d of document %d: %w", c.ChunkIndex, c.DocumentID, err)
	}
	return id, nil
}

func insertEmbedding(ctx context.Context, q querier, chunkID int64, vec []byte) error {
	if _, err := q.Exec(ctx, `INSERT INTO embeddings (chunk_id, vector) VALUES ($1, $2)`, chunkID, vec); err != nil {
		return fmt.Errorf("insert embedding for chunk %d: %w", chunkID, err)
	}
	return nil
}
