package storage

import (
	"context"
	"fmt"

	"studyrag/internal/models"
)

// InteractionRepo records answered questions for later review.
type InteractionRepo struct {
	db *DB
}

func NewInteractionRepo(db *DB) *InteractionRepo {
	return &InteractionRepo{db: db}
}

func (r *InteractionRepo) InsertInteractionLog(ctx context.Context, l models.InteractionLog) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO interaction_logs (question, answer, chunk_ids, confidence)
VALUES ($1, $2, $3, $4)`,
		l.Question, l.Answer, l.ChunkIDs, l.Confidence,
	)
	if err != nil {
		return fmt.Errorf("insert interaction log: %w", err)
	}
	return nil
}
