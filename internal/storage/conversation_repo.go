package storage

import (
	"context"
	"fmt"

	"studyrag/internal/models"
)

type ConversationRepo struct {
	db *DB
}

func NewConversationRepo(db *DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// ConversationHistory returns the last limit turns of a conversation in
// chronological order. A non-positive limit returns every turn.
func (r *ConversationRepo) ConversationHistory(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, conversation_id, role, content, chunk_ids, confidence, created_at
FROM (
  SELECT id, conversation_id, role, content, chunk_ids, confidence, created_at
  FROM conversation_turns
  WHERE conversation_id=$1
  ORDER BY id DESC
  LIMIT $2::int
) recent
ORDER BY id ASC`, conversationID, lim)
	if err != nil {
		return nil, fmt.Errorf("list conversation turns: %w", err)
	}
	defer rows.Close()
	out := make([]models.ConversationTurn, 0, 16)
	for rows.Next() {
		var (
			t        models.ConversationTurn
			role     string
			chunkIDs *string
		)
		if err := rows.Scan(&t.TurnID, &t.ConversationID, &role, &t.Content, &chunkIDs, &t.Confidence, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		t.Role = models.Role(role)
		if chunkIDs != nil {
			t.ChunkIDs = *chunkIDs
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation turns: %w", err)
	}
	return out, nil
}

func (r *ConversationRepo) AppendConversationTurn(ctx context.Context, t models.ConversationTurn) (int64, error) {
	var chunkIDs *string
	if t.ChunkIDs != "" {
		chunkIDs = &t.ChunkIDs
	}
	var id int64
	err := r.db.Pool.QueryRow(ctx, `
INSERT INTO conversation_turns (conversation_id, role, content, chunk_ids, confidence)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
		t.ConversationID, string(t.Role), t.Content, chunkIDs, t.Confidence,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append conversation turn: %w", err)
	}
	return id, nil
}
