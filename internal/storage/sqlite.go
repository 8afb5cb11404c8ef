package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	"studyrag/internal/models"
	"studyrag/internal/util"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const sqlitePragmas = "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// SQLiteStore implements Store on a single sqlite file. Timestamps are unix
// milliseconds.
type SQLiteStore struct {
	db *sqlx.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := util.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	raw, err := sql.Open("sqlite", path+sqlitePragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows a single writer.
	raw.SetMaxOpenConns(1)
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLiteStore{db: sqlx.NewDb(raw, "sqlite")}, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	files, err := migrationFiles("migrations/sqlite")
	if err != nil {
		return err
	}
	for _, f := range files {
		content, err := fs.ReadFile(migrationFS, f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", f, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertDocument(ctx context.Context, doc models.Document) (int64, error) {
	data := map[string]interface{}{
		"name":       doc.Name,
		"size_bytes": doc.SizeBytes,
		"extension":  doc.Extension,
		"class_name": doc.Meta.Class,
		"subject":    doc.Meta.Subject,
		"chapter":    doc.Meta.Chapter,
		"created_at": nowMillis(),
	}
	id, err := insertRow(ctx, s.db, "documents", data)
	if err != nil {
		return 0, fmt.Errorf("insert document %s: %w", doc.Name, err)
	}
	return id, nil
}

func (s *SQLiteStore) HasDocument(ctx context.Context, name string) (bool, error) {
	where := map[string]interface{}{
		"name":   name,
		"_limit": []uint{0, 1},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, []string{"id"})
	if err != nil {
		return false, err
	}
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, sqlStr, args...); err != nil {
		return false, fmt.Errorf("check document %s: %w", name, err)
	}
	return len(ids) > 0, nil
}

func (s *SQLiteStore) InsertChunk(ctx context.Context, c models.Chunk) (int64, error) {
	return insertSQLiteChunk(ctx, s.db, c)
}

func (s *SQLiteStore) InsertEmbedding(ctx context.Context, chunkID int64, vec []byte) error {
	return insertSQLiteEmbedding(ctx, s.db, chunkID, vec)
}

func (s *SQLiteStore) InsertChunkWithEmbedding(ctx context.Context, c models.Chunk, vec []byte) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx insert chunk: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	id, err := insertSQLiteChunk(ctx, tx, c)
	if err != nil {
		return 0, err
	}
	if err := insertSQLiteEmbedding(ctx, tx, id, vec); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit chunk tx: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) ListCorpus(ctx context.Context) ([]models.CorpusChunk, error) {
	out := make([]models.CorpusChunk, 0, 256)
	err := s.db.SelectContext(ctx, &out, `
SELECT c.id AS chunk_id, c.document_id AS document_id, c.text AS text, e.vector AS vector
FROM chunks c
JOIN embeddings e ON e.chunk_id = c.id
ORDER BY c.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) InsertInteractionLog(ctx context.Context, l models.InteractionLog) error {
	data := map[string]interface{}{
		"question":   l.Question,
		"answer":     l.Answer,
		"chunk_ids":  l.ChunkIDs,
		"confidence": l.Confidence,
		"created_at": nowMillis(),
	}
	if _, err := insertRow(ctx, s.db, "interaction_logs", data); err != nil {
		return fmt.Errorf("insert interaction log: %w", err)
	}
	return nil
}

type turnRow struct {
	ID             int64           `db:"id"`
	ConversationID string          `db:"conversation_id"`
	Role           string          `db:"role"`
	Content        string          `db:"content"`
	ChunkIDs       sql.NullString  `db:"chunk_ids"`
	Confidence     sql.NullFloat64 `db:"confidence"`
	CreatedAt      int64           `db:"created_at"`
}

func (s *SQLiteStore) ConversationHistory(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error) {
	where := map[string]interface{}{
		"conversation_id": conversationID,
		"_orderby":        "id desc",
	}
	if limit > 0 {
		where["_limit"] = []uint{0, uint(limit)}
	}
	sqlStr, args, err := builder.BuildSelect("conversation_turns", where,
		[]string{"id", "conversation_id", "role", "content", "chunk_ids", "confidence", "created_at"})
	if err != nil {
		return nil, err
	}
	var rows []turnRow
	if err := s.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("list conversation turns: %w", err)
	}
	out := make([]models.ConversationTurn, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		t := models.ConversationTurn{
			TurnID:         r.ID,
			ConversationID: r.ConversationID,
			Role:           models.Role(r.Role),
			Content:        r.Content,
			ChunkIDs:       r.ChunkIDs.String,
			CreatedAt:      time.UnixMilli(r.CreatedAt),
		}
		if r.Confidence.Valid {
			c := r.Confidence.Float64
			t.Confidence = &c
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *SQLiteStore) AppendConversationTurn(ctx context.Context, t models.ConversationTurn) (int64, error) {
	data := map[string]interface{}{
		"conversation_id": t.ConversationID,
		"role":            string(t.Role),
		"content":         t.Content,
		"created_at":      nowMillis(),
	}
	if t.ChunkIDs != "" {
		data["chunk_ids"] = t.ChunkIDs
	}
	if t.Confidence != nil {
		data["confidence"] = *t.Confidence
	}
	id, err := insertRow(ctx, s.db, "conversation_turns", data)
	if err != nil {
		return 0, fmt.Errorf("append conversation turn: %w", err)
	}
	return id, nil
}

func insertSQLiteChunk(ctx context.Context, ex sqlx.ExecerContext, c models.Chunk) (int64, error) {
	kind := c.Kind
	if kind == "" {
		kind = models.ChunkKindText
	}
	data := map[string]interface{}{
		"document_id": c.DocumentID,
		"chunk_index": c.ChunkIndex,
		"title":       c.Title,
		"summary":     c.Summary,
		"text":        c.Text,
		"token_count": c.TokenCount,
		"page_from":   c.PageFrom,
		"page_to":     c.PageTo,
		"kind":        kind,
		"created_at":  nowMillis(),
	}
	id, err := insertRow(ctx, ex, "chunks", data)
	if err != nil {
		return 0, fmt.Errorf("insert chunk %d of document %d: %w", c.ChunkIndex, c.DocumentID, err)
	}
	return id, nil
}

func insertSQLiteEmbedding(ctx context.Context, ex sqlx.ExecerContext, chunkID int64, vec []byte) error {
	data := map[string]interface{}{
		"chunk_id":   chunkID,
		"vector":     vec,
		"created_at": nowMillis(),
	}
	if _, err := insertRow(ctx, ex, "embeddings", data); err != nil {
		return fmt.Errorf("insert embedding for chunk %d: %w", chunkID, err)
	}
	return nil
}

func insertRow(ctx context.Context, ex sqlx.ExecerContext, table string, data map[string]interface{}) (int64, error) {
	sqlStr, args, err := builder.BuildInsert(table, []map[string]interface{}{data})
	if err != nil {
		return 0, err
	}
	res, err := ex.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
