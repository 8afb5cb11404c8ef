package storage

import (
	"context"
	"fmt"

	"studyrag/internal/models"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) InsertDocument(ctx context.Context, doc models.Document) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx, `
INSERT INTO documents (name, size_bytes, extension, class_name, subject, chapter)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`,
		doc.Name, doc.SizeBytes, doc.Extension, doc.Meta.Class, doc.Meta.Subject, doc.Meta.Chapter,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert document %s: %w", doc.Name, err)
	}
	return id, nil
}

func (r *DocumentRepo) HasDocument(ctx context.Context, name string) (bool, error) {
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE name=$1)`, name).Scan(&ok); err != nil {
		return false, fmt.Errorf("check document %s: %w", name, err)
	}
	return ok, nil
}
