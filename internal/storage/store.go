package storage

import (
	"context"
	"fmt"

	"studyrag/internal/config"
	"studyrag/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store is the persistence contract shared by the postgres and sqlite backends.
type Store interface {
	InsertDocument(ctx context.Context, doc models.Document) (int64, error)
	HasDocument(ctx context.Context, name string) (bool, error)
	InsertChunk(ctx context.Context, c models.Chunk) (int64, error)
	InsertEmbedding(ctx context.Context, chunkID int64, vec []byte) error
	InsertChunkWithEmbedding(ctx context.Context, c models.Chunk, vec []byte) (int64, error)
	ListCorpus(ctx context.Context) ([]models.CorpusChunk, error)
	InsertInteractionLog(ctx context.Context, l models.InteractionLog) error
	ConversationHistory(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error)
	AppendConversationTurn(ctx context.Context, t models.ConversationTurn) (int64, error)
	Migrate(ctx context.Context) error
	Close() error
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres groups the pgx repos behind the Store contract.
type Postgres struct {
	*DB
	*DocumentRepo
	*ChunkRepo
	*InteractionRepo
	*ConversationRepo
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := NewDB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Postgres{
		DB:               db,
		DocumentRepo:     NewDocumentRepo(db),
		ChunkRepo:        NewChunkRepo(db),
		InteractionRepo:  NewInteractionRepo(db),
		ConversationRepo: NewConversationRepo(db),
	}, nil
}

// Open builds the store selected by cfg.StoreDriver and applies migrations.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.StoreDriver {
	case "postgres", "pg":
		st, err = NewPostgres(ctx, cfg.PostgresURL)
	case "sqlite", "":
		st, err = NewSQLiteStore(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
