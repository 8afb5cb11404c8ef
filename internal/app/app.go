// Package app wires configuration into the long-lived components shared by
// the api and worker binaries.
package app

import (
	"context"
	"fmt"

	"studyrag/internal/config"
	"studyrag/internal/embedding"
	"studyrag/internal/ingest"
	"studyrag/internal/providers"
	"studyrag/internal/rag"
	"studyrag/internal/source"
	"studyrag/internal/storage"
	"studyrag/internal/util"
	"studyrag/internal/vector"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

// LoadConfig reads an optional dotenv file, then the environment.
func LoadConfig(envFile string) config.Config {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}
	cfg := config.Load()
	logger.Init(cfg.LogFile, cfg.LogLevel, cfg.LogFileCount, cfg.LogFileSize, cfg.LogKeepDays, cfg.LogConsole)
	return cfg
}

type App struct {
	Cfg      config.Config
	Store    storage.Store
	Inbox    source.Inbox
	Embedder embedding.Embedder
}

// New opens the store (running migrations) and the inbox and builds the
// embedding gateway.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	inbox, err := source.New(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open inbox: %w", err)
	}
	gw := embedding.NewGateway(ctx, embedding.Options{
		UseReal: cfg.UseRealEmbeddings,
		Dim:     cfg.EmbedDim,
		Policy:  providers.RetryPolicyFromConfig(cfg),
	}, func(ctx context.Context) (providers.EmbeddingProvider, error) {
		return providers.NewEmbeddingProvider(ctx, cfg)
	})
	logutil.GetLogger(ctx).Info("app initialized",
		zap.String("store", cfg.StoreDriver),
		zap.String("inbox", cfg.InboxType),
		zap.Bool("real_embeddings", cfg.UseRealEmbeddings),
		zap.String("llm_provider", cfg.LLMProvider),
	)
	return &App{
		Cfg:      cfg,
		Store:    store,
		Inbox:    inbox,
		Embedder: embedding.NewCachedEmbedder(gw, cfg.QueryCacheSize, cfg.QueryCacheTTL),
	}, nil
}

func (a *App) Ingestor() *ingest.Ingestor {
	return ingest.NewIngestor(a.Store, a.Embedder, util.NewChunker(a.Cfg.ChunkMaxSize, a.Cfg.ChunkMinSize))
}

func (a *App) Orchestrator(ctx context.Context) (*rag.Orchestrator, error) {
	llm, err := providers.NewLLMProvider(ctx, a.Cfg)
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	return rag.NewOrchestrator(a.Embedder, vector.NewSearcher(a.Store), llm, a.Store), nil
}

func (a *App) DialTemporal() (client.Client, error) {
	return client.Dial(client.Options{HostPort: a.Cfg.TemporalAddress})
}

func (a *App) Close() error {
	return a.Store.Close()
}
