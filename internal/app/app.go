// Package app wires configuration into a ready-to-use service: store backend,
// Gemini client, retriever, composer, orchestrator and ingestion pipeline.
// Every entry point (API server, ingest CLI, demo) builds through here.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jpcarvalho/askdocs/internal/config"
	"github.com/jpcarvalho/askdocs/internal/db"
	"github.com/jpcarvalho/askdocs/internal/llm"
	"github.com/jpcarvalho/askdocs/internal/rag"
	"github.com/jpcarvalho/askdocs/internal/store"
)

// App bundles the built components plus a Close that releases the store
// connection.
type App struct {
	Service  *rag.Service
	Pipeline *rag.Pipeline
	Store    rag.Store
	Close    func()
}

// Build validates cfg, connects the configured store backend, ensures both
// modality collections exist and assembles the RAG components.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	vectorStore, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	metric := rag.Metric(cfg.Metric)
	collections := []rag.CollectionSchema{
		{Name: cfg.TextCollection, Modality: rag.ModalityText, Dimensions: cfg.TextDimensions, Metric: metric},
		{Name: cfg.ImageCollection, Modality: rag.ModalityImage, Dimensions: cfg.ImageDimensions, Metric: metric},
	}
	for _, schema := range collections {
		if err := vectorStore.EnsureCollection(ctx, schema); err != nil {
			closeStore()
			return nil, fmt.Errorf("ensure collection %q: %w", schema.Name, err)
		}
	}

	gemini, err := llm.NewGeminiClient(ctx, llm.Config{
		APIKey:              cfg.GeminiAPIKey,
		EmbeddingModel:      cfg.EmbeddingModel,
		ImageEmbeddingModel: cfg.ImageEmbeddingModel,
		ChatModel:           cfg.ChatModel,
		TextDimensions:      cfg.TextDimensions,
		ImageDimensions:     cfg.ImageDimensions,
	})
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("init gemini client: %w", err)
	}

	retriever := rag.NewRetriever(vectorStore, gemini, cfg.TopK, cfg.SimilarityFloor, logger)
	composer := rag.NewComposer(cfg.ContextBudget)
	service := rag.NewService(retriever, composer, gemini, cfg.FragmentTimeout, logger)

	pipeline, err := rag.NewPipeline(vectorStore, gemini, rag.ChunkingConfig{
		Window:  cfg.ChunkWindow,
		Overlap: cfg.ChunkOverlap,
	}, logger)
	if err != nil {
		closeStore()
		return nil, err
	}

	return &App{
		Service:  service,
		Pipeline: pipeline,
		Store:    vectorStore,
		Close:    closeStore,
	}, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (rag.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgres(pool), pool.Close, nil

	case config.BackendQdrant:
		q, err := store.NewQdrant(cfg.QdrantHost, cfg.QdrantPort)
		if err != nil {
			return nil, nil, err
		}
		return q, func() { _ = q.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
