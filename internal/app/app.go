package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nexbid/ragline/internal/config"
	"github.com/nexbid/ragline/internal/core"
	"github.com/nexbid/ragline/internal/core/chunker"
	db "github.com/nexbid/ragline/internal/core/database"
	"github.com/nexbid/ragline/internal/core/ingestion_engine"
	"github.com/nexbid/ragline/internal/core/llm"
	objectclient "github.com/nexbid/ragline/internal/core/object-client"
	"github.com/nexbid/ragline/internal/core/ocr"
	searchclient "github.com/nexbid/ragline/internal/core/search-client"
)

// App wires config into the collaborator clients and the ingestor.
type App struct {
	Records  core.RecordStore
	Objects  core.ObjectStore
	Index    core.SearchIndex
	Ingestor *ingestion_engine.DocumentIngestor
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	records, err := db.NewDatabaseClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database client: %w", err)
	}
	slog.Info("database initialized and ready")

	objects, err := newObjectStore(ctx, cfg)
	if err != nil {
		_ = records.Close()
		return nil, err
	}

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		_ = records.Close()
		return nil, err
	}

	index, err := newSearchIndex(cfg, records)
	if err != nil {
		_ = records.Close()
		return nil, err
	}

	gate := ocr.NewGate(index, cfg.OCRPollInterval, cfg.OCRTimeout)
	sectionChunker := chunker.NewSectionChunker(cfg.ChunkTargetTokens, cfg.ChunkOverlap)
	extractor := ingestion_engine.NewDocconvExtractor(false)

	ingestor, err := ingestion_engine.NewDocumentIngestor(
		records, objects, embedder, index, sectionChunker, extractor, gate,
		&ingestion_engine.IngestConfig{
			EmbedBatchSize: cfg.EmbedBatchSize,
			IndexBatchSize: cfg.IndexBatchSize,
		},
	)
	if err != nil {
		_ = records.Close()
		return nil, fmt.Errorf("ingestor: %w", err)
	}

	return &App{
		Records:  records,
		Objects:  objects,
		Index:    index,
		Ingestor: ingestor,
	}, nil
}

func (a *App) Close() {
	if a.Ingestor != nil {
		a.Ingestor.Close()
	}
	if a.Records != nil {
		_ = a.Records.Close()
	}
}

func newObjectStore(ctx context.Context, cfg *config.Config) (core.ObjectStore, error) {
	switch cfg.ObjectStore {
	case "minio":
		return objectclient.NewMinioClient(ctx, cfg)
	case "s3", "":
		return objectclient.NewS3Client(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown OBJECT_STORE %q", cfg.ObjectStore)
	}
}

func newEmbedder(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	switch cfg.Embedder {
	case "openai":
		return llm.NewOpenAIEmbedder(cfg.OpenAIHost, cfg.OpenAIModel)
	case "gemini", "":
		return llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel)
	default:
		return nil, fmt.Errorf("unknown EMBEDDER %q", cfg.Embedder)
	}
}

func newSearchIndex(cfg *config.Config, records core.RecordStore) (core.SearchIndex, error) {
	switch cfg.SearchIndex {
	case "memory":
		return searchclient.NewMemoryIndex(cfg.SearchIndexName)
	case "pgvector", "":
		client, ok := records.(*db.DatabaseClient)
		if !ok {
			return nil, fmt.Errorf("pgvector index requires the Postgres record store")
		}
		return searchclient.NewPgVectorIndex(client.DB(), cfg.SearchIndexName), nil
	default:
		return nil, fmt.Errorf("unknown SEARCH_INDEX %q", cfg.SearchIndex)
	}
}
