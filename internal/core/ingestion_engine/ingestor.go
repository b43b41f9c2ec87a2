package ingestion_engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/nexbid/ragline/internal/core"
	"github.com/nexbid/ragline/internal/core/ocr"
	"github.com/nexbid/ragline/internal/models"
)

// Result status values returned to callers. A failed result still leaves a
// Document record behind (in models.StatusFailed) unless record creation
// itself failed.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// ErrNoBlob is returned when re-indexing a document that never completed a
// blob upload; there is nothing to rebuild from.
var ErrNoBlob = errors.New("document has no stored blob")

// IngestOptions are the inputs of one ingestion run. DocumentID switches the
// run into re-index mode: the existing record and blob are reused and no
// bytes are uploaded.
type IngestOptions struct {
	SourceType models.SourceType
	SourceID   string
	Category   models.Category
	FileName   string
	Content    []byte
	Text       string
	Metadata   map[string]string
	DocumentID string
}

// IngestionResult is the structured outcome every caller receives.
type IngestionResult struct {
	DocumentID    string `json:"document_id"`
	BlobURL       string `json:"blob_url,omitempty"`
	ChunksIndexed int    `json:"chunks_indexed"`
	TotalTokens   int    `json:"total_tokens"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

// Ingestor is the pipeline surface consumed by upstream handlers.
type Ingestor interface {
	Ingest(ctx context.Context, opts IngestOptions) (*IngestionResult, error)
	Reindex(ctx context.Context, documentID, text string) (*IngestionResult, error)
	Delete(ctx context.Context, documentID string) error
}

// DocumentIngestor drives the end-to-end pipeline: record creation, blob
// upload, OCR gating, chunking, embedding, indexing, chunk persistence,
// status finalization and compensating cleanup on failure.
//
// Lifecycle operations on the same document id are serialized within this
// process via a per-id mutex; callers spanning processes must serialize
// externally.
type DocumentIngestor struct {
	records   core.RecordStore
	objects   core.ObjectStore
	embedder  core.EmbeddingProvider
	index     core.SearchIndex
	chunker   core.Chunker
	extractor core.DocumentExtractor
	gate      *ocr.Gate

	cfg         IngestConfig
	refreshPool *ants.Pool
	locks       sync.Map // document id -> *sync.Mutex
	logger      *slog.Logger
}

var _ Ingestor = (*DocumentIngestor)(nil)

func NewDocumentIngestor(
	records core.RecordStore,
	objects core.ObjectStore,
	embedder core.EmbeddingProvider,
	index core.SearchIndex,
	chunker core.Chunker,
	extractor core.DocumentExtractor,
	gate *ocr.Gate,
	cfg *IngestConfig,
) (*DocumentIngestor, error) {
	resolved := cfg.withDefaults()

	pool, err := ants.NewPool(resolved.RefreshWorkers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	return &DocumentIngestor{
		records:     records,
		objects:     objects,
		embedder:    embedder,
		index:       index,
		chunker:     chunker,
		extractor:   extractor,
		gate:        gate,
		cfg:         resolved,
		refreshPool: pool,
		logger:      slog.Default().With("component", "ingestor"),
	}, nil
}

// Close releases the background refresh pool.
func (i *DocumentIngestor) Close() {
	if i.refreshPool != nil {
		i.refreshPool.Release()
	}
}

// lock serializes operations on one document id within this process.
// Returns the unlock func; a no-op for empty ids (fresh documents get a
// brand-new id and cannot contend).
func (i *DocumentIngestor) lock(documentID string) func() {
	if documentID == "" {
		return func() {}
	}
	v, _ := i.locks.LoadOrStore(documentID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
