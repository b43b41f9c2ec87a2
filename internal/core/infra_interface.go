package core

import (
	"context"
	"time"

	"github.com/nexbid/ragline/internal/models"
)

// RecordStore defines all persistence operations the pipeline needs.
// It abstracts Postgres so higher layers never depend on a specific DB.
// Implementations must guarantee per-document atomic reads and writes;
// callers must serialize concurrent lifecycle operations on the same
// document id themselves.
type RecordStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	UpdateDocument(ctx context.Context, doc *models.Document) error
	UpdateDocumentStatus(ctx context.Context, id string, status string) error
	DeleteDocument(ctx context.Context, id string) error

	InsertChunks(ctx context.Context, chunks []models.DocumentChunk) error
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID string) error

	Close() error
}

// ObjectInfo identifies a stored blob.
type ObjectInfo struct {
	URL  string
	Name string
}

// ObjectStore defines interactions with S3, MinIO or any object storage.
// Metadata values must already be transport-safe (see SanitizeMetadata in
// the object client package) before crossing this boundary.
type ObjectStore interface {
	Upload(ctx context.Context, name string, data []byte, metadata map[string]string) (ObjectInfo, error)
	Download(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// IndexDocument is one entry in the search index, addressed by the
// deterministic search chunk id.
type IndexDocument struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Content    string            `json:"content"`
	Embedding  []float32         `json:"embedding"`
	Category   models.Category   `json:"category"`
	FileName   string            `json:"file_name"`
	ChunkIndex int               `json:"chunk_index"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// IndexHit is one search result.
type IndexHit struct {
	ID      string
	Content string
	Score   float64
}

// SearchIndex defines the vector+text index the pipeline writes to.
// FindMergedText reads the OCR staging index and returns (text, true) when
// an enriched merge exists for the given bare file name; RunIndexer triggers
// an asynchronous refresh cycle on indexes that have one.
type SearchIndex interface {
	Upsert(ctx context.Context, docs []IndexDocument) error
	Delete(ctx context.Context, ids []string) error
	Query(ctx context.Context, vector []float32, text string, limit int) ([]IndexHit, error)
	FindMergedText(ctx context.Context, fileName string) (string, bool, error)
	RunIndexer(ctx context.Context) error
	Name() string
}
