package models

import (
	"fmt"
	"time"
)

// SourceType classifies where a document came from.
type SourceType string

const (
	SourceStandard    SourceType = "standard"
	SourceProposal    SourceType = "proposal"
	SourceRequirement SourceType = "requirement"
	SourceFeedA       SourceType = "external-feed-a"
	SourceFeedB       SourceType = "external-feed-b"
)

// Category partitions blob storage paths and access filtering.
// Documents without an explicit category land in the shared bucket.
type Category string

const CategoryShared Category = "shared"

// Document status values. A document is created in StatusProcessing before
// any external I/O, moves to StatusIndexed on success and StatusFailed on
// any pipeline failure. Failed documents are kept for diagnostics and can be
// retried via re-index, which re-enters StatusProcessing.
const (
	StatusProcessing = "processing"
	StatusIndexed    = "indexed"
	StatusFailed     = "failed"
)

// Document is the unit of ingestion.
type Document struct {
	ID          string            `db:"id" json:"id"`
	SourceType  SourceType        `db:"source_type" json:"source_type"`
	SourceID    string            `db:"source_id" json:"source_id,omitempty"` // lookup back-reference, not ownership
	Category    Category          `db:"category" json:"category"`
	FileName    string            `db:"file_name" json:"file_name"`
	BlobName    string            `db:"blob_name" json:"blob_name,omitempty"` // empty until upload succeeds
	BlobURL     string            `db:"blob_url" json:"blob_url,omitempty"`
	SearchDocID string            `db:"search_doc_id" json:"search_doc_id,omitempty"`
	IndexName   string            `db:"index_name" json:"index_name,omitempty"`
	TotalChunks int               `db:"total_chunks" json:"total_chunks"`
	Status      string            `db:"status" json:"status"`
	Metadata    map[string]string `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// DocumentChunk is one contiguous slice of a document's effective text.
// Chunks are exclusively owned by their document and are fully replaced,
// never appended, on every (re-)ingestion attempt.
type DocumentChunk struct {
	ID            string            `db:"id" json:"id"`
	DocumentID    string            `db:"document_id" json:"document_id"`
	ChunkIndex    int               `db:"chunk_index" json:"chunk_index"`
	Content       string            `db:"content" json:"content"`
	TokenCount    int               `db:"token_count" json:"token_count"`
	SearchChunkID string            `db:"search_chunk_id" json:"search_chunk_id"`
	Metadata      map[string]string `db:"metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

// SearchChunkID builds the deterministic key addressing a chunk's entry in
// the search index. It is the join key between the record store and the
// external index, not a separate identity.
func SearchChunkID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s-chunk-%d", documentID, chunkIndex)
}
