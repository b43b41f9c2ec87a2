package ingestion_engine

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/nexbid/ragline/internal/models"
)

// Reindex rebuilds chunks, embeddings and index entries for an existing
// document, reusing its stored blob. When text is empty the blob is
// downloaded and re-extracted. Previous chunks and index entries are cleared
// first so the rebuild replaces rather than appends.
func (i *DocumentIngestor) Reindex(ctx context.Context, documentID, text string) (*IngestionResult, error) {
	unlock := i.lock(documentID)
	defer unlock()

	doc, err := i.records.GetDocumentByID(ctx, documentID)
	if err != nil {
		return &IngestionResult{DocumentID: documentID, Status: ResultFailed, Error: err.Error()},
			fmt.Errorf("load document %s: %w", documentID, err)
	}
	if doc.BlobName == "" {
		err := fmt.Errorf("re-index document %s: %w", documentID, ErrNoBlob)
		return &IngestionResult{DocumentID: documentID, Status: ResultFailed, Error: err.Error()}, err
	}

	if err := i.clearChunksAndIndex(ctx, doc); err != nil {
		return &IngestionResult{DocumentID: documentID, Status: ResultFailed, Error: err.Error()},
			fmt.Errorf("clear previous chunks: %w", err)
	}

	if text == "" {
		data, err := i.objects.Download(ctx, doc.BlobName)
		if err != nil {
			_ = i.records.UpdateDocumentStatus(ctx, documentID, models.StatusFailed)
			return &IngestionResult{DocumentID: documentID, Status: ResultFailed, Error: err.Error()},
				fmt.Errorf("download blob %s: %w", doc.BlobName, err)
		}
		text, err = i.extractor.ExtractText(ctx, data, contentTypeFor(doc.FileName))
		if err != nil {
			_ = i.records.UpdateDocumentStatus(ctx, documentID, models.StatusFailed)
			return &IngestionResult{DocumentID: documentID, Status: ResultFailed, Error: err.Error()},
				fmt.Errorf("extract text from blob %s: %w", doc.BlobName, err)
		}
	}

	return i.ingest(ctx, IngestOptions{
		DocumentID: documentID,
		Text:       text,
		FileName:   doc.FileName,
		SourceType: doc.SourceType,
		SourceID:   doc.SourceID,
		Category:   doc.Category,
		Metadata:   doc.Metadata,
	})
}

// Delete cascades removal: blob, index entries, chunk rows, then the
// document record itself. Blob and index cleanup are attempted before the
// record disappears since they are looked up via fields on it; both are
// best-effort so a half-dead collaborator cannot strand the record forever.
func (i *DocumentIngestor) Delete(ctx context.Context, documentID string) error {
	unlock := i.lock(documentID)
	defer unlock()

	doc, err := i.records.GetDocumentByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	if doc.BlobName != "" {
		if err := i.objects.Delete(ctx, doc.BlobName); err != nil {
			i.logger.Error("delete: blob removal failed, continuing", "document", documentID, "blob", doc.BlobName, "err", err)
		}
	}

	if err := i.clearChunksAndIndex(ctx, doc); err != nil {
		return fmt.Errorf("clear chunks for %s: %w", documentID, err)
	}

	if err := i.records.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document record %s: %w", documentID, err)
	}
	return nil
}

// clearChunksAndIndex removes a document's search-index entries (best-effort,
// log and continue — the goal is cleanup, not strict transactionality) and
// then its chunk rows. The parent document record is preserved.
func (i *DocumentIngestor) clearChunksAndIndex(ctx context.Context, doc *models.Document) error {
	chunks, err := i.records.GetChunksByDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}

	ids := make([]string, len(chunks))
	for k := range chunks {
		ids[k] = chunks[k].SearchChunkID
	}
	for start := 0; start < len(ids); start += i.cfg.IndexBatchSize {
		end := min(start+i.cfg.IndexBatchSize, len(ids))
		if err := i.index.Delete(ctx, ids[start:end]); err != nil {
			i.logger.Error("clear: index entry removal failed, continuing", "document", doc.ID, "count", end-start, "err", err)
		}
	}

	if err := i.records.DeleteChunksByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete chunk rows: %w", err)
	}
	return nil
}

func contentTypeFor(fileName string) string {
	if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
