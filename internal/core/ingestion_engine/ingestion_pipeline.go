package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nexbid/ragline/internal/core"
	objectclient "github.com/nexbid/ragline/internal/core/object-client"
	"github.com/nexbid/ragline/internal/models"
)

// Ingest runs the full pipeline for one document. Exactly one Document
// record exists after the call — models.StatusIndexed on success,
// models.StatusFailed on any pipeline failure — unless record bootstrap
// itself failed, in which case nothing was persisted.
func (i *DocumentIngestor) Ingest(ctx context.Context, opts IngestOptions) (*IngestionResult, error) {
	unlock := i.lock(opts.DocumentID)
	defer unlock()
	return i.ingest(ctx, opts)
}

// ingest is the lock-free body, shared with Reindex which holds the lock
// across cleanup and re-ingestion.
func (i *DocumentIngestor) ingest(ctx context.Context, opts IngestOptions) (*IngestionResult, error) {
	res := &IngestionResult{Status: ResultFailed}
	reindex := opts.DocumentID != ""

	// Step 1: record bootstrap. Nothing to clean up if this fails.
	doc, err := i.bootstrapRecord(ctx, opts)
	if err != nil {
		res.DocumentID = opts.DocumentID
		res.Error = err.Error()
		return res, err
	}
	res.DocumentID = doc.ID

	// Rollback targets: only resources created in *this* attempt.
	var (
		newBlobName string
		writtenIDs  []string
	)
	fail := func(stage string, cause error) (*IngestionResult, error) {
		err := fmt.Errorf("%s: %w", stage, cause)
		i.rollback(ctx, doc, newBlobName, writtenIDs)
		res.Error = err.Error()
		return res, err
	}

	// Step 2: blob materialization. Re-index reuses the existing blob.
	if !reindex {
		key := objectclient.ObjectKey(string(doc.Category), doc.ID, doc.FileName)
		info, err := i.objects.Upload(ctx, key, opts.Content, objectclient.SanitizeMetadata(opts.Metadata))
		if err != nil {
			return fail("upload blob", err)
		}
		newBlobName = info.Name
		doc.BlobName = info.Name
		doc.BlobURL = info.URL
		// Persist the blob identity before anything else so a later failure
		// can still locate the blob for cleanup.
		if err := i.records.UpdateDocument(ctx, doc); err != nil {
			return fail("persist blob identity", err)
		}
	}
	res.BlobURL = doc.BlobURL

	// Step 3: effective content resolution through the OCR gate.
	text, enriched := i.gate.Resolve(ctx, path.Base(doc.BlobName), opts.Text)
	i.logger.Debug("resolved effective text", "document", doc.ID, "enriched", enriched, "chars", len(text))

	// Step 4: chunking. Zero chunks is a hard failure, not a silent success.
	chunks, err := i.chunker.Chunk(
		[]core.TextBlock{{Content: text}},
		chunkDefaults(doc.Metadata),
	)
	if err != nil {
		return fail("chunk text", err)
	}
	if len(chunks) == 0 {
		return fail("chunk text", errors.New("chunking produced no chunks"))
	}

	// Step 5: embedding in bounded, concurrent batches; order preserved.
	vectors, totalTokens, err := i.embedChunks(ctx, chunks)
	if err != nil {
		return fail("embed chunks", err)
	}
	res.TotalTokens = totalTokens

	// Step 6: index upsert, tracking written ids for rollback.
	indexDocs := i.buildIndexDocs(doc, chunks, vectors)
	writtenIDs, err = i.upsertIndexDocs(ctx, indexDocs)
	if err != nil {
		return fail("upsert index", err)
	}

	// Step 7: chunk persistence — replace, never append.
	if err := i.records.DeleteChunksByDocument(ctx, doc.ID); err != nil {
		return fail("clear chunk rows", err)
	}
	if err := i.records.InsertChunks(ctx, buildChunkRows(doc, chunks)); err != nil {
		return fail("persist chunk rows", err)
	}

	// Step 8: finalization.
	doc.Status = models.StatusIndexed
	doc.TotalChunks = len(chunks)
	doc.SearchDocID = doc.ID
	doc.IndexName = i.index.Name()
	if err := i.records.UpdateDocument(ctx, doc); err != nil {
		return fail("finalize document", err)
	}

	// Step 9: background refresh, fire-and-forget. Never awaited, never
	// part of this call's outcome.
	i.triggerRefresh()

	res.Status = ResultSuccess
	res.ChunksIndexed = len(chunks)
	return res, nil
}

// bootstrapRecord creates a fresh processing record, or resets an existing
// one for re-indexing while preserving its blob identity.
func (i *DocumentIngestor) bootstrapRecord(ctx context.Context, opts IngestOptions) (*models.Document, error) {
	if opts.DocumentID != "" {
		doc, err := i.records.GetDocumentByID(ctx, opts.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("load document %s: %w", opts.DocumentID, err)
		}
		if doc.BlobName == "" {
			_ = i.records.UpdateDocumentStatus(ctx, doc.ID, models.StatusFailed)
			return nil, fmt.Errorf("re-index document %s: %w", doc.ID, ErrNoBlob)
		}
		doc.Status = models.StatusProcessing
		doc.TotalChunks = 0
		if err := i.records.UpdateDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("reset document %s: %w", doc.ID, err)
		}
		return doc, nil
	}

	category := opts.Category
	if category == "" {
		category = models.CategoryShared
	}
	doc := &models.Document{
		ID:         uuid.NewString(),
		SourceType: opts.SourceType,
		SourceID:   opts.SourceID,
		Category:   category,
		FileName:   opts.FileName,
		Status:     models.StatusProcessing,
		Metadata:   opts.Metadata,
	}
	if err := i.records.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}
	return doc, nil
}

// embedChunks batches chunk texts through the embedding provider, issuing
// batches concurrently but writing vectors back by offset so order is kept.
func (i *DocumentIngestor) embedChunks(ctx context.Context, chunks []core.Chunk) ([][]float32, int, error) {
	vectors := make([][]float32, len(chunks))
	var totalTokens atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.EmbedConcurrency)

	for start := 0; start < len(chunks); start += i.cfg.EmbedBatchSize {
		end := min(start+i.cfg.EmbedBatchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, end-start)
			for k := start; k < end; k++ {
				texts[k-start] = chunks[k].Content
			}
			out, err := i.embedder.EmbedTexts(gctx, texts)
			if err != nil {
				return err
			}
			if len(out.Vectors) != len(texts) {
				return fmt.Errorf("embed size mismatch: got %d want %d", len(out.Vectors), len(texts))
			}
			copy(vectors[start:end], out.Vectors)
			totalTokens.Add(int64(out.TotalTokens))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return vectors, int(totalTokens.Load()), nil
}

// upsertIndexDocs writes index documents in bounded concurrent batches and
// returns the ids of every batch that succeeded, so rollback can target
// exactly what this attempt wrote.
func (i *DocumentIngestor) upsertIndexDocs(ctx context.Context, docs []core.IndexDocument) ([]string, error) {
	var (
		mu      sync.Mutex
		written []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.EmbedConcurrency)

	for start := 0; start < len(docs); start += i.cfg.IndexBatchSize {
		end := min(start+i.cfg.IndexBatchSize, len(docs))
		g.Go(func() error {
			batch := docs[start:end]
			if err := i.index.Upsert(gctx, batch); err != nil {
				return err
			}
			ids := make([]string, len(batch))
			for k := range batch {
				ids[k] = batch[k].ID
			}
			mu.Lock()
			written = append(written, ids...)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	// written stays meaningful on error: it holds the successful batches.
	return written, err
}

func (i *DocumentIngestor) buildIndexDocs(doc *models.Document, chunks []core.Chunk, vectors [][]float32) []core.IndexDocument {
	now := time.Now().UTC()
	out := make([]core.IndexDocument, len(chunks))
	for k, ch := range chunks {
		out[k] = core.IndexDocument{
			ID:         models.SearchChunkID(doc.ID, ch.ChunkIndex),
			DocumentID: doc.ID,
			Content:    ch.Content,
			Embedding:  vectors[k],
			Category:   doc.Category,
			FileName:   doc.FileName,
			ChunkIndex: ch.ChunkIndex,
			Metadata:   chunkMetadata(doc.Metadata, ch),
			CreatedAt:  now,
		}
	}
	return out
}

func buildChunkRows(doc *models.Document, chunks []core.Chunk) []models.DocumentChunk {
	rows := make([]models.DocumentChunk, len(chunks))
	for k, ch := range chunks {
		rows[k] = models.DocumentChunk{
			ID:            uuid.NewString(),
			DocumentID:    doc.ID,
			ChunkIndex:    ch.ChunkIndex,
			Content:       ch.Content,
			TokenCount:    ch.TokenCount,
			SearchChunkID: models.SearchChunkID(doc.ID, ch.ChunkIndex),
			Metadata:      chunkMetadata(doc.Metadata, ch),
		}
	}
	return rows
}

// chunkMetadata carries the document's metadata bag onto each chunk,
// overlaying the chunk's own section/page context.
func chunkMetadata(docMeta map[string]string, ch core.Chunk) map[string]string {
	out := make(map[string]string, len(docMeta)+2)
	for k, v := range docMeta {
		out[k] = v
	}
	if ch.SectionTitle != "" {
		out["section_title"] = ch.SectionTitle
	}
	if ch.PageNumber > 0 {
		out["page_number"] = strconv.Itoa(ch.PageNumber)
	}
	return out
}

func chunkDefaults(docMeta map[string]string) core.ChunkDefaults {
	d := core.ChunkDefaults{SectionTitle: docMeta["section_title"]}
	if p, err := strconv.Atoi(docMeta["page_number"]); err == nil {
		d.PageNumber = p
	}
	return d
}

// rollback compensates a failed attempt: the blob uploaded in this call and
// the index entries written in this call are removed, and the document is
// marked failed but retained for diagnostics. Cleanup errors are logged and
// never replace the primary error.
func (i *DocumentIngestor) rollback(ctx context.Context, doc *models.Document, newBlobName string, writtenIDs []string) {
	// Cleanup must proceed even when the caller's context is already
	// cancelled — that cancellation may be the very failure being rolled back.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()

	if newBlobName != "" {
		if err := i.objects.Delete(ctx, newBlobName); err != nil {
			i.logger.Error("rollback: delete uploaded blob failed", "document", doc.ID, "blob", newBlobName, "err", err)
		}
	}

	for start := 0; start < len(writtenIDs); start += i.cfg.IndexBatchSize {
		end := min(start+i.cfg.IndexBatchSize, len(writtenIDs))
		if err := i.index.Delete(ctx, writtenIDs[start:end]); err != nil {
			i.logger.Error("rollback: delete index entries failed", "document", doc.ID, "count", end-start, "err", err)
		}
	}

	if err := i.records.UpdateDocumentStatus(ctx, doc.ID, models.StatusFailed); err != nil {
		i.logger.Error("rollback: mark document failed", "document", doc.ID, "err", err)
	}
}

// triggerRefresh schedules an index refresh without observing its outcome.
func (i *DocumentIngestor) triggerRefresh() {
	err := i.refreshPool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := i.index.RunIndexer(ctx); err != nil {
			i.logger.Warn("background index refresh failed", "err", err)
		}
	})
	if err != nil {
		i.logger.Warn("could not schedule index refresh", "err", err)
	}
}
