package ingestion_engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexbid/ragline/internal/core/chunker"
	"github.com/nexbid/ragline/internal/core/ocr"
	"github.com/nexbid/ragline/internal/models"
)

const twoParagraphs = `Tender standards require sealed submissions before the published deadline.
Late submissions are rejected without review under clause four.

Vendor proposals must include an itemized cost breakdown.
Omitting the breakdown disqualifies the proposal from scoring.`

type testRig struct {
	ingestor *DocumentIngestor
	records  *memRecords
	objects  *memObjects
	index    *fakeIndex
	embedder *fakeEmbedder
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	records := newMemRecords()
	objects := newMemObjects()
	index := newFakeIndex()
	embedder := &fakeEmbedder{}

	gate := ocr.NewGate(index, time.Millisecond, 10*time.Millisecond)
	ing, err := NewDocumentIngestor(
		records, objects, embedder, index,
		chunker.NewSectionChunker(40, 0),
		&fakeExtractor{},
		gate,
		&IngestConfig{EmbedBatchSize: 2, IndexBatchSize: 1},
	)
	require.NoError(t, err)
	t.Cleanup(ing.Close)

	return &testRig{ingestor: ing, records: records, objects: objects, index: index, embedder: embedder}
}

func standardOpts() IngestOptions {
	return IngestOptions{
		SourceType: models.SourceStandard,
		Category:   models.CategoryShared,
		FileName:   "tender standards.txt",
		Content:    []byte(twoParagraphs),
		Text:       twoParagraphs,
		Metadata:   map[string]string{"vendor": "acme"},
	}
}

func TestIngestSuccess(t *testing.T) {
	rig := newTestRig(t)

	res, err := rig.ingestor.Ingest(context.Background(), standardOpts())
	require.NoError(t, err)

	assert.Equal(t, ResultSuccess, res.Status)
	assert.NotEmpty(t, res.DocumentID)
	assert.NotEmpty(t, res.BlobURL)
	assert.GreaterOrEqual(t, res.ChunksIndexed, 1)
	assert.Greater(t, res.TotalTokens, 0)

	doc, ok := rig.records.doc(res.DocumentID)
	require.True(t, ok)
	assert.Equal(t, models.StatusIndexed, doc.Status)
	assert.Equal(t, res.ChunksIndexed, doc.TotalChunks)
	assert.Equal(t, doc.ID, doc.SearchDocID)
	assert.Equal(t, "test-index", doc.IndexName)
	assert.NotEmpty(t, doc.BlobName)

	// Chunk/index parity: every chunk row resolves in the index, and the
	// chunks in order reproduce recognizable source content.
	chunks, err := rig.records.GetChunksByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, doc.TotalChunks)

	var all strings.Builder
	for k, ch := range chunks {
		assert.Equal(t, k, ch.ChunkIndex)
		assert.Equal(t, models.SearchChunkID(doc.ID, k), ch.SearchChunkID)
		assert.True(t, rig.index.has(ch.SearchChunkID), "chunk %d missing from index", k)
		assert.Greater(t, ch.TokenCount, 0)
		assert.Equal(t, "acme", ch.Metadata["vendor"])
		all.WriteString(ch.Content)
		all.WriteString("\n")
	}
	assert.Contains(t, all.String(), "sealed submissions")
	assert.Contains(t, all.String(), "itemized cost breakdown")
}

func TestIngestUsesMergedTextWhenStaged(t *testing.T) {
	rig := newTestRig(t)
	rig.index.setMergedText("tender_standards.txt", "Merged OCR text with scanned table contents.")

	res, err := rig.ingestor.Ingest(context.Background(), standardOpts())
	require.NoError(t, err)

	chunks, err := rig.records.GetChunksByDocument(context.Background(), res.DocumentID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Contains(t, chunks[0].Content, "Merged OCR text")
}

func TestIngestFallsBackWhenOCRTimesOut(t *testing.T) {
	rig := newTestRig(t)
	// Nothing staged: the gate must time out and degrade to the input text.

	res, err := rig.ingestor.Ingest(context.Background(), standardOpts())
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, res.Status)

	chunks, err := rig.records.GetChunksByDocument(context.Background(), res.DocumentID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Contains(t, chunks[0].Content, "sealed submissions")
}

func TestIngestEmbedFailureCleansUpBlob(t *testing.T) {
	rig := newTestRig(t)
	rig.embedder.err = errors.New("embedding quota exhausted")

	res, err := rig.ingestor.Ingest(context.Background(), standardOpts())
	require.Error(t, err)

	assert.Equal(t, ResultFailed, res.Status)
	assert.Contains(t, res.Error, "embedding quota exhausted")

	// The freshly uploaded blob must be gone.
	assert.Equal(t, 0, rig.objects.count())
	// No index entries were written.
	assert.Equal(t, 0, rig.index.size())
	// The record survives in failed state.
	doc, ok := rig.records.doc(res.DocumentID)
	require.True(t, ok)
	assert.Equal(t, models.StatusFailed, doc.Status)
}

func TestIngestIndexFailureRemovesWrittenEntries(t *testing.T) {
	rig := newTestRig(t)
	// First upsert batch succeeds, the second fails; rollback must remove
	// the successful batch's entries.
	rig.index.failUpsert = 1

	res, err := rig.ingestor.Ingest(context.Background(), standardOpts())
	require.Error(t, err)

	assert.Equal(t, ResultFailed, res.Status)
	assert.Equal(t, 0, rig.index.size(), "partial index writes must be rolled back")
	assert.Equal(t, 0, rig.objects.count())

	doc, ok := rig.records.doc(res.DocumentID)
	require.True(t, ok)
	assert.Equal(t, models.StatusFailed, doc.Status)
}

func TestIngestEmptyTextFails(t *testing.T) {
	rig := newTestRig(t)

	opts := standardOpts()
	opts.Text = ""
	opts.Content = []byte{}

	res, err := rig.ingestor.Ingest(context.Background(), opts)
	require.Error(t, err)
	assert.Equal(t, ResultFailed, res.Status)
	assert.Contains(t, res.Error, "no chunks")
	assert.Equal(t, 0, rig.objects.count())

	doc, ok := rig.records.doc(res.DocumentID)
	require.True(t, ok)
	assert.Equal(t, models.StatusFailed, doc.Status)
}

func TestIngestBootstrapFailure(t *testing.T) {
	rig := newTestRig(t)
	rig.records.createErr = errors.New("connection refused")

	res, err := rig.ingestor.Ingest(context.Background(), standardOpts())
	require.Error(t, err)

	assert.Equal(t, ResultFailed, res.Status)
	// Nothing was created, so nothing was cleaned up.
	assert.Equal(t, 0, rig.objects.count())
	assert.Equal(t, 0, rig.index.size())
}

func TestIngestPersistsBlobIdentityBeforeLaterSteps(t *testing.T) {
	rig := newTestRig(t)
	rig.embedder.err = errors.New("boom")

	res, err := rig.ingestor.Ingest(context.Background(), standardOpts())
	require.Error(t, err)

	// Even though the run failed after upload, the record carries the blob
	// identity that cleanup used.
	doc, ok := rig.records.doc(res.DocumentID)
	require.True(t, ok)
	assert.NotEmpty(t, doc.BlobName)
	assert.NotEmpty(t, doc.BlobURL)
}

func TestIngestMetadataCarriedToIndex(t *testing.T) {
	rig := newTestRig(t)

	opts := standardOpts()
	opts.Metadata = map[string]string{"vendor": "acme", "project": "bridge-42"}

	res, err := rig.ingestor.Ingest(context.Background(), opts)
	require.NoError(t, err)

	require.NotEmpty(t, rig.index.ids())
	for _, id := range rig.index.ids() {
		d, ok := rig.index.get(id)
		require.True(t, ok)
		assert.Equal(t, "acme", d.Metadata["vendor"])
		assert.Equal(t, "bridge-42", d.Metadata["project"])
		assert.Equal(t, models.CategoryShared, d.Category)
		assert.Equal(t, res.DocumentID, d.DocumentID)
	}
}
