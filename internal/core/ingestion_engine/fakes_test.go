package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nexbid/ragline/internal/core"
	"github.com/nexbid/ragline/internal/models"
)

var errDocNotFound = errors.New("document not found")

// memRecords implements core.RecordStore in memory with injectable failures.
type memRecords struct {
	mu     sync.Mutex
	docs   map[string]models.Document
	chunks map[string][]models.DocumentChunk

	createErr error
	updateErr error
	insertErr error
}

func newMemRecords() *memRecords {
	return &memRecords{
		docs:   make(map[string]models.Document),
		chunks: make(map[string][]models.DocumentChunk),
	}
}

func (m *memRecords) CreateDocument(ctx context.Context, doc *models.Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memRecords) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errDocNotFound, id)
	}
	out := d
	return &out, nil
}

func (m *memRecords) UpdateDocument(ctx context.Context, doc *models.Document) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; !ok {
		return fmt.Errorf("%w: %s", errDocNotFound, doc.ID)
	}
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memRecords) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", errDocNotFound, id)
	}
	d.Status = status
	m.docs[id] = d
	return nil
}

func (m *memRecords) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("%w: %s", errDocNotFound, id)
	}
	delete(m.docs, id)
	return nil
}

func (m *memRecords) InsertChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range chunks {
		m.chunks[ch.DocumentID] = append(m.chunks[ch.DocumentID], ch)
	}
	return nil
}

func (m *memRecords) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.DocumentChunk(nil), m.chunks[documentID]...), nil
}

func (m *memRecords) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, documentID)
	return nil
}

func (m *memRecords) Close() error { return nil }

func (m *memRecords) doc(id string) (models.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	return d, ok
}

// memObjects implements core.ObjectStore in memory.
type memObjects struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	uploads   int
	uploadErr error
}

func newMemObjects() *memObjects {
	return &memObjects{blobs: make(map[string][]byte)}
}

func (m *memObjects) Upload(ctx context.Context, name string, data []byte, metadata map[string]string) (core.ObjectInfo, error) {
	if m.uploadErr != nil {
		return core.ObjectInfo{}, m.uploadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = append([]byte(nil), data...)
	m.uploads++
	return core.ObjectInfo{URL: "mem://" + name, Name: name}, nil
}

func (m *memObjects) Download(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[name]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", name)
	}
	return append([]byte(nil), data...), nil
}

func (m *memObjects) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}

func (m *memObjects) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name := range m.blobs {
		names = append(names, name)
	}
	return names, nil
}

func (m *memObjects) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// fakeEmbedder returns deterministic vectors, optionally failing from the
// nth call on.
type fakeEmbedder struct {
	mu        sync.Mutex
	calls     int
	err       error // returned on every call when set
	failAfter int   // fail when calls > failAfter; 0 = never
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) (*core.EmbedResult, error) {
	f.mu.Lock()
	f.calls++
	calls := f.calls
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.failAfter > 0 && calls > f.failAfter {
		return nil, errors.New("embedder unavailable")
	}

	vecs := make([][]float32, len(texts))
	tokens := 0
	for i, t := range texts {
		vecs[i] = []float32{float32(len(t)), 0.5, 0.25}
		tokens += core.EstimateTokens(t)
	}
	return &core.EmbedResult{Vectors: vecs, TotalTokens: tokens}, nil
}

// fakeIndex implements core.SearchIndex in memory with injectable failures
// and a seedable staging map.
type fakeIndex struct {
	mu          sync.Mutex
	docs        map[string]core.IndexDocument
	staging     map[string]string
	upserts     int
	failUpsert  int // fail when upserts > failUpsert; 0 = never
	stagingErr  error
	refreshRuns int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		docs:    make(map[string]core.IndexDocument),
		staging: make(map[string]string),
	}
}

func (f *fakeIndex) Name() string { return "test-index" }

func (f *fakeIndex) Upsert(ctx context.Context, docs []core.IndexDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.failUpsert > 0 && f.upserts > f.failUpsert {
		return errors.New("index unavailable")
	}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return nil
}

func (f *fakeIndex) Delete(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.docs, id)
	}
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, vector []float32, text string, limit int) ([]core.IndexHit, error) {
	return nil, nil
}

func (f *fakeIndex) FindMergedText(ctx context.Context, fileName string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stagingErr != nil {
		return "", false, f.stagingErr
	}
	text, ok := f.staging[fileName]
	return text, ok, nil
}

func (f *fakeIndex) RunIndexer(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshRuns++
	return nil
}

func (f *fakeIndex) setMergedText(fileName, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staging[fileName] = text
}

func (f *fakeIndex) get(id string) (core.IndexDocument, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	return d, ok
}

func (f *fakeIndex) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.docs[id]
	return ok
}

func (f *fakeIndex) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

func (f *fakeIndex) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.docs))
	for id := range f.docs {
		out = append(out, id)
	}
	return out
}

// fakeExtractor returns canned text for re-extraction paths.
type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.text != "" {
		return f.text, nil
	}
	return string(data), nil
}
