package searchclient

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/nexbid/ragline/internal/core"
)

// MemoryIndex is an in-process search index for local runs and tests: a
// bleve in-memory index for text queries, alongside a meta map for exact
// retrieval and brute-force vector scoring.
type MemoryIndex struct {
	name    string
	bleve   bleve.Index
	meta    map[string]core.IndexDocument
	staging map[string]string
	mu      sync.RWMutex
}

var _ core.SearchIndex = (*MemoryIndex)(nil)

func NewMemoryIndex(name string) (*MemoryIndex, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &MemoryIndex{
		name:    name,
		bleve:   index,
		meta:    make(map[string]core.IndexDocument),
		staging: make(map[string]string),
	}, nil
}

func (m *MemoryIndex) Name() string { return m.name }

func (m *MemoryIndex) Upsert(ctx context.Context, docs []core.IndexDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		if err := m.bleve.Index(d.ID, d); err != nil {
			return err
		}
		m.meta[d.ID] = d
	}
	return nil
}

func (m *MemoryIndex) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if err := m.bleve.Delete(id); err != nil {
			return err
		}
		delete(m.meta, id)
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, vector []float32, text string, limit int) ([]core.IndexHit, error) {
	if limit <= 0 {
		limit = 10
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(vector) > 0 {
		return m.queryVector(vector, limit), nil
	}

	query := bleve.NewMatchQuery(text)
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	res, err := m.bleve.Search(req)
	if err != nil {
		return nil, err
	}

	hits := make([]core.IndexHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, core.IndexHit{
			ID:      h.ID,
			Content: m.meta[h.ID].Content,
			Score:   h.Score,
		})
	}
	return hits, nil
}

func (m *MemoryIndex) queryVector(vector []float32, limit int) []core.IndexHit {
	hits := make([]core.IndexHit, 0, len(m.meta))
	for id, d := range m.meta {
		hits = append(hits, core.IndexHit{
			ID:      id,
			Content: d.Content,
			Score:   cosine(vector, d.Embedding),
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func (m *MemoryIndex) FindMergedText(ctx context.Context, fileName string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.staging[fileName]
	return text, ok, nil
}

// SetMergedText seeds the staging index; in production the OCR pipeline
// writes here, in tests this stands in for it.
func (m *MemoryIndex) SetMergedText(fileName, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staging[fileName] = text
}

func (m *MemoryIndex) RunIndexer(ctx context.Context) error {
	// In-memory writes are visible immediately.
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
