package ingestion_engine

// IngestConfig tunes the pipeline's batching.
//
// EmbedBatchSize:   chunk texts per embedding call (e.g., 16).
// IndexBatchSize:   index documents per upsert/delete call (e.g., 1000).
// EmbedConcurrency: embedding/upsert batches in flight at once.
// RefreshWorkers:   goroutines in the fire-and-forget refresh pool.
type IngestConfig struct {
	EmbedBatchSize   int
	IndexBatchSize   int
	EmbedConcurrency int
	RefreshWorkers   int
}

func (c *IngestConfig) withDefaults() IngestConfig {
	out := IngestConfig{
		EmbedBatchSize:   16,
		IndexBatchSize:   1000,
		EmbedConcurrency: 4,
		RefreshWorkers:   2,
	}
	if c == nil {
		return out
	}
	if c.EmbedBatchSize > 0 {
		out.EmbedBatchSize = c.EmbedBatchSize
	}
	if c.IndexBatchSize > 0 {
		out.IndexBatchSize = c.IndexBatchSize
	}
	if c.EmbedConcurrency > 0 {
		out.EmbedConcurrency = c.EmbedConcurrency
	}
	if c.RefreshWorkers > 0 {
		out.RefreshWorkers = c.RefreshWorkers
	}
	return out
}
