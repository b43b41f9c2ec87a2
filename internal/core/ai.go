package core

import "context"

// EmbedResult carries the vectors for one batch plus the token usage the
// provider reported (or estimated, for providers whose batch API reports
// no usage).
type EmbedResult struct {
	Vectors     [][]float32
	TotalTokens int
}

// EmbeddingProvider converts texts to fixed-dimension vectors. Callers are
// responsible for keeping batches within the provider's own limit.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) (*EmbedResult, error)
}
