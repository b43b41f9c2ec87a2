package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/nexbid/ragline/internal/core"
)

// OpenAIEmbedder targets OpenAI-compatible embedding endpoints (including
// local servers such as Ollama). Token totals are estimated for parity with
// the Gemini embedder.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
}

var _ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(host, model string) (*OpenAIEmbedder, error) {
	// "none" keeps local OpenAI-compatible services that skip auth happy.
	client, err := openai.New(
		openai.WithBaseURL(host),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}

	return &OpenAIEmbedder{embedder: embedder}, nil
}

func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) (*core.EmbedResult, error) {
	if len(texts) == 0 {
		return &core.EmbedResult{}, nil
	}

	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("openai embed size mismatch: got %d want %d", len(vecs), len(texts))
	}

	tokens := 0
	for _, t := range texts {
		tokens += core.EstimateTokens(t)
	}
	return &core.EmbedResult{Vectors: vecs, TotalTokens: tokens}, nil
}
