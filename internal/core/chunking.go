package core

// TextBlock is one (title, content) section of a document's effective text,
// the input unit of the chunking strategy.
type TextBlock struct {
	Title   string
	Content string
}

// ChunkDefaults carry section/page context applied to chunks whose block
// does not override them.
type ChunkDefaults struct {
	SectionTitle string
	PageNumber   int
}

// Chunk is the chunker's output unit.
type Chunk struct {
	Content      string
	TokenCount   int
	ChunkIndex   int
	SectionTitle string
	PageNumber   int
}

// Chunker turns a document's effective text into an ordered, non-empty list
// of chunks. Implementations must be deterministic for identical input and
// must never return zero chunks for non-empty input; the orchestrator treats
// an empty result as a hard failure.
type Chunker interface {
	Chunk(blocks []TextBlock, defaults ChunkDefaults) ([]Chunk, error)
}
