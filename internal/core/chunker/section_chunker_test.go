package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexbid/ragline/internal/core"
)

func manyLines(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Requirement line %d: the contractor shall provide documentation.\n", i)
	}
	return b.String()
}

func TestChunkerIsDeterministic(t *testing.T) {
	c := NewSectionChunker(50, 10)
	blocks := []core.TextBlock{{Title: "Scope", Content: manyLines(20)}}

	a, err := c.Chunk(blocks, core.ChunkDefaults{})
	require.NoError(t, err)
	b, err := c.Chunk(blocks, core.ChunkDefaults{})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestChunkerNeverEmptyForNonEmptyInput(t *testing.T) {
	c := NewSectionChunker(500, 50)

	out, err := c.Chunk([]core.TextBlock{{Content: "one short sentence"}}, core.ChunkDefaults{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "one short sentence", out[0].Content)
	assert.Greater(t, out[0].TokenCount, 0)
}

func TestChunkerEmptyInputYieldsNoChunks(t *testing.T) {
	c := NewSectionChunker(500, 50)

	out, err := c.Chunk([]core.TextBlock{{Content: "   \n\n  "}}, core.ChunkDefaults{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestChunkerSplitsLongContent(t *testing.T) {
	c := NewSectionChunker(50, 0)

	out, err := c.Chunk([]core.TextBlock{{Content: manyLines(30)}}, core.ChunkDefaults{})
	require.NoError(t, err)
	require.Greater(t, len(out), 1)

	for i, ch := range out {
		assert.Equal(t, i, ch.ChunkIndex, "chunk indexes must be a zero-based sequence")
		assert.Greater(t, ch.TokenCount, 0)
	}

	// No content lost: every source line appears in some chunk.
	joined := ""
	for _, ch := range out {
		joined += ch.Content + "\n"
	}
	for i := 0; i < 30; i++ {
		assert.Contains(t, joined, fmt.Sprintf("Requirement line %d:", i))
	}
}

func TestChunkerOverlapCarriesTail(t *testing.T) {
	c := NewSectionChunker(50, 15)

	out, err := c.Chunk([]core.TextBlock{{Content: manyLines(30)}}, core.ChunkDefaults{})
	require.NoError(t, err)
	require.Greater(t, len(out), 1)

	// The start of each chunk repeats the tail of the previous one.
	for i := 1; i < len(out); i++ {
		firstLine := strings.SplitN(out[i].Content, "\n", 2)[0]
		assert.Contains(t, out[i-1].Content, firstLine,
			"chunk %d should open with overlap from chunk %d", i, i-1)
	}
}

func TestChunkerSectionMetadata(t *testing.T) {
	c := NewSectionChunker(500, 0)

	blocks := []core.TextBlock{
		{Title: "Pricing", Content: "Unit rates apply."},
		{Content: "Untitled block content."},
	}
	out, err := c.Chunk(blocks, core.ChunkDefaults{SectionTitle: "General", PageNumber: 7})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "Pricing", out[0].SectionTitle)
	assert.Equal(t, "General", out[1].SectionTitle, "untitled blocks take the default section")
	assert.Equal(t, 7, out[0].PageNumber)
	assert.Equal(t, 0, out[0].ChunkIndex)
	assert.Equal(t, 1, out[1].ChunkIndex, "ordinals continue across blocks")
}

func TestChunkerResplitsOversizedLine(t *testing.T) {
	c := NewSectionChunker(20, 0)

	long := strings.Repeat("procurement terms and conditions ", 40) // one huge line
	out, err := c.Chunk([]core.TextBlock{{Content: long}}, core.ChunkDefaults{})
	require.NoError(t, err)
	require.Greater(t, len(out), 1, "a single oversized line must be re-split")
}
