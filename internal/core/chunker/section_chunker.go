package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/nexbid/ragline/internal/core"
)

// SectionChunker groups each text block's lines into token-bounded chunks
// with optional overlap, never mixing content across section boundaries.
// Lines longer than the target on their own are re-split with a recursive
// character splitter so a single run-on paragraph cannot produce an
// oversized chunk.
//
// TargetTokens:  approximate tokens per chunk (e.g., 500).
// OverlapTokens: tokens retained from the end of the previous chunk as seed
//                of the next (e.g., 50).
type SectionChunker struct {
	targetTokens  int
	overlapTokens int
	splitter      textsplitter.RecursiveCharacter
}

var _ core.Chunker = (*SectionChunker)(nil)

func NewSectionChunker(targetTokens, overlapTokens int) *SectionChunker {
	if targetTokens <= 0 {
		targetTokens = 500
	}
	if overlapTokens < 0 || overlapTokens >= targetTokens {
		overlapTokens = 0
	}
	return &SectionChunker{
		targetTokens:  targetTokens,
		overlapTokens: overlapTokens,
		// ~4 chars per token keeps the character splitter aligned with the
		// token estimator.
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(targetTokens*4),
			textsplitter.WithChunkOverlap(overlapTokens*4),
		),
	}
}

func (c *SectionChunker) Chunk(blocks []core.TextBlock, defaults core.ChunkDefaults) ([]core.Chunk, error) {
	var out []core.Chunk

	for _, block := range blocks {
		title := block.Title
		if title == "" {
			title = defaults.SectionTitle
		}

		frags, err := c.fragments(block.Content)
		if err != nil {
			return nil, err
		}

		var (
			buf    []string
			tokSum int
		)

		flush := func() {
			if tokSum == 0 {
				return
			}
			text := strings.Join(buf, "\n")
			out = append(out, core.Chunk{
				Content:      text,
				TokenCount:   tokSum,
				ChunkIndex:   len(out),
				SectionTitle: title,
				PageNumber:   defaults.PageNumber,
			})

			// Keep a tail whose token sum ≈ overlapTokens as seed of the
			// next chunk.
			if c.overlapTokens > 0 {
				keep := []string{}
				remain := c.overlapTokens
				for j := len(buf) - 1; j >= 0 && remain > 0; j-- {
					keep = append([]string{buf[j]}, keep...)
					remain -= core.EstimateTokens(buf[j])
				}
				buf = keep
				tokSum = 0
				for _, s := range buf {
					tokSum += core.EstimateTokens(s)
				}
			} else {
				buf = buf[:0]
				tokSum = 0
			}
		}

		for _, frag := range frags {
			buf = append(buf, frag)
			tokSum += core.EstimateTokens(frag)
			if tokSum >= c.targetTokens {
				flush()
			}
		}

		// Emit remaining tail, but only if it adds content beyond the
		// overlap seed carried over from the last flush.
		if joined := strings.Join(buf, "\n"); tokSum > 0 && !tailIsOverlapOnly(out, joined, title) {
			out = append(out, core.Chunk{
				Content:      joined,
				TokenCount:   tokSum,
				ChunkIndex:   len(out),
				SectionTitle: title,
				PageNumber:   defaults.PageNumber,
			})
		}
	}

	return out, nil
}

// fragments splits a block's content into trimmed non-empty lines,
// re-splitting any line that alone exceeds the chunk target.
func (c *SectionChunker) fragments(content string) ([]string, error) {
	var frags []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if core.EstimateTokens(line) <= c.targetTokens {
			frags = append(frags, line)
			continue
		}
		parts, err := c.splitter.SplitText(line)
		if err != nil {
			return nil, fmt.Errorf("split oversized line: %w", err)
		}
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				frags = append(frags, p)
			}
		}
	}
	return frags, nil
}

// tailIsOverlapOnly reports whether the remaining buffer is exactly the
// overlap seed of the previous chunk in the same section, i.e. carries no
// new content.
func tailIsOverlapOnly(out []core.Chunk, tail, title string) bool {
	if len(out) == 0 {
		return false
	}
	last := out[len(out)-1]
	return last.SectionTitle == title && strings.HasSuffix(last.Content, tail)
}
