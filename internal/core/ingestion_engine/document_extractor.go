package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"

	"code.sajari.com/docconv"

	"github.com/nexbid/ragline/internal/core"
)

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// ExtractText extracts plain text from raw bytes based on content type.
func (e *DocconvExtractor) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv %q: %w", contentType, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if res.Body == "" {
		return "", fmt.Errorf("docconv %q: extracted empty text", contentType)
	}
	return res.Body, nil
}
