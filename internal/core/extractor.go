package core

import "context"

// DocumentExtractor extracts plain text from raw document bytes. The
// contentType hint helps the extractor choose the right parsing strategy.
// Used when no pre-extracted text accompanies the bytes (CLI ingestion,
// re-index from a stored blob).
type DocumentExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}
