package ocr

import (
	"context"
	"log/slog"
	"time"
)

// StagingLookup is the slice of the search index the gate needs: a read of
// the OCR staging index by bare file name.
type StagingLookup interface {
	FindMergedText(ctx context.Context, fileName string) (string, bool, error)
}

// Gate polls the OCR staging index for merged text with a hard upper bound
// on waiting. OCR is a quality enhancement, not a correctness requirement:
// on timeout or any retrieval error the gate degrades to the default text
// and never returns an error.
type Gate struct {
	staging      StagingLookup
	pollInterval time.Duration
	timeout      time.Duration
	logger       *slog.Logger
}

func NewGate(staging StagingLookup, pollInterval, timeout time.Duration) *Gate {
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gate{
		staging:      staging,
		pollInterval: pollInterval,
		timeout:      timeout,
		logger:       slog.Default().With("component", "ocr-gate"),
	}
}

// Resolve returns (mergedText, true) when the staging index yields enriched
// text within the deadline, and (defaultText, false) otherwise. The deadline
// is enforced here, independent of the caller's context.
func (g *Gate) Resolve(ctx context.Context, fileName, defaultText string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		text, found, err := g.staging.FindMergedText(ctx, fileName)
		if err != nil {
			g.logger.Warn("staging lookup failed, using original text", "file", fileName, "err", err)
			return defaultText, false
		}
		if found && text != "" {
			return text, true
		}

		select {
		case <-ctx.Done():
			g.logger.Debug("no merged text before deadline, using original text", "file", fileName)
			return defaultText, false
		case <-ticker.C:
		}
	}
}
