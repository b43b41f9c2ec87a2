package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/nexbid/ragline/internal/app"
	"github.com/nexbid/ragline/internal/config"
	"github.com/nexbid/ragline/internal/core/ingestion_engine"
	"github.com/nexbid/ragline/internal/models"
)

func main() {
	cliApp := &cli.App{
		Name:  "ragline",
		Usage: "Document ingestion pipeline for retrieval-augmented generation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Set logging format (text, json)",
				Value: "text",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest a local document file",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source-type", Value: string(models.SourceStandard), Usage: "standard | proposal | requirement | external-feed-a | external-feed-b"},
					&cli.StringFlag{Name: "source-id", Usage: "Owning business entity id (optional)"},
					&cli.StringFlag{Name: "category", Value: string(models.CategoryShared), Usage: "Storage/access category"},
					&cli.StringSliceFlag{Name: "meta", Usage: "Metadata entries as key=value (repeatable)"},
				},
				Action: runIngest,
			},
			{
				Name:      "reindex",
				Usage:     "Rebuild chunks, embeddings and index entries for an existing document",
				ArgsUsage: "<document-id>",
				Action:    runReindex,
			},
			{
				Name:      "delete",
				Usage:     "Delete a document, its chunks, blob and index entries",
				ArgsUsage: "<document-id>",
				Action:    runDelete,
			},
			{
				Name:      "status",
				Usage:     "Show a document record",
				ArgsUsage: "<document-id>",
				Action:    runStatus,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func setupLogger(c *cli.Context) error {
	var level slog.Level
	switch c.String("log-level") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.String("log-format") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func buildApp(ctx context.Context) (*app.App, error) {
	cfg := config.LoadConfig()
	if cfg.DatabaseURL == "" && cfg.SearchIndex != "memory" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	return app.NewApp(ctx, cfg)
}

func runIngest(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	path := c.Args().First()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	ctx := c.Context
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	extractor := ingestion_engine.NewDocconvExtractor(false)
	text, err := extractor.ExtractText(ctx, data, contentType)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	res, err := a.Ingestor.Ingest(ctx, ingestion_engine.IngestOptions{
		SourceType: models.SourceType(c.String("source-type")),
		SourceID:   c.String("source-id"),
		Category:   models.Category(c.String("category")),
		FileName:   filepath.Base(path),
		Content:    data,
		Text:       text,
		Metadata:   parseMeta(c.StringSlice("meta")),
	})
	printResult(res)
	return err
}

func runReindex(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one document-id argument")
	}

	a, err := buildApp(c.Context)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Ingestor.Reindex(c.Context, c.Args().First(), "")
	printResult(res)
	return err
}

func runDelete(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one document-id argument")
	}

	a, err := buildApp(c.Context)
	if err != nil {
		return err
	}
	defer a.Close()

	id := c.Args().First()
	if err := a.Ingestor.Delete(c.Context, id); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", id)
	return nil
}

func runStatus(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one document-id argument")
	}

	a, err := buildApp(c.Context)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.Records.GetDocumentByID(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func parseMeta(entries []string) map[string]string {
	meta := make(map[string]string, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k == "" {
			continue
		}
		meta[k] = v
	}
	return meta
}

func printResult(res *ingestion_engine.IngestionResult) {
	if res == nil {
		return
	}
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return
	}
	fmt.Println(string(out))
}
