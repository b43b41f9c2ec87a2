package searchclient

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pgvector/pgvector-go"

	"github.com/nexbid/ragline/internal/core"
)

// PgVectorIndex implements the search index contract on Postgres/pgvector.
// It shares the record store's connection pool; writes are immediately
// visible so RunIndexer has no refresh cycle to trigger.
type PgVectorIndex struct {
	db     *sql.DB
	name   string
	logger *slog.Logger
}

var _ core.SearchIndex = (*PgVectorIndex)(nil)

func NewPgVectorIndex(db *sql.DB, name string) *PgVectorIndex {
	return &PgVectorIndex{
		db:     db,
		name:   name,
		logger: slog.Default().With("component", "pgvector-index"),
	}
}

func (p *PgVectorIndex) Name() string { return p.name }

func (p *PgVectorIndex) Upsert(ctx context.Context, docs []core.IndexDocument) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO search_chunks
			(id, document_id, content, embedding, category, file_name, chunk_index, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			content     = EXCLUDED.content,
			embedding   = EXCLUDED.embedding,
			category    = EXCLUDED.category,
			file_name   = EXCLUDED.file_name,
			chunk_index = EXCLUDED.chunk_index,
			metadata    = EXCLUDED.metadata,
			created_at  = EXCLUDED.created_at
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range docs {
		d := &docs[i]
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal metadata: %w", err)
		}
		vec := pgvector.NewVector(d.Embedding)
		if _, err := stmt.ExecContext(ctx,
			d.ID, d.DocumentID, d.Content, vec, d.Category, d.FileName, d.ChunkIndex, meta, d.CreatedAt,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (p *PgVectorIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `DELETE FROM search_chunks WHERE id = ANY($1)`
	_, err := p.db.ExecContext(ctx, q, ids)
	return err
}

// Query ranks by cosine distance when a vector is given, otherwise falls
// back to a simple full-text match.
func (p *PgVectorIndex) Query(ctx context.Context, vector []float32, text string, limit int) ([]core.IndexHit, error) {
	if limit <= 0 {
		limit = 10
	}

	var (
		rows *sql.Rows
		err  error
	)
	if len(vector) > 0 {
		const q = `
			SELECT id, content, 1 - (embedding <=> $1) AS score
			FROM search_chunks
			ORDER BY embedding <=> $1
			LIMIT $2
		`
		rows, err = p.db.QueryContext(ctx, q, pgvector.NewVector(vector), limit)
	} else {
		const q = `
			SELECT id, content, ts_rank(to_tsvector('simple', content), plainto_tsquery('simple', $1)) AS score
			FROM search_chunks
			WHERE to_tsvector('simple', content) @@ plainto_tsquery('simple', $1)
			ORDER BY score DESC
			LIMIT $2
		`
		rows, err = p.db.QueryContext(ctx, q, text, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []core.IndexHit
	for rows.Next() {
		var h core.IndexHit
		if err := rows.Scan(&h.ID, &h.Content, &h.Score); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// FindMergedText reads the OCR staging table maintained by the external
// enrichment pipeline.
func (p *PgVectorIndex) FindMergedText(ctx context.Context, fileName string) (string, bool, error) {
	const q = `SELECT merged_text FROM ocr_staging WHERE file_name = $1`
	var text string
	err := p.db.QueryRowContext(ctx, q, fileName).Scan(&text)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

func (p *PgVectorIndex) RunIndexer(ctx context.Context) error {
	// pgvector writes are visible immediately; nothing to refresh.
	p.logger.Debug("indexer trigger is a no-op for pgvector")
	return nil
}
