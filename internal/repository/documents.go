package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/textloom/textloom/internal/domain"
)

// DocumentRepository maintains the registry of ingested source documents.
type DocumentRepository struct {
	db querier
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

// Upsert records a completed ingestion, keyed by source stem so re-ingesting
// the same document replaces its registry entry.
func (r *DocumentRepository) Upsert(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, filename, stem, section_count, chunk_count, ingested_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (stem) DO UPDATE SET
			filename = EXCLUDED.filename,
			section_count = EXCLUDED.section_count,
			chunk_count = EXCLUDED.chunk_count,
			ingested_at = EXCLUDED.ingested_at`,
		d.ID, d.Filename, d.Stem, d.SectionCount, d.ChunkCount, d.IngestedAt,
	)
	if err != nil {
		return domain.StoreUnavailable("document_upsert", err)
	}
	return nil
}

func (r *DocumentRepository) GetByStem(ctx context.Context, stem string) (*domain.Document, error) {
	var d domain.Document
	err := r.db.QueryRow(ctx,
		`SELECT id, filename, stem, section_count, chunk_count, ingested_at
		 FROM documents WHERE stem = $1`,
		stem,
	).Scan(&d.ID, &d.Filename, &d.Stem, &d.SectionCount, &d.ChunkCount, &d.IngestedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, domain.StoreUnavailable("document_get", err)
	}
	return &d, nil
}

func (r *DocumentRepository) List(ctx context.Context) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, filename, stem, section_count, chunk_count, ingested_at
		 FROM documents ORDER BY ingested_at DESC`,
	)
	if err != nil {
		return nil, domain.StoreUnavailable("document_list", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.Stem, &d.SectionCount, &d.ChunkCount, &d.IngestedAt); err != nil {
			return nil, domain.StoreUnavailable("document_list", err)
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}
