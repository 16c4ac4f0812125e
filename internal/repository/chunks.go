package repository

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/textloom/textloom/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	// DefaultIndexName names the similarity index over the embedding column.
	DefaultIndexName = "chunks_embedding_cosine_idx"
	// candidateMultiplier widens the nearest-neighbor candidate pool before
	// ranking to improve recall.
	candidateMultiplier = 20
)

// ChunkRepository persists indexed records and executes similarity search
// against the pgvector-backed chunk store.
type ChunkRepository struct {
	db         querier
	indexName  string
	dimensions int
}

func NewChunkRepository(pool *pgxpool.Pool, dimensions int) *ChunkRepository {
	return &ChunkRepository{
		db:         pool,
		indexName:  DefaultIndexName,
		dimensions: dimensions,
	}
}

func NewChunkRepositoryWithTx(tx pgx.Tx, dimensions int) *ChunkRepository {
	return &ChunkRepository{
		db:         tx,
		indexName:  DefaultIndexName,
		dimensions: dimensions,
	}
}

// EnsureIndex creates the cosine-similarity index over the embedding column
// if it does not exist yet. An existing index with the same name is left
// untouched when compatible; a name collision with an incompatible definition
// is an error, never a silent overwrite.
func (r *ChunkRepository) EnsureIndex(ctx context.Context) error {
	var indexDef string
	err := r.db.QueryRow(ctx,
		`SELECT indexdef FROM pg_indexes WHERE schemaname = 'public' AND indexname = $1`,
		r.indexName,
	).Scan(&indexDef)

	switch {
	case err == nil:
		if !strings.Contains(indexDef, "hnsw") || !strings.Contains(indexDef, "vector_cosine_ops") {
			return domain.ErrIndexDefinitionConflict
		}
		return nil
	case err == pgx.ErrNoRows:
		// fall through to creation
	default:
		return domain.StoreUnavailable("ensure_index", err)
	}

	_, err = r.db.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX %s ON chunks USING hnsw (embedding vector_cosine_ops)`,
		r.indexName,
	))
	if err != nil {
		return domain.StoreUnavailable("create_index", err)
	}
	log.Printf("created vector index %q", r.indexName)
	return nil
}

// Upsert writes chunk+vector pairs keyed by content identity:
// insert-if-absent, replace-if-present. Each record is written atomically;
// the batch is not, but identity-keyed writes make a full retry converge to
// the same end state. A superseding write keeps the record's original
// insertion sequence so retrieval tie-breaks stay stable.
func (r *ChunkRepository) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (*domain.UpsertResult, error) {
	if len(chunks) != len(vectors) {
		return nil, domain.ErrChunkVectorMismatch
	}

	result := &domain.UpsertResult{}
	if len(chunks) == 0 {
		return result, nil
	}

	// Dimension errors indicate systemic misconfiguration: abort the whole
	// batch before any write.
	for _, v := range vectors {
		if len(v) != r.dimensions {
			return nil, domain.DimensionMismatch(r.dimensions, len(v))
		}
	}

	for i := range chunks {
		c := chunks[i]
		if err := domain.ValidateChunk(&c); err != nil {
			// A single malformed chunk does not abort the batch.
			log.Printf("skipping invalid chunk at position %d: %v", i, err)
			continue
		}

		var inserted bool
		err := r.db.QueryRow(ctx,
			`INSERT INTO chunks (chunk_id, source, stem, header_title, page_label, text, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (chunk_id) DO UPDATE SET
				source = EXCLUDED.source,
				header_title = EXCLUDED.header_title,
				page_label = EXCLUDED.page_label,
				text = EXCLUDED.text,
				embedding = EXCLUDED.embedding
			 RETURNING (xmax = 0) AS inserted`,
			c.ID,
			c.Source,
			domain.SourceStem(c.Source),
			nullableString(c.HeaderTitle),
			nullableString(c.PageLabel),
			c.Text,
			pgvector.NewVector(vectors[i]),
		).Scan(&inserted)
		if err != nil {
			return nil, domain.StoreUnavailable("upsert", err)
		}

		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	return result, nil
}

// Search runs an approximate nearest-neighbor query over the embedding column
// and returns the topK highest-scoring records. The candidate pool is
// candidateMultiplier times wider than topK; candidates are re-ranked by
// descending score with insertion sequence as the stable tie-break.
func (r *ChunkRepository) Search(ctx context.Context, queryVec []float32, topK int) ([]domain.ScoredChunk, error) {
	if topK < 1 {
		return nil, domain.ErrInvalidTopK
	}
	if len(queryVec) != r.dimensions {
		return nil, domain.DimensionMismatch(r.dimensions, len(queryVec))
	}

	rows, err := r.db.Query(ctx,
		`SELECT chunk_id, source, header_title, page_label, text, seq,
		        1.0 / (1.0 + (embedding <=> $1)) AS score
		 FROM chunks
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(queryVec), topK*candidateMultiplier,
	)
	if err != nil {
		return nil, domain.StoreUnavailable("search", err)
	}
	defer rows.Close()

	var candidates []domain.ScoredChunk
	for rows.Next() {
		var sc domain.ScoredChunk
		var header, page *string
		if err := rows.Scan(&sc.ID, &sc.Source, &header, &page, &sc.Text, &sc.Seq, &sc.Score); err != nil {
			return nil, domain.StoreUnavailable("search", err)
		}
		if header != nil {
			sc.HeaderTitle = *header
		}
		if page != nil {
			sc.PageLabel = *page
		}
		candidates = append(candidates, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreUnavailable("search", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Seq < candidates[j].Seq
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// CountBySource reports how many chunk records exist for a source stem.
func (r *ChunkRepository) CountBySource(ctx context.Context, stem string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunks WHERE stem = $1`, stem).Scan(&n)
	if err != nil {
		return 0, domain.StoreUnavailable("count", err)
	}
	return n, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
