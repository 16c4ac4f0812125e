//go:build integration

package repository

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textloom/textloom/internal/domain"
	"github.com/textloom/textloom/internal/testutil"
)

const testDimensions = 768

// angledVector embeds a direction in the first two components so cosine
// ranking is predictable. theta 0 points at the reference query vector.
func angledVector(theta float64) []float32 {
	v := make([]float32, testDimensions)
	v[0] = float32(math.Cos(theta))
	v[1] = float32(math.Sin(theta))
	return v
}

func TestChunkRepositoryIntegration(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewChunkRepository(pool, testDimensions)

	t.Run("EnsureIndex is idempotent", func(t *testing.T) {
		require.NoError(t, repo.EnsureIndex(ctx))
		require.NoError(t, repo.EnsureIndex(ctx))
	})

	t.Run("EnsureIndex rejects incompatible existing index", func(t *testing.T) {
		_, err := pool.Exec(ctx, `CREATE INDEX other_index_name ON chunks USING btree (chunk_id)`)
		require.NoError(t, err)
		defer pool.Exec(ctx, `DROP INDEX other_index_name`)

		conflicting := &ChunkRepository{db: pool, indexName: "other_index_name", dimensions: testDimensions}
		assert.ErrorIs(t, conflicting.EnsureIndex(ctx), domain.ErrIndexDefinitionConflict)
	})

	t.Run("Upsert inserts then updates by content identity", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		chunks := []domain.Chunk{
			domain.NewChunk("alpha text", "Intro", "Page 1", "report.pdf"),
			domain.NewChunk("beta text", "Detail", "Page 2", "report.pdf"),
		}
		vectors := [][]float32{angledVector(0), angledVector(0.5)}

		result, err := repo.Upsert(ctx, chunks, vectors)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Inserted)
		assert.Equal(t, 0, result.Updated)

		// Same content, same identities: the second write replaces in place.
		result, err = repo.Upsert(ctx, chunks, vectors)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Inserted)
		assert.Equal(t, 2, result.Updated)

		n, err := repo.CountBySource(ctx, "report")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("Upsert rejects mismatched batch lengths", func(t *testing.T) {
		_, err := repo.Upsert(ctx, []domain.Chunk{domain.NewChunk("x", "", "", "a.pdf")}, nil)
		assert.ErrorIs(t, err, domain.ErrChunkVectorMismatch)
	})

	t.Run("Upsert rejects wrong vector dimension before writing", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		chunks := []domain.Chunk{domain.NewChunk("x", "", "", "a.pdf")}
		_, err := repo.Upsert(ctx, chunks, [][]float32{make([]float32, 12)})

		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeDimensionMismatch, domainErr.Code)

		n, err := repo.CountBySource(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("Search ranks by similarity and caps at topK", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		chunks := []domain.Chunk{
			domain.NewChunk("closest", "", "", "doc.pdf"),
			domain.NewChunk("middle", "", "", "doc.pdf"),
			domain.NewChunk("farthest", "", "", "doc.pdf"),
		}
		vectors := [][]float32{angledVector(0.1), angledVector(0.6), angledVector(1.4)}
		_, err := repo.Upsert(ctx, chunks, vectors)
		require.NoError(t, err)

		results, err := repo.Search(ctx, angledVector(0), 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "closest", results[0].Text)
		assert.Equal(t, "middle", results[1].Text)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("Search returns everything when topK exceeds store size", func(t *testing.T) {
		results, err := repo.Search(ctx, angledVector(0), 50)
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})

	t.Run("Search rejects invalid topK and wrong dimensions", func(t *testing.T) {
		_, err := repo.Search(ctx, angledVector(0), 0)
		assert.ErrorIs(t, err, domain.ErrInvalidTopK)

		_, err = repo.Search(ctx, make([]float32, 3), 1)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeDimensionMismatch, domainErr.Code)
	})
}

func TestDocumentRepositoryIntegration(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	t.Run("Upsert and GetByStem round-trip", func(t *testing.T) {
		doc := &domain.Document{
			ID:           "11111111-1111-1111-1111-111111111111",
			Filename:     "report.pdf",
			Stem:         "report",
			SectionCount: 4,
			ChunkCount:   9,
		}
		require.NoError(t, repo.Upsert(ctx, doc))

		got, err := repo.GetByStem(ctx, "report")
		require.NoError(t, err)
		assert.Equal(t, "report.pdf", got.Filename)
		assert.Equal(t, 9, got.ChunkCount)
	})

	t.Run("Upsert replaces registration for the same stem", func(t *testing.T) {
		doc := &domain.Document{
			ID:           "22222222-2222-2222-2222-222222222222",
			Filename:     "report.pdf",
			Stem:         "report",
			SectionCount: 5,
			ChunkCount:   11,
		}
		require.NoError(t, repo.Upsert(ctx, doc))

		docs, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, 11, docs[0].ChunkCount)
	})

	t.Run("GetByStem reports missing documents", func(t *testing.T) {
		_, err := repo.GetByStem(ctx, "never-ingested")
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})
}
