package service

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/textloom/textloom/internal/domain"
	"github.com/textloom/textloom/internal/telemetry"
)

// DocumentConverter is the document-conversion capability: source file in,
// markdown with page markers out.
type DocumentConverter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// Embedder is the embedding capability.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkStore is the index/upsert surface of the vector store.
type ChunkStore interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (*domain.UpsertResult, error)
}

// DocumentRegistry records completed ingestions.
type DocumentRegistry interface {
	Upsert(ctx context.Context, d *domain.Document) error
	List(ctx context.Context) ([]*domain.Document, error)
}

// SplitPersister writes the JSONL audit trail for splits.
type SplitPersister interface {
	WriteSections(sections []domain.Section, stem string) (int, error)
	WriteChunks(chunks []domain.Chunk, stem string) (int, error)
}

// IngestConfig carries the per-deployment ingestion parameters.
type IngestConfig struct {
	Chunk        ChunkConfig
	HeaderMarker string
	// MarkdownDir receives the converted markdown artifact; empty disables it.
	MarkdownDir string
}

// IngestResult summarizes one document's ingestion.
type IngestResult struct {
	Filename     string
	SectionCount int
	ChunkCount   int
	VectorCount  int
	Inserted     int
	Updated      int
}

// IngestService runs the ingestion pipeline: convert, split, chunk, audit,
// embed, and upsert. Each call is independent end-to-end; the store is the
// only shared resource, and identity-keyed upserts make a full retry of a
// failed ingestion converge to the same end state.
type IngestService struct {
	converter DocumentConverter
	embedder  Embedder
	store     ChunkStore
	registry  DocumentRegistry
	writer    SplitPersister
	cfg       IngestConfig
}

func NewIngestService(
	converter DocumentConverter,
	embedder Embedder,
	store ChunkStore,
	registry DocumentRegistry,
	writer SplitPersister,
	cfg IngestConfig,
) (*IngestService, error) {
	if err := cfg.Chunk.Validate(); err != nil {
		return nil, err
	}
	if cfg.HeaderMarker == "" {
		cfg.HeaderMarker = DefaultHeaderMarker
	}
	return &IngestService{
		converter: converter,
		embedder:  embedder,
		store:     store,
		registry:  registry,
		writer:    writer,
		cfg:       cfg,
	}, nil
}

// Ingest processes one source document. A conversion failure aborts before
// anything is persisted; zero extracted chunks is an empty result, not an
// error.
func (s *IngestService) Ingest(ctx context.Context, path string) (*IngestResult, error) {
	filename := filepath.Base(path)
	stem := domain.SourceStem(path)
	result := &IngestResult{Filename: filename}

	ctx, span := telemetry.StartSpan(ctx, "IngestService.Ingest", telemetry.SpanAttributes{
		Source:    filename,
		Operation: "ingest",
	})
	defer span.End()

	log.Printf("starting conversion for %s", filename)
	markdown, err := s.converter.Convert(ctx, path)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if s.cfg.MarkdownDir != "" {
		if err := s.writeMarkdown(stem, markdown); err != nil {
			return nil, err
		}
	}

	sections := SplitSections(markdown, s.cfg.HeaderMarker)
	result.SectionCount = len(sections)

	chunks, err := ChunkSections(sections, filename, s.cfg.Chunk)
	if err != nil {
		return nil, err
	}
	result.ChunkCount = len(chunks)
	log.Printf("split %s into %d sections, %d chunks", filename, len(sections), len(chunks))

	if s.writer != nil {
		if _, err := s.writer.WriteSections(sections, stem); err != nil {
			return nil, err
		}
		if _, err := s.writer.WriteChunks(chunks, stem); err != nil {
			return nil, err
		}
	}

	if len(chunks) == 0 {
		log.Printf("no chunks extracted from %s, skipping embedding", filename)
		return result, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	result.VectorCount = len(vectors)
	log.Printf("generated %d embeddings for %s", len(vectors), filename)

	if err := withRetry(ctx, func() error { return s.store.EnsureIndex(ctx) }); err != nil {
		return nil, err
	}

	var upserted *domain.UpsertResult
	err = withRetry(ctx, func() error {
		upserted, err = s.store.Upsert(ctx, chunks, vectors)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.Inserted = upserted.Inserted
	result.Updated = upserted.Updated
	log.Printf("upserted %d chunks for %s (%d inserted, %d updated)",
		upserted.Inserted+upserted.Updated, filename, upserted.Inserted, upserted.Updated)

	if s.registry != nil {
		doc := &domain.Document{
			ID:           uuid.NewString(),
			Filename:     filename,
			Stem:         stem,
			SectionCount: result.SectionCount,
			ChunkCount:   result.ChunkCount,
			IngestedAt:   time.Now().UTC(),
		}
		if err := withRetry(ctx, func() error { return s.registry.Upsert(ctx, doc) }); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// ListDocuments returns the ingestion registry.
func (s *IngestService) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	if s.registry == nil {
		return []*domain.Document{}, nil
	}
	return s.registry.List(ctx)
}

func (s *IngestService) writeMarkdown(stem, markdown string) error {
	if err := os.MkdirAll(s.cfg.MarkdownDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.cfg.MarkdownDir, stem+".md"), []byte(markdown), 0o644)
}
