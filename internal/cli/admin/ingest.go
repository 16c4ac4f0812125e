package admin

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/textloom/textloom/internal/config"
	"github.com/textloom/textloom/internal/convert"
	"github.com/textloom/textloom/internal/database"
	"github.com/textloom/textloom/internal/openai"
	"github.com/textloom/textloom/internal/repository"
	"github.com/textloom/textloom/internal/service"
)

// IngestCmd returns the ingest command, which runs the pipeline directly
// against the store without going through the HTTP API.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest PDF documents into the chunk store",
		Long: `Convert, split, embed, and index PDF documents.

With no arguments, every PDF in the configured data directory is ingested.`,
		RunE: runIngest,
	}

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("TEXTLOOM_OPENAI_API_KEY is required to ingest")
	}

	paths := args
	if len(paths) == 0 {
		paths, err = collectPDFs(cfg.DataDir)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no PDF files found in %s", cfg.DataDir)
		}
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	embeddingClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
	})

	var converter service.DocumentConverter
	if cfg.HasRemoteConverter() {
		converter = convert.NewRemoteConverter(cfg.ConverterURL)
	} else {
		converter = convert.NewPDFConverter()
	}

	svc, err := service.NewIngestService(
		converter,
		embeddingClient,
		repository.NewChunkRepository(pool, cfg.EmbeddingDimensions),
		repository.NewDocumentRepository(pool),
		service.NewChunkWriter(cfg.OutputDir),
		service.IngestConfig{
			Chunk: service.ChunkConfig{
				MaxChars: cfg.ChunkMaxChars,
				Overlap:  cfg.ChunkOverlap,
			},
			HeaderMarker: cfg.HeaderMarker,
			MarkdownDir:  cfg.OutputDir,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create ingest service: %w", err)
	}

	for _, path := range paths {
		result, err := svc.Ingest(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		log.Printf("ingested %s: %d sections, %d chunks (%d inserted, %d updated)",
			result.Filename, result.SectionCount, result.ChunkCount, result.Inserted, result.Updated)
	}

	return nil
}

func collectPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}
