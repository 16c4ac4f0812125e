package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/textloom/textloom/internal/api/handlers"
	"github.com/textloom/textloom/internal/config"
	"github.com/textloom/textloom/internal/convert"
	"github.com/textloom/textloom/internal/database"
	"github.com/textloom/textloom/internal/openai"
	"github.com/textloom/textloom/internal/repository"
	"github.com/textloom/textloom/internal/server"
	"github.com/textloom/textloom/internal/service"
	"github.com/textloom/textloom/internal/storage"
	"github.com/textloom/textloom/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the textloom API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	chunkRepo := repository.NewChunkRepository(pool, cfg.EmbeddingDimensions)
	documentRepo := repository.NewDocumentRepository(pool)

	var archiver handlers.Archiver
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		archiver = s3Client
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("TEXTLOOM_OPENAI_API_KEY is required to serve")
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
		log.Printf("using remote converter at %s", cfg.ConverterURL)
	} else {
		converter = convert.NewPDFConverter()
	}

	writer := service.NewChunkWriter(cfg.OutputDir)

	ingestSvc, err := service.NewIngestService(converter, embeddingClient, chunkRepo, documentRepo, writer, service.IngestConfig{
		Chunk: service.ChunkConfig{
			MaxChars: cfg.ChunkMaxChars,
			Overlap:  cfg.ChunkOverlap,
		},
		HeaderMarker: cfg.HeaderMarker,
		MarkdownDir:  cfg.OutputDir,
	})
	if err != nil {
		return fmt.Errorf("failed to create ingest service: %w", err)
	}

	promptText := ""
	if cfg.PromptPath != "" {
		data, err := os.ReadFile(cfg.PromptPath)
		if err != nil {
			return fmt.Errorf("failed to read prompt template: %w", err)
		}
		promptText = string(data)
	}

	querySvc, err := service.NewQueryService(chunkRepo, embeddingClient, embeddingClient, cfg.TopK, promptText)
	if err != nil {
		return fmt.Errorf("failed to create query service: %w", err)
	}

	router := server.NewRouter(server.RouterConfig{
		APIKey:          cfg.APIKey,
		DocumentHandler: handlers.NewDocumentHandler(ingestSvc, archiver, cfg.DataDir),
		QueryHandler:    handlers.NewQueryHandler(querySvc),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate needs a database/sql handle
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else {
		log.Printf("migrations: database at version %d", version)
	}

	return nil
}
