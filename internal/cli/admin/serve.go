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

	"github.com/glossa-works/glossa/internal/api/handlers"
	"github.com/glossa-works/glossa/internal/config"
	"github.com/glossa-works/glossa/internal/database"
	"github.com/glossa-works/glossa/internal/jobs"
	"github.com/glossa-works/glossa/internal/llm"
	"github.com/glossa-works/glossa/internal/repository"
	"github.com/glossa-works/glossa/internal/server"
	"github.com/glossa-works/glossa/internal/service"
	"github.com/glossa-works/glossa/internal/storage"
	"github.com/glossa-works/glossa/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the glossa translation API server on the specified port",
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

	if !cfg.HasOpenAI() {
		return fmt.Errorf("GLOSSA_OPENAI_API_KEY is required")
	}

	if cfg.SentryDSN != "" {
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: cfg.SentryTracesSampleRate,
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

	pool, err := database.NewPoolFromURL(ctx, cfg.DatabaseURL)
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

	sourceRepo := repository.NewSourceRepository(pool)
	segmentRepo := repository.NewSegmentRepository(pool)
	linkRepo := repository.NewLinkRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	tokenizer, err := llm.NewTiktokenTokenizer(cfg.OpenAIModel)
	if err != nil {
		return fmt.Errorf("failed to create tokenizer: %w", err)
	}
	chunker := service.NewChunker(tokenizer)

	client := llm.NewClient(llm.Config{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.OpenAIModel,
		Temperature: cfg.OpenAITemperature,
		Timeout:     cfg.OpenAITimeout,
	})

	sourceSvc := service.NewSourceService(sourceRepo, txRunner)
	segmentSvc := service.NewSegmentService(segmentRepo, sourceRepo)
	provenance := service.NewProvenanceLinker(linkRepo)
	translationSvc := service.NewTranslationService(client, chunker, segmentSvc, provenance)
	engine := service.NewMultiSourceEngine(sourceRepo, segmentSvc, provenance, client, chunker)

	if cfg.HasS3() {
		archive, err := storage.NewS3Archive(ctx, storage.S3ArchiveConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 archive: %w", err)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		engine.SetArchive(archive)
	}

	var janitor *jobs.Janitor
	if cfg.StorageCleanupInterval > 0 {
		janitor = jobs.NewJanitor(jobs.NewStorageSweeper(segmentRepo), cfg.StorageCleanupInterval)
		go janitor.Run(ctx)
		log.Println("storage janitor started")
	}

	composer := service.KeyPromptComposer{}

	routerCfg := server.RouterConfig{
		SourceHandler:      handlers.NewSourceHandler(sourceSvc),
		SegmentHandler:     handlers.NewSegmentHandler(segmentSvc, provenance),
		TranslateHandler:   handlers.NewTranslateHandler(translationSvc, sourceSvc, composer),
		MultiSourceHandler: handlers.NewMultiSourceHandler(engine, sourceSvc, segmentSvc, composer),
	}

	router := server.NewRouter(routerCfg)

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

	if janitor != nil {
		janitor.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate needs a database/sql connection
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
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
