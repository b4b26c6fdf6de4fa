package admin

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/portside-labs/portside/internal/api/handlers"
	"github.com/portside-labs/portside/internal/comms"
	"github.com/portside-labs/portside/internal/config"
	"github.com/portside-labs/portside/internal/domain"
	"github.com/portside-labs/portside/internal/events"
	"github.com/portside-labs/portside/internal/jobs"
	"github.com/portside-labs/portside/internal/matching"
	"github.com/portside-labs/portside/internal/repository"
	"github.com/portside-labs/portside/internal/server"
	"github.com/portside-labs/portside/internal/service"
	"github.com/portside-labs/portside/internal/storage"
	"github.com/portside-labs/portside/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the portside API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not start the background discovery worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Debug)

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
			logger.Warn().Err(err).Msg("telemetry init failed, continuing without tracing")
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info().Msg("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	threadLinkRepo := repository.NewThreadLinkRepository(pool)
	auditRepo := repository.NewAuditLogRepository(pool)
	discoveryJobRepo := repository.NewDiscoveryJobRepository(pool)
	operatorRepo := repository.NewOperatorRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)

	if cfg.InitOperatorName != "" {
		if err := bootstrapInitialOperator(ctx, cfg, operatorRepo, apiKeyRepo, logger); err != nil {
			return fmt.Errorf("failed to bootstrap initial operator: %w", err)
		}
	}

	sinks := []events.Sink{events.NewLogSink(logger)}
	if cfg.HasWebhook() {
		sinks = append(sinks, events.NewWebhookSink(cfg.WebhookURL, logger))
		logger.Info().Str("url", cfg.WebhookURL).Msg("webhook event sink enabled")
	}
	dispatcher := events.NewDispatcher(cfg.EventBufferSize, logger, sinks...)
	dispatcher.Start(ctx)

	var archive service.EvidenceArchiver
	var evidenceProvider handlers.EvidenceProvider
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		logger.Info().Str("bucket", cfg.S3Bucket).Msg("evidence archive ready")
		evidenceArchive := storage.NewEvidenceArchive(s3Client)
		archive = evidenceArchive
		evidenceProvider = evidenceArchive
	}

	var searcher service.ConversationSearcher
	if cfg.HasComms() {
		searcher = comms.NewClient(comms.Config{
			BaseURL:  cfg.CommsBaseURL,
			APIToken: cfg.CommsToken,
			Timeout:  cfg.CommsTimeout,
		})
	} else {
		logger.Warn().Msg("comms API not configured, discovery will find no candidates")
		searcher = &unconfiguredSearcher{}
	}

	scorer := matching.NewScorer(cfg.Weights())
	classifier := matching.NewClassifier(cfg.Thresholds())

	uuidGen := &service.DefaultUUIDGenerator{}

	discoverySvc := service.NewDiscoveryService(service.DiscoveryServiceConfig{
		Links:      threadLinkRepo,
		Jobs:       discoveryJobRepo,
		Searcher:   searcher,
		Scorer:     scorer,
		Classifier: classifier,
		Audit:      auditRepo,
		Events:     dispatcher,
		Archive:    archive,
		Logger:     logger,
	})
	reviewSvc := service.NewReviewService(threadLinkRepo, auditRepo, dispatcher, logger)
	authSvc := service.NewAuthService(operatorRepo, apiKeyRepo, uuidGen)

	var worker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if !noWorker {
		processor := jobs.NewDiscoveryWorker(discoveryJobRepo, discoverySvc, logger)
		worker = jobs.NewWorker(processor, cfg.WorkerPollInterval, logger)
		go worker.Start(ctx)
		logger.Info().Msg("discovery worker started")
	}

	threadHandler := handlers.NewThreadHandler(discoverySvc, reviewSvc, evidenceProvider)
	authHandler := handlers.NewAuthHandler(authSvc)

	routerCfg := server.RouterConfig{
		AuthValidator: authSvc,
		ThreadHandler: threadHandler,
		AuthHandler:   authHandler,
		Logger:        logger,
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// In-flight requests emit events until Shutdown returns, so the
	// dispatcher stops last.
	err = srv.Shutdown(shutdownCtx)
	if worker != nil {
		worker.Stop()
	}
	dispatcher.Stop()
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server exited")
	return nil
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", "portside").
		Logger()
}

// unconfiguredSearcher stands in when no comms API is configured. Every
// search reports unavailability; the orchestrator degrades to zero
// candidates and records the skip.
type unconfiguredSearcher struct{}

func (s *unconfiguredSearcher) SearchByContact(ctx context.Context, handle string) ([]domain.Candidate, error) {
	return nil, domain.NewDomainError(domain.ErrCodeUnavailable, "comms API not configured: COMMS_BASE_URL required")
}

func (s *unconfiguredSearcher) SearchByQuery(ctx context.Context, query string) ([]domain.Candidate, error) {
	return nil, domain.NewDomainError(domain.ErrCodeUnavailable, "comms API not configured: COMMS_BASE_URL required")
}

func bootstrapInitialOperator(ctx context.Context, cfg *config.Config, operatorRepo *repository.OperatorRepository, apiKeyRepo *repository.APIKeyRepository, logger zerolog.Logger) error {
	op, err := operatorRepo.GetByName(ctx, cfg.InitOperatorName)
	if err != nil && err != domain.ErrOperatorNotFound {
		return fmt.Errorf("failed to check existing operator: %w", err)
	}

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(operatorRepo, apiKeyRepo, uuidGen)

	if op == nil {
		op, err = authSvc.CreateOperator(ctx, cfg.InitOperatorName, "")
		if err != nil {
			return fmt.Errorf("failed to create operator: %w", err)
		}
		logger.Info().Str("name", op.Name).Str("id", op.ID).Msg("bootstrap: created operator")
	} else {
		logger.Info().Str("name", op.Name).Str("id", op.ID).Msg("bootstrap: operator already exists")
	}

	if cfg.InitAPIKey != "" {
		if !service.IsValidAPIToken(cfg.InitAPIKey) {
			return fmt.Errorf("invalid PORTSIDE_INIT_API_KEY format (expected 'pts_<64 hex chars>')")
		}

		existingKey, err := authSvc.GetAPIKeyByHash(ctx, cfg.InitAPIKey)
		if err == nil && existingKey != nil {
			logger.Info().Str("id", existingKey.ID).Msg("bootstrap: API key already exists")
			return nil
		}

		if err := authSvc.CreateAPIKeyWithToken(ctx, op.ID, "bootstrap", cfg.InitAPIKey); err != nil {
			return fmt.Errorf("failed to create API key: %w", err)
		}
		logger.Info().Msg("bootstrap: created API key")
	}

	return nil
}

func runMigrations(databaseURL string, logger zerolog.Logger) error {
	// Create a sql.DB connection for golang-migrate
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
		logger.Info().Msg("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		logger.Info().Uint("version", version).Msg("migrations: database is up to date")
	} else {
		logger.Info().Uint("version", version).Msg("migrations: applied successfully")
	}

	return nil
}
