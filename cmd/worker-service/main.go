package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/storeloop/catalog-orchestrator/internal/ai"
	"github.com/storeloop/catalog-orchestrator/internal/aiscan"
	"github.com/storeloop/catalog-orchestrator/internal/catalog"
	"github.com/storeloop/catalog-orchestrator/internal/config"
	"github.com/storeloop/catalog-orchestrator/internal/domain"
	"github.com/storeloop/catalog-orchestrator/internal/ledger"
	"github.com/storeloop/catalog-orchestrator/internal/products"
	"github.com/storeloop/catalog-orchestrator/internal/queue"
	"github.com/storeloop/catalog-orchestrator/internal/ratelimit"
	syncpipe "github.com/storeloop/catalog-orchestrator/internal/sync"
	"github.com/storeloop/catalog-orchestrator/internal/telemetry"
	"github.com/storeloop/catalog-orchestrator/shared/logger"
	"github.com/storeloop/catalog-orchestrator/shared/postgresql"
	"github.com/storeloop/catalog-orchestrator/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.Bool("sandbox", cfg.App.Sandbox),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	db := dbClient.GetDB()
	jobLedger := ledger.NewStore(db, appLogger.Logger)

	transport := queue.NewAMQPTransport(rabbitClient, jobLedger, appLogger.Logger, queue.AMQPConfig{
		RetryBackoff: cfg.Worker.RetryBackoff,
		JobTimeout:   cfg.Worker.JobTimeout,
		Prefetch:     cfg.RabbitMQ.Consumer.PrefetchCount,
	})
	if err := transport.DeclareQueues(); err != nil {
		return fmt.Errorf("failed to declare queues: %w", err)
	}

	productStore := products.NewPostgresStore(db)
	gate := ratelimit.NewGate(ratelimit.NewPostgresStore(db), cfg.AI.Cooldown.Window, cfg.AI.Cooldown.MaxScans, appLogger.Logger)
	artifacts := ai.NewStore(db, appLogger.Logger)

	sources := catalog.NewRegistry()
	generator, err := ai.NewGenerator(cfg.App.Sandbox)
	if err != nil {
		return fmt.Errorf("AI provider: %w", err)
	}
	if cfg.App.Sandbox {
		sources.Register("sandbox", catalog.NewStaticSource(sandboxItems(), cfg.Sync.PageSize))
		appLogger.Info("Sandbox marketplace and generator registered")
	}

	syncCfg := syncpipe.Config{BatchSize: cfg.Sync.BatchSize, PageSize: cfg.Sync.PageSize}
	aiCfg := aiscan.Config{BatchSize: cfg.AI.BatchSize, BatchDelay: cfg.AI.BatchDelay, ItemDelay: cfg.AI.ItemDelay}

	syncOrchestrator := syncpipe.NewOrchestrator(jobLedger, transport, sources, productStore, syncCfg, appLogger.Logger)
	syncBatch := syncpipe.NewBatchWorker(jobLedger, sources, productStore, appLogger.Logger)
	scanOrchestrator := aiscan.NewOrchestrator(jobLedger, transport, gate, aiCfg, appLogger.Logger)
	scanWorker := aiscan.NewWorker(jobLedger, gate, generator, artifacts, productStore, aiCfg, appLogger.Logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumers := []struct {
		queue       string
		jobType     domain.JobType
		concurrency int
		handler     queue.Handler
	}{
		{queue.QueueSyncOrchestrator, domain.JobTypeSyncOrchestrator, cfg.Worker.Concurrency.SyncOrchestrator, syncOrchestrator.Handle},
		{queue.QueueSyncBatch, domain.JobTypeSyncBatch, cfg.Worker.Concurrency.SyncBatch, syncBatch.Handle},
		{queue.QueueAIScan, domain.JobTypeAIScan, cfg.Worker.Concurrency.AIScan, scanOrchestrator.Handle},
		{queue.QueueAIBatch, domain.JobTypeAIBatch, cfg.Worker.Concurrency.AIBatch, scanWorker.Handle},
	}
	for _, c := range consumers {
		if err := transport.Consume(ctx, c.queue, c.jobType, c.concurrency, c.handler); err != nil {
			return fmt.Errorf("failed to start consumer for %s: %w", c.queue, err)
		}
		appLogger.Info("Consumer started",
			slog.String("queue", c.queue),
			slog.Int("concurrency", c.concurrency),
		)
	}

	// Expose metrics alongside the consumers
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		Handler: telemetry.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Metrics server failed",
				slog.Any("error", err),
			)
		}
	}()

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	appLogger.Info("Received signal, shutting down gracefully",
		slog.String("signal", sig.String()),
	)

	// Cancel context to stop consumers
	cancel()

	// Give workers time to finish in-flight deliveries
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		transport.Wait()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Consumers stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	_ = metricsSrv.Shutdown(shutdownCtx)

	// Cleanup function to close all resources
	cleanup := func() {
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	cleanup()

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// sandboxItems seeds the sandbox marketplace with a small deterministic
// catalog.
func sandboxItems() []catalog.Item {
	now := time.Now().UTC()
	items := make([]catalog.Item, 0, 230)
	for i := 1; i <= 230; i++ {
		items = append(items, catalog.Item{
			ExternalID:  fmt.Sprintf("sandbox-item-%03d", i),
			Title:       fmt.Sprintf("Sandbox Item %d", i),
			Description: "Seeded catalog entry for local development",
			Category:    []string{"apparel", "home", "toys"}[i%3],
			Price:       9.99 + float64(i%40),
			UpdatedAt:   now.Add(-time.Duration(i) * time.Hour),
		})
	}
	return items
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		MaxPriority:        cfg.MaxPriority,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
