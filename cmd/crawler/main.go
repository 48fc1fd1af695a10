// Package main provides the entry point for the ingestion crawler.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/checkpoint"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/config"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/crawler"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/database"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/events"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/observability"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/repository"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/scheduler"
	httpserver "github.com/Jiejieojoyuyu/article-recommendation-project/internal/server/http"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/upstream/openalex"
)

// crawlRunLockKey is the Postgres advisory lock serializing ingestion runs
// on one database ("crawl" in ASCII).
const crawlRunLockKey int64 = 0x637261776c

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to the configuration file")
	concurrent := flag.Int("concurrent", 0, "Override the fetch concurrency (1-5)")
	status := flag.Bool("status", false, "Print a status report from the checkpoint and store, then exit")
	quiet := flag.Bool("quiet", false, "Log warnings and errors only")
	flag.Parse()

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if *concurrent != 0 {
		if *concurrent < 1 || *concurrent > 5 {
			return fmt.Errorf("concurrent must be between 1 and 5, got %d", *concurrent)
		}
		cfg.Crawl.Concurrency = *concurrent
	}
	if *quiet {
		cfg.Logging.Level = "warn"
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if *status {
		return printStatus(ctx, cfg, db)
	}

	logger.Info().Msg("ingestion crawler starting")

	// One run per database. The lock is session-scoped and released on exit.
	locked, err := db.AcquireAdvisoryLock(ctx, crawlRunLockKey)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another crawler holds the run lock: %w", domain.ErrRunActive)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.ReleaseAdvisoryLock(releaseCtx, crawlRunLockKey); err != nil {
			logger.Error().Err(err).Msg("failed to release run lock")
		}
	}()

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Metrics are optional; the controller and publisher tolerate nil.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("crawler")
	}

	store := repository.NewPgStore(db)
	tracker := checkpoint.NewTracker(cfg.Crawl.CheckpointPath, logger)

	client := openalex.New(openalex.Config{
		BaseURL:     cfg.OpenAlex.BaseURL,
		Email:       cfg.OpenAlex.Email,
		UserAgent:   cfg.OpenAlex.UserAgent,
		Sort:        cfg.OpenAlex.Sort,
		PerPage:     cfg.Crawl.PageSize,
		Timeout:     cfg.Crawl.RequestTimeout,
		RateLimit:   rateFromInterval(cfg.Crawl.MinRequestInterval),
		MaxAttempts: cfg.Crawl.MaxAttempts,
		OnRetry: func(reason string) {
			if metrics != nil {
				metrics.RecordFetchRetry(reason)
			}
		},
	})

	publisher := events.NewPublisher(events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		BatchTimeout: cfg.Kafka.BatchTimeout,
		WriteTimeout: cfg.Kafka.WriteTimeout,
	}, metrics, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	controller := crawler.New(cfg.Crawl, client, store, tracker, publisher, metrics, logger)

	// The operational server is optional and never fatal to the run.
	var httpSrv *httpserver.Server
	if cfg.Server.Enabled {
		var metricsHandler http.Handler
		if cfg.Metrics.Enabled {
			metricsHandler = promhttp.Handler()
		}

		httpSrv = httpserver.NewServer(httpserver.Config{
			Address:      cfg.Server.HTTPAddress(),
			MetricsPath:  cfg.Metrics.Path,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  2 * time.Minute,
		}, controller, tracker, repository.NewPgWorkRepository(db), repository.NewPgRelationRepository(db), db, metricsHandler, logger)

		go func() {
			if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("HTTP server error")
			}
		}()
	}

	reason, runErr := controller.Run(ctx)

	if httpSrv != nil {
		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
		cancel()
	}

	if runErr != nil {
		return fmt.Errorf("ingestion run: %w", runErr)
	}

	switch reason {
	case domain.StopReasonCompleted:
		logger.Info().Msg("run complete: every task finished or reached its cap")
	case domain.StopReasonBudget:
		logger.Info().Msg("run stopped: storage ceiling reached; raise size_ceiling_mb to continue")
	case domain.StopReasonSignal:
		logger.Info().Msg("run stopped: shutdown requested; progress checkpointed for resume")
	}
	return nil
}

// rateFromInterval converts a minimum request spacing into requests per
// second for the client's limiter.
func rateFromInterval(interval time.Duration) float64 {
	if interval <= 0 {
		return 1
	}
	return float64(time.Second) / float64(interval)
}

// statusReport is the -status output, assembled from the checkpoint file
// and live store counts.
type statusReport struct {
	Stats           domain.RunStats         `json:"stats"`
	StoredWorks     int64                   `json:"stored_works"`
	StoredRelations int64                   `json:"stored_relations"`
	FootprintMB     float64                 `json:"footprint_mb"`
	Domains         []domain.DomainProgress `json:"domains"`
	TasksTotal      int                     `json:"tasks_total"`
	TasksCompleted  int                     `json:"tasks_completed"`
}

// printStatus writes a JSON status report to stdout. It reads the
// checkpoint and the store but takes no run lock, so it works alongside an
// active crawler.
func printStatus(ctx context.Context, cfg *config.Config, db *database.DB) error {
	tracker := checkpoint.NewTracker(cfg.Crawl.CheckpointPath, zerolog.Nop())
	if err := tracker.Load(); err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}

	store := repository.NewPgStore(db)
	works, err := store.WorkCount(ctx)
	if err != nil {
		return fmt.Errorf("count stored works: %w", err)
	}
	relations, err := store.RelationCount(ctx)
	if err != nil {
		return fmt.Errorf("count stored relations: %w", err)
	}
	footprint, err := store.FootprintBytes(ctx)
	if err != nil {
		return fmt.Errorf("measure store footprint: %w", err)
	}
	counts, err := store.WorkCountsByDomain(ctx)
	if err != nil {
		return fmt.Errorf("count stored records: %w", err)
	}

	snapshot := tracker.Snapshot()
	completed := 0
	for _, task := range snapshot {
		if task.Completed {
			completed++
		}
	}

	report := statusReport{
		Stats:           tracker.Stats(),
		StoredWorks:     works,
		StoredRelations: relations,
		FootprintMB:     float64(footprint) / (1 << 20),
		Domains:         scheduler.New(cfg.Crawl.Domains).Progress(snapshot, counts),
		TasksTotal:      len(snapshot),
		TasksCompleted:  completed,
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status report: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
