// Package main provides the entry point for the theme discovery worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/theme-discovery-service/internal/bus"
	"github.com/helixir/theme-discovery-service/internal/cluster"
	"github.com/helixir/theme-discovery-service/internal/config"
	"github.com/helixir/theme-discovery-service/internal/database"
	"github.com/helixir/theme-discovery-service/internal/dedup"
	"github.com/helixir/theme-discovery-service/internal/embed"
	"github.com/helixir/theme-discovery-service/internal/label"
	"github.com/helixir/theme-discovery-service/internal/metadata"
	"github.com/helixir/theme-discovery-service/internal/observability"
	"github.com/helixir/theme-discovery-service/internal/pipeline"
	"github.com/helixir/theme-discovery-service/internal/repository"
	"github.com/helixir/theme-discovery-service/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("theme-discovery-service worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	if cfg.Database.MigrationAutoRun {
		if err := runMigrations(db, cfg.Database.MigrationPath, logger); err != nil {
			return err
		}
	}

	documentRepo := repository.NewPgDocumentRepository(db)
	sectionRepo := repository.NewPgSectionRepository(db)
	themeRepo := repository.NewPgThemeRepository(db)
	runRepo := repository.NewPgClusterRunRepository(db)

	metrics := observability.NewMetrics("theme_discovery")

	publisher := bus.NewPublisher(cfg.Kafka, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close trigger publisher")
		}
	}()

	resolver := metadata.NewChain(
		metadata.NewCrossrefClient(cfg.Metadata.CrossrefBaseURL, cfg.Metadata.Timeout, cfg.Metadata.RateLimit),
		metadata.NewOpenAlexClient(cfg.Metadata.OpenAlexBaseURL, cfg.Metadata.Timeout, cfg.Metadata.RateLimit),
	)
	matcher := dedup.NewMatcher(cfg.Dedup.TitleSimilarityThreshold)

	coordinator := pipeline.NewCoordinator(documentRepo, sectionRepo, resolver, matcher, publisher, metrics, logger)
	embedStage := embed.NewStage(sectionRepo, embed.NewClient(cfg.Embedding), publisher, metrics, logger, cfg.Embedding)
	clusterEngine := cluster.NewEngine(db, sectionRepo, themeRepo, runRepo, publisher, metrics, logger, cfg.Clustering)
	labelEngine := label.NewEngine(themeRepo, publisher, metrics, logger, cfg.Labeling)

	handlers := pipeline.NewHandlers(coordinator, embedStage, clusterEngine, labelEngine, metrics, logger)

	var wg sync.WaitGroup
	var consumers []*bus.Consumer
	for topic, handler := range handlers.ByTopic() {
		consumer := bus.NewConsumer(cfg.Kafka, topic, handler, metrics, logger)
		consumers = append(consumers, consumer)

		wg.Add(1)
		go func(c *bus.Consumer, topic string) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Str("topic", topic).Msg("consumer stopped unexpectedly")
			}
		}(consumer, topic)
	}
	logger.Info().Int("consumers", len(consumers)).Msg("trigger consumers started")

	srv := server.New(cfg.Server, cfg.Metrics, db, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("liveness server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("liveness server shutdown failed")
	}

	for _, consumer := range consumers {
		if err := consumer.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close consumer")
		}
	}
	wg.Wait()

	logger.Info().Msg("worker stopped")
	return nil
}

// runMigrations applies pending migrations at startup.
func runMigrations(db *database.DB, path string, logger zerolog.Logger) error {
	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close migrator")
		}
	}()

	start := time.Now()
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info().Dur("duration", time.Since(start)).Msg("migrations applied")
	return nil
}
