package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/adapter/healthapi"
	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/adapter/httpapi"
	kafkaadapter "github.com/plutonik-a/berlin-wastewater-dashboard/internal/adapter/kafka"
	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/adapter/store"
	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/config"
	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/observability"
	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	fetcher := healthapi.NewClient(cfg.APIBaseURL, cfg.APITimeout, cfg.APIPageSize, logger)
	datasetStore := store.New(cfg.DatasetPath, logger)

	// Composite publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.CompositePublisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = kafkaPublisher
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	refresher := pipeline.New(fetcher, datasetStore, publisher, cfg.PopulationWeights,
		cfg.RefreshInterval, logger, metrics)

	srv := httpapi.NewServer(cfg.HTTPAddr, refresher, refresher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh pipeline.
	go func() {
		if err := refresher.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
