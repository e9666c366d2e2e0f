package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/tourkit/address-resolver/internal/adapter/http"
	kafkaadapter "github.com/tourkit/address-resolver/internal/adapter/kafka"
	"github.com/tourkit/address-resolver/internal/adapter/nominatim"
	"github.com/tourkit/address-resolver/internal/config"
	"github.com/tourkit/address-resolver/internal/domain"
	"github.com/tourkit/address-resolver/internal/normalize"
	"github.com/tourkit/address-resolver/internal/observability"
	"github.com/tourkit/address-resolver/internal/pipeline"
	"github.com/tourkit/address-resolver/internal/resolver"
	"github.com/tourkit/address-resolver/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := store.Migrate(context.Background(), db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	policy := resolver.NewRetryPolicy(cfg.RetryBase, cfg.RetryMaxBackoff, cfg.RetryJitter, cfg.RetryThreshold)

	cache := store.NewGeoCache(db, clock)
	synonyms := store.NewSynonymStore(db, clock, logger)
	ledger := store.NewFailureLedger(db, clock, policy.Backoff)
	queue := store.NewManualQueue(db, clock)

	// Geocoding is feature-flagged; with it off the service still answers
	// from synonyms and the cache.
	var geocoder domain.Geocoder
	if cfg.GeocoderEnabled {
		geocoder = nominatim.NewClient(cfg.GeocoderBaseURL, cfg.GeocoderContact, cfg.GeocoderRPS, cfg.GeocoderTimeout, logger, metrics)
		logger.Info("geocoding enabled", "base_url", cfg.GeocoderBaseURL, "rps", cfg.GeocoderRPS, "timeout", cfg.GeocoderTimeout)
	} else {
		logger.Info("geocoding disabled")
	}

	res := resolver.New(resolver.Options{
		Normalizer:     normalize.New(cfg.NormalizeMaxPasses),
		Synonyms:       synonyms,
		Cache:          cache,
		Ledger:         ledger,
		Queue:          queue,
		Geocoder:       geocoder,
		GeocodeTimeout: cfg.GeocoderTimeout,
		Policy:         policy,
		Clock:          clock,
		Logger:         logger,
		Metrics:        metrics,
	})

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(res, logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, queue, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start resolution pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
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
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
