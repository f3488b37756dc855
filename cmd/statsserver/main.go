// Command statsserver starts the streaming statistics service.
//
// It consumes record events from Kafka, aggregates them incrementally into
// the same per-(source, year) statistics as the batch pipelines, and
// exposes an HTTP API at GET /api/v1/stats for dashboards.
//
// Usage:
//
//	go run ./cmd/statsserver [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EmanuelaBoros/impresso-essentials/internal/server"
	"github.com/EmanuelaBoros/impresso-essentials/internal/stats"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/config"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/health"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/kafka"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/logger"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/metrics"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/middleware"
)

// main boots the streaming stats service: it creates a Kafka consumer for
// record events, starts the incremental aggregator, registers a health
// checker, and serves the HTTP API. Graceful shutdown is triggered by
// SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting stats service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	registry := stats.NewSourceRegistry(cfg.Corpus.KnownSources)

	// One aggregator instance: the consumer feeds it and the HTTP API reads it.
	aggregator := server.NewAggregator(registry, m)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RecordsIngest, server.HandleEvent(aggregator))

	go func() {
		if err := aggregator.Start(ctx, consumer); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()
	slog.Info("stats aggregator started", "topic", cfg.Kafka.Topics.RecordsIngest)

	// HTTP API.
	statsHandler := server.NewHandler(aggregator)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/stats", statsHandler.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if shutdownMetrics != nil {
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("stats service listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	// Give in-flight consumer commits a moment to finish.
	time.Sleep(100 * time.Millisecond)
	if err := consumer.Close(); err != nil {
		slog.Error("consumer close error", "error", err)
	}

	slog.Info("stats service stopped")
}
