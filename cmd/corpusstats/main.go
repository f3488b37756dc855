// Command corpusstats runs a batch statistics pipeline over JSONL archive
// files and writes the grouped statistics as JSON.
//
// It can additionally persist the statistics to Postgres, cache them in
// Redis keyed by the input fingerprint, publish a completion event to
// Kafka, and assemble a schema-validated manifest.
//
// Usage:
//
//	go run ./cmd/corpusstats -kind canonical -input 'data/*.jsonl.bz2' [-config configs/development.yaml]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EmanuelaBoros/impresso-essentials/internal/bag"
	"github.com/EmanuelaBoros/impresso-essentials/internal/ingest"
	"github.com/EmanuelaBoros/impresso-essentials/internal/stats"
	"github.com/EmanuelaBoros/impresso-essentials/internal/stats/cache"
	"github.com/EmanuelaBoros/impresso-essentials/internal/stats/store"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/config"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/kafka"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/logger"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/manifest"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/metrics"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/postgres"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/redis"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	kindFlag := flag.String("kind", "", "document kind: canonical, rebuilt, passim, entities, langident, solr-text")
	inputGlob := flag.String("input", "", "glob of JSONL input files (.bz2 supported)")
	outPath := flag.String("out", "", "output file for the statistics JSON (default stdout)")
	manifestPath := flag.String("manifest", "", "write a schema-validated manifest to this path")
	useStore := flag.Bool("store", false, "upsert the statistics into Postgres")
	usePublish := flag.Bool("publish", false, "publish a completion event to Kafka")
	useCache := flag.Bool("cache", false, "cache the statistics in Redis keyed by input fingerprint")
	showProgress := flag.Bool("progress", false, "log progress during the final materialization stage")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	kind, err := stats.ParseKind(*kindFlag)
	if err != nil {
		slog.Error("invalid kind flag", "error", err)
		os.Exit(1)
	}
	if *inputGlob == "" {
		slog.Error("missing required -input flag")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	if err := run(ctx, cfg, kind, m, *inputGlob, *outPath, *manifestPath, *useStore, *usePublish, *useCache, *showProgress); err != nil {
		slog.Error("corpusstats run failed", "kind", kind, "error", err)
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	cfg *config.Config,
	kind stats.Kind,
	m *metrics.Metrics,
	inputGlob, outPath, manifestPath string,
	useStore, usePublish, useCache, showProgress bool,
) error {
	paths, err := ingest.Glob(inputGlob)
	if err != nil {
		return err
	}

	registry := stats.NewSourceRegistry(cfg.Corpus.KnownSources)
	opts := []stats.Option{
		stats.WithWorkers(cfg.Executor.Workers),
		stats.WithMetrics(m),
		stats.WithRejectUnknown(cfg.Corpus.RejectUnknown),
	}
	if showProgress {
		opts = append(opts, stats.WithProgress(bag.LogProgress{}))
	}
	pipeline := stats.New(registry, opts...)

	compute := func() ([]bag.Record, error) {
		records, err := ingest.NewReader().ReadFiles(paths, cfg.Executor.Partitions)
		if err != nil {
			return nil, err
		}
		return pipeline.Compute(ctx, kind, records)
	}

	var results []bag.Record
	if useCache {
		redisClient, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisClient.Close()

		fingerprint, err := ingest.Fingerprint(paths)
		if err != nil {
			return err
		}
		statsCache := cache.New(redisClient, cfg.Redis)
		var cached bool
		results, cached, err = statsCache.GetOrCompute(ctx, kind, fingerprint, compute)
		if err != nil {
			return err
		}
		if cached {
			slog.Info("statistics served from cache", "kind", kind, "groups", len(results))
		}
	} else {
		results, err = compute()
		if err != nil {
			return err
		}
	}

	if err := writeResults(results, outPath); err != nil {
		return err
	}

	if useStore {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()

		statsStore := store.New(db)
		if err := statsStore.EnsureSchema(ctx); err != nil {
			return err
		}
		err = resilience.Retry(ctx, "stats-upsert", resilience.RetryConfig{}, func() error {
			return statsStore.UpsertBatch(ctx, kind, results)
		})
		if err != nil {
			return err
		}
		slog.Info("statistics persisted", "kind", kind, "groups", len(results))
	}

	if manifestPath != "" {
		doc := manifest.Assemble(cfg.Manifest.Version, string(kind), results)
		if err := manifest.WriteFile(doc, manifestPath, cfg.Manifest.SchemaPath); err != nil {
			return err
		}
		slog.Info("manifest written", "path", manifestPath, "sources", len(doc.MediaList))
	}

	if usePublish {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.StatsComplete)
		defer producer.Close()

		events := make([]kafka.Event, 0, len(results)+1)
		for _, rec := range results {
			npID, _ := rec[stats.FieldNpID].(string)
			year, _ := rec[stats.FieldYear].(string)
			events = append(events, kafka.Event{
				Key:   string(kind) + "-" + npID + "-" + year,
				Value: rec,
			})
		}
		events = append(events, kafka.Event{
			Key: string(kind),
			Value: map[string]any{
				"kind":         string(kind),
				"groups":       len(results),
				"generated_at": time.Now().UTC().Format(time.RFC3339),
			},
		})
		err = resilience.Retry(ctx, "stats-publish", resilience.RetryConfig{}, func() error {
			return producer.PublishBatch(ctx, events)
		})
		if err != nil {
			return err
		}
		m.StatsPublishedTotal.Add(float64(len(results)))
		slog.Info("statistics published", "topic", cfg.Kafka.Topics.StatsComplete, "events", len(events))
	}

	return nil
}

// writeResults encodes the statistics as indented JSON to the output file,
// or to stdout when no path is given.
func writeResults(results []bag.Record, outPath string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling statistics: %w", err)
	}
	data = append(data, '\n')
	if outPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("writing statistics to %s: %w", outPath, err)
	}
	slog.Info("statistics written", "path", outPath, "groups", len(results))
	return nil
}
