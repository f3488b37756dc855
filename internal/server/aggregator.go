// Package server implements the streaming statistics service: a Kafka-fed
// incremental aggregator maintaining the same per-(kind, source, year)
// statistics as the batch pipelines, with exact distinct sets, plus its
// HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/EmanuelaBoros/impresso-essentials/internal/bag"
	"github.com/EmanuelaBoros/impresso-essentials/internal/stats"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/kafka"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/metrics"
)

// groupAccum accumulates one (kind, source, year) group. Distinct fields
// keep their full value sets so streamed counts match the batch pipelines
// exactly.
type groupAccum struct {
	sums  map[string]int
	sets  map[string]map[string]struct{}
	langs map[string]int
}

func newGroupAccum() *groupAccum {
	return &groupAccum{
		sums: make(map[string]int),
		sets: make(map[string]map[string]struct{}),
	}
}

// Aggregator consumes record events and maintains incremental statistics.
type Aggregator struct {
	mu          sync.RWMutex
	groups      map[string]*groupAccum
	keys        map[string][3]string // group key -> (kind, np_id, year)
	recordsSeen atomic.Int64
	recordsBad  atomic.Int64

	registry *stats.SourceRegistry
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator bound to the given source registry.
func NewAggregator(registry *stats.SourceRegistry, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		groups:   make(map[string]*groupAccum),
		keys:     make(map[string][3]string),
		registry: registry,
		metrics:  m,
		logger:   slog.Default().With("component", "stats-aggregator"),
	}
}

// Start enters the consumer's consume loop until ctx is cancelled. The
// consumer must have been created with HandleEvent bound to this same
// aggregator, so the instance serving the HTTP API is the one being fed.
func (a *Aggregator) Start(ctx context.Context, consumer *kafka.Consumer) error {
	a.logger.Info("stats aggregator starting")
	return consumer.Start(ctx)
}

// HandleEvent returns the Kafka handler that feeds the aggregator. Events
// that fail to decode or extract are counted and skipped; a bad event must
// not stall the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[RecordEvent](value)
		if err != nil {
			agg.recordsBad.Add(1)
			agg.logger.Error("failed to decode record event", "error", err)
			return nil
		}
		kind, err := stats.ParseKind(event.Kind)
		if err != nil {
			agg.recordsBad.Add(1)
			agg.logger.Error("record event with unknown kind", "kind", event.Kind)
			return nil
		}
		if err := agg.Ingest(kind, event.Record); err != nil {
			agg.recordsBad.Add(1)
			agg.logger.Error("failed to ingest record", "kind", kind, "error", err)
			return nil
		}
		if agg.metrics != nil {
			agg.metrics.EventsConsumedTotal.WithLabelValues(string(kind)).Inc()
		}
		return nil
	}
}

// Ingest extracts one raw record and folds its counts into the matching
// group. Extraction uses the same per-kind functions as the batch
// pipelines, always with the global (source, year) grouping.
func (a *Aggregator) Ingest(kind stats.Kind, rec bag.Record) error {
	counted, err := a.extract(kind, rec)
	if err != nil {
		return err
	}
	npID, _ := counted[stats.FieldNpID].(string)
	year, _ := counted[stats.FieldYear].(string)
	if year == "" {
		return fmt.Errorf("count record without year column")
	}
	key := string(kind) + "\x1f" + npID + "\x1f" + year

	a.mu.Lock()
	defer a.mu.Unlock()
	accum, ok := a.groups[key]
	if !ok {
		accum = newGroupAccum()
		a.groups[key] = accum
		a.keys[key] = [3]string{string(kind), npID, year}
	}
	if err := accum.apply(counted); err != nil {
		return err
	}
	a.recordsSeen.Add(1)
	return nil
}

func (a *Aggregator) extract(kind stats.Kind, rec bag.Record) (bag.Record, error) {
	switch kind {
	case stats.KindCanonical:
		return stats.ExtractCanonical(rec, true)
	case stats.KindRebuilt:
		return stats.ExtractRebuilt(rec, true, false)
	case stats.KindPassim:
		return stats.ExtractRebuilt(rec, true, true)
	case stats.KindEntities:
		return stats.ExtractEntities(rec)
	case stats.KindLangident:
		return stats.ExtractLangident(rec)
	case stats.KindSolrText:
		return stats.ExtractSolrText(rec)
	default:
		return nil, fmt.Errorf("unknown document kind %q", kind)
	}
}

// apply folds one count record into the accumulator. Integer counts are
// summed; string-valued issues and entity lists feed distinct sets; the
// language label merges into the frequency map.
func (g *groupAccum) apply(counted bag.Record) error {
	for field, v := range counted {
		switch field {
		case stats.FieldNpID, stats.FieldYear:
		case stats.FieldLangFd:
			label, ok := v.(string)
			if !ok {
				return fmt.Errorf("field %s is %T, want string", field, v)
			}
			freq, err := stats.ParseLangFreq(label)
			if err != nil {
				return err
			}
			if g.langs == nil {
				g.langs = make(map[string]int)
			}
			for lang, n := range freq {
				g.langs[lang] += n
			}
		default:
			switch val := v.(type) {
			case int:
				g.sums[field] += val
			case string:
				g.addToSet(field, val)
			case []string:
				for _, s := range val {
					g.addToSet(field, s)
				}
			default:
				return fmt.Errorf("field %s has unsupported type %T", field, v)
			}
		}
	}
	return nil
}

func (g *groupAccum) addToSet(field, value string) {
	set, ok := g.sets[field]
	if !ok {
		set = make(map[string]struct{})
		g.sets[field] = set
	}
	set[value] = struct{}{}
}

// Snapshot materializes the current statistics, one record per group,
// sorted by kind, source, and year. Optional kind filters the output.
func (a *Aggregator) Snapshot(kind string) []map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	keys := make([]string, 0, len(a.groups))
	for key := range a.groups {
		if kind != "" && a.keys[key][0] != kind {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		accum := a.groups[key]
		parts := a.keys[key]
		rec := map[string]any{
			"kind":          parts[0],
			stats.FieldNpID: parts[1],
			stats.FieldYear: parts[2],
		}
		for field, total := range accum.sums {
			rec[field] = total
		}
		for field, set := range accum.sets {
			rec[field] = len(set)
		}
		if accum.langs != nil {
			langs := make(map[string]int, len(accum.langs))
			for lang, n := range accum.langs {
				langs[lang] = n
			}
			rec[stats.FieldLangFd] = langs
		}
		out = append(out, rec)
	}
	return out
}

// Counters returns the processed and rejected record totals.
func (a *Aggregator) Counters() (seen, bad int64) {
	return a.recordsSeen.Load(), a.recordsBad.Load()
}
