package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/EmanuelaBoros/impresso-essentials/internal/bag"
	pkgerrors "github.com/EmanuelaBoros/impresso-essentials/pkg/errors"
	"github.com/EmanuelaBoros/impresso-essentials/pkg/metrics"
)

// Pipeline runs the grouped aggregation pipelines for every document kind.
// It holds the injected source registry and the execution knobs; the
// pipelines themselves are stateless and safe for concurrent use.
type Pipeline struct {
	registry      *SourceRegistry
	rejectUnknown bool
	workers       int
	progress      bag.ProgressSink
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers bounds how many partitions are processed concurrently.
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// WithProgress wires a progress sink for the final materialization stage.
func WithProgress(sink bag.ProgressSink) Option {
	return func(p *Pipeline) { p.progress = sink }
}

// WithMetrics wires Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRejectUnknown makes records from unregistered sources fail extraction
// instead of being logged and counted.
func WithRejectUnknown(reject bool) Option {
	return func(p *Pipeline) { p.rejectUnknown = reject }
}

// New creates a Pipeline bound to the given source registry.
func New(registry *SourceRegistry, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry: registry,
		workers:  4,
		progress: bag.NopProgress{},
		logger:   slog.Default().With("component", "stats-pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RebuiltOptions controls the rebuilt/passim pipeline. Key optionally names
// the title-year pair when the pipeline runs on a single pre-grouped
// collection; IncludeSource adds the source id to the group key; Passim
// switches to the passim schema (no token counts).
type RebuiltOptions struct {
	Key           string
	IncludeSource bool
	Passim        bool
}

// CanonicalStats computes per-(source, year) issue, page, content-item, and
// image counts from a bag of canonical issues.
func (p *Pipeline) CanonicalStats(ctx context.Context, issues *bag.Bag[bag.Record]) ([]bag.Record, error) {
	plan := bag.Plan{
		Kind: string(KindCanonical),
		Keys: []string{FieldNpID, FieldYear},
		Fields: map[string]bag.Aggregation{
			FieldIssues:          bag.Sum{},
			FieldPages:           bag.Sum{},
			FieldContentItemsOut: bag.Sum{},
			FieldImages:          bag.Sum{},
		},
	}
	return p.run(ctx, KindCanonical, issues, func(rec bag.Record) (bag.Record, error) {
		return ExtractCanonical(rec, true)
	}, plan, nil)
}

// RebuiltStats computes distinct issue counts, content-item counts, and
// (outside passim mode) full-text token sums from a bag of rebuilt
// articles.
func (p *Pipeline) RebuiltStats(ctx context.Context, articles *bag.Bag[bag.Record], opts RebuiltOptions) ([]bag.Record, error) {
	kind := KindRebuilt
	if opts.Passim {
		kind = KindPassim
	}
	keys := []string{FieldYear}
	if opts.IncludeSource {
		keys = []string{FieldNpID, FieldYear}
	}
	fields := map[string]bag.Aggregation{
		FieldIssues:          bag.DistinctCount{},
		FieldContentItemsOut: bag.Sum{},
	}
	if !opts.Passim {
		fields[FieldFtTokens] = bag.Sum{}
	}
	plan := bag.Plan{Kind: string(kind), Keys: keys, Fields: fields}

	if opts.Key != "" {
		p.logger.Info("computing yearly rebuilt statistics", "key", opts.Key)
	}
	return p.run(ctx, kind, articles, func(rec bag.Record) (bag.Record, error) {
		return ExtractRebuilt(rec, opts.IncludeSource, opts.Passim)
	}, plan, nil)
}

// EntityStats computes mention sums and distinct linked-entity counts from
// a bag of entity-linked content items.
func (p *Pipeline) EntityStats(ctx context.Context, items *bag.Bag[bag.Record]) ([]bag.Record, error) {
	plan := bag.Plan{
		Kind: string(KindEntities),
		Keys: []string{FieldNpID, FieldYear},
		Fields: map[string]bag.Aggregation{
			FieldIssues:          bag.DistinctCount{},
			FieldContentItemsOut: bag.Sum{},
			FieldNeMentions:      bag.Sum{},
			FieldNeEntities:      bag.DistinctCount{},
		},
	}
	return p.run(ctx, KindEntities, items, ExtractEntities, plan, nil)
}

// LangidentStats computes distinct issue counts, image sums, and merged
// language frequency distributions from a bag of language-identified
// content items. The collected lang_fd labels are parsed and merged into
// one frequency map per group after aggregation.
func (p *Pipeline) LangidentStats(ctx context.Context, items *bag.Bag[bag.Record]) ([]bag.Record, error) {
	plan := bag.Plan{
		Kind: string(KindLangident),
		Keys: []string{FieldNpID, FieldYear},
		Fields: map[string]bag.Aggregation{
			FieldIssues:          bag.DistinctCount{},
			FieldContentItemsOut: bag.Sum{},
			FieldImages:          bag.Sum{},
			FieldLangFd:          bag.Collect{},
		},
	}
	return p.run(ctx, KindLangident, items, ExtractLangident, plan, func(out []bag.Record) ([]bag.Record, error) {
		for _, rec := range out {
			collected, ok := rec[FieldLangFd].([]any)
			if !ok {
				return nil, pkgerrors.Aggregation(string(KindLangident), FieldLangFd, "collected value is %T, want list", rec[FieldLangFd])
			}
			freq, err := MergeLangFreq(collected)
			if err != nil {
				return nil, pkgerrors.Aggregation(string(KindLangident), FieldLangFd, "%v", err)
			}
			rec[FieldLangFd] = freq
		}
		return out, nil
	})
}

// SolrTextStats computes distinct issue and content-item counts from a bag
// of search-index content items.
func (p *Pipeline) SolrTextStats(ctx context.Context, items *bag.Bag[bag.Record]) ([]bag.Record, error) {
	plan := bag.Plan{
		Kind: string(KindSolrText),
		Keys: []string{FieldNpID, FieldYear},
		Fields: map[string]bag.Aggregation{
			FieldIssues:          bag.DistinctCount{},
			FieldContentItemsOut: bag.Sum{},
		},
	}
	return p.run(ctx, KindSolrText, items, ExtractSolrText, plan, nil)
}

// Compute dispatches to the pipeline matching kind, using the global
// grouping (source id and year) for every kind.
func (p *Pipeline) Compute(ctx context.Context, kind Kind, records *bag.Bag[bag.Record]) ([]bag.Record, error) {
	switch kind {
	case KindCanonical:
		return p.CanonicalStats(ctx, records)
	case KindRebuilt:
		return p.RebuiltStats(ctx, records, RebuiltOptions{IncludeSource: true})
	case KindPassim:
		return p.RebuiltStats(ctx, records, RebuiltOptions{IncludeSource: true, Passim: true})
	case KindEntities:
		return p.EntityStats(ctx, records)
	case KindLangident:
		return p.LangidentStats(ctx, records)
	case KindSolrText:
		return p.SolrTextStats(ctx, records)
	default:
		return nil, fmt.Errorf("%w: unknown document kind %q", pkgerrors.ErrInvalidInput, kind)
	}
}

// run is the shared pipeline skeleton: parallel extraction, grouped
// three-stage reduction, optional post-processing, metrics, and logging.
// It returns either the complete statistics sequence or an error, never a
// partial result.
func (p *Pipeline) run(
	ctx context.Context,
	kind Kind,
	records *bag.Bag[bag.Record],
	extract func(bag.Record) (bag.Record, error),
	plan bag.Plan,
	post func([]bag.Record) ([]bag.Record, error),
) ([]bag.Record, error) {
	start := time.Now()
	p.logger.Info("gathering count records", "kind", kind, "records", records.Len(), "partitions", records.NPartitions())

	var warned sync.Map
	counts, err := bag.Map(ctx, records, p.workers, func(rec bag.Record) (bag.Record, error) {
		counted, err := extract(rec)
		if err != nil {
			if p.metrics != nil {
				p.metrics.ExtractionFailuresTotal.WithLabelValues(string(kind)).Inc()
			}
			return nil, err
		}
		if err := p.checkSource(kind, counted, &warned); err != nil {
			return nil, err
		}
		if p.metrics != nil {
			p.metrics.RecordsExtractedTotal.WithLabelValues(string(kind)).Inc()
		}
		return counted, nil
	})
	if err != nil {
		p.fail(kind, err)
		return nil, err
	}

	plan.Kind = string(kind)
	out, err := bag.Aggregate(ctx, counts, plan, bag.Options{Workers: p.workers, Progress: p.progress})
	if err != nil {
		p.fail(kind, err)
		return nil, err
	}
	if post != nil {
		out, err = post(out)
		if err != nil {
			p.fail(kind, err)
			return nil, err
		}
	}

	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.GroupsAggregated.WithLabelValues(string(kind)).Set(float64(len(out)))
		p.metrics.AggregationDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
		p.metrics.PipelineRunsTotal.WithLabelValues(string(kind), "ok").Inc()
	}
	p.logger.Info("finished grouping and aggregating stats",
		"kind", kind,
		"groups", len(out),
		"duration", elapsed.Round(time.Millisecond),
	)
	return out, nil
}

// checkSource validates the count record's source id against the registry.
func (p *Pipeline) checkSource(kind Kind, counted bag.Record, warned *sync.Map) error {
	npID, ok := counted[FieldNpID].(string)
	if !ok || p.registry.Known(npID) {
		return nil
	}
	if p.rejectUnknown {
		return &pkgerrors.RecordError{
			Err:     pkgerrors.ErrUnknownSource,
			Kind:    string(kind),
			Field:   FieldNpID,
			Message: npID,
		}
	}
	if _, loaded := warned.LoadOrStore(npID, struct{}{}); !loaded {
		p.logger.Warn("record from unregistered source", "kind", kind, "np_id", npID)
	}
	return nil
}

func (p *Pipeline) fail(kind Kind, err error) {
	if p.metrics != nil {
		p.metrics.PipelineRunsTotal.WithLabelValues(string(kind), "error").Inc()
	}
	p.logger.Error("pipeline failed", "kind", kind, "error", err)
}
