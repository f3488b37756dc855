package bag

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/EmanuelaBoros/impresso-essentials/pkg/errors"
)

// Plan describes one grouped aggregation: which columns form the group key
// and which reduction applies to each remaining field. Kind labels errors
// and progress reports.
type Plan struct {
	Kind   string
	Keys   []string
	Fields map[string]Aggregation
}

// Options tunes a grouped aggregation run.
type Options struct {
	Workers  int
	Progress ProgressSink
}

// partialGroup holds one partition's contribution to one group.
type partialGroup struct {
	keyVals []string
	chunks  map[string]any
}

// Aggregate runs the three-stage grouped reduction over a bag of count
// records: per-partition chunking in parallel, cross-partition combining,
// and finalization into one flat record per group. Output records carry the
// group-key columns plus each field's finalized value, sorted by key so the
// result is deterministic. Progress, when configured, is reported for the
// final materialization stage only.
func Aggregate(ctx context.Context, b *Bag[Record], plan Plan, opts Options) ([]Record, error) {
	if len(plan.Keys) == 0 {
		return nil, pkgerrors.Aggregation(plan.Kind, "", "no group key columns configured")
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	progress := opts.Progress
	if progress == nil {
		progress = NopProgress{}
	}

	// Stage 1: chunk each partition independently.
	partials := make([]map[string]*partialGroup, b.NPartitions())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range partials {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			part, err := chunkPartition(b.Partition(i), plan)
			if err != nil {
				return err
			}
			partials[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Stage 2: combine the partials of every partition that saw each group.
	type combinedGroup struct {
		keyVals  []string
		combined map[string]any
	}
	groups := make(map[string]*combinedGroup)
	contrib := make(map[string]map[string][]any)
	for _, part := range partials {
		for key, pg := range part {
			if _, ok := groups[key]; !ok {
				groups[key] = &combinedGroup{keyVals: pg.keyVals}
				contrib[key] = make(map[string][]any, len(plan.Fields))
			}
			for field, chunk := range pg.chunks {
				contrib[key][field] = append(contrib[key][field], chunk)
			}
		}
	}
	for key, cg := range groups {
		cg.combined = make(map[string]any, len(plan.Fields))
		for field, agg := range plan.Fields {
			combined, err := agg.Combine(contrib[key][field])
			if err != nil {
				return nil, pkgerrors.Aggregation(plan.Kind, field, "combine: %v", err)
			}
			cg.combined[field] = combined
		}
	}

	// Stage 3: finalize per group and flatten back to records.
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]Record, 0, len(keys))
	for i, key := range keys {
		cg := groups[key]
		rec := make(Record, len(plan.Keys)+len(plan.Fields))
		for j, col := range plan.Keys {
			rec[col] = cg.keyVals[j]
		}
		for field, agg := range plan.Fields {
			final, err := agg.Finalize(cg.combined[field])
			if err != nil {
				return nil, pkgerrors.Aggregation(plan.Kind, field, "finalize: %v", err)
			}
			rec[field] = final
		}
		out = append(out, rec)
		progress.Progress("materialize", i+1, len(keys))
	}
	return out, nil
}

// chunkPartition groups one partition locally and applies each field's
// Chunk stage.
func chunkPartition(items []Record, plan Plan) (map[string]*partialGroup, error) {
	type localGroup struct {
		keyVals []string
		values  map[string][]any
	}
	local := make(map[string]*localGroup)
	for _, rec := range items {
		keyVals := make([]string, len(plan.Keys))
		for i, col := range plan.Keys {
			v, ok := rec[col]
			if !ok {
				return nil, pkgerrors.Aggregation(plan.Kind, col, "count record missing group key column")
			}
			s, ok := v.(string)
			if !ok {
				return nil, pkgerrors.Aggregation(plan.Kind, col, "group key column is %T, want string", v)
			}
			keyVals[i] = s
		}
		key := strings.Join(keyVals, "\x1f")
		lg, ok := local[key]
		if !ok {
			lg = &localGroup{keyVals: keyVals, values: make(map[string][]any, len(plan.Fields))}
			local[key] = lg
		}
		for field := range plan.Fields {
			if v, ok := rec[field]; ok {
				lg.values[field] = append(lg.values[field], v)
			}
		}
	}

	out := make(map[string]*partialGroup, len(local))
	for key, lg := range local {
		pg := &partialGroup{keyVals: lg.keyVals, chunks: make(map[string]any, len(plan.Fields))}
		for field, agg := range plan.Fields {
			chunk, err := agg.Chunk(lg.values[field])
			if err != nil {
				return nil, pkgerrors.Aggregation(plan.Kind, field, "chunk: %v", err)
			}
			pg.chunks[field] = chunk
		}
		out[key] = pg
	}
	return out, nil
}
