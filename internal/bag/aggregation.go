package bag

import (
	"fmt"
	"math"
	"sort"
)

// Aggregation is a three-stage algebraic reduction over one field of a
// grouped collection.
//
// Chunk collapses the group-local values seen by a single partition into a
// partial result. Combine merges the partials contributed by every
// partition that saw the group. Finalize turns the combined value into the
// field's output. All three stages are pure; Combine must be associative
// and commutative so that partitioning never affects the final value.
type Aggregation interface {
	Name() string
	Chunk(values []any) (any, error)
	Combine(parts []any) (any, error)
	Finalize(combined any) (any, error)
}

// Sum adds integer values. The partial and final representations are both
// plain ints.
type Sum struct{}

func (Sum) Name() string { return "sum" }

func (Sum) Chunk(values []any) (any, error) {
	total := 0
	for _, v := range values {
		n, err := asInt(v)
		if err != nil {
			return nil, err
		}
		total += n
	}
	return total, nil
}

func (Sum) Combine(parts []any) (any, error) {
	total := 0
	for _, p := range parts {
		n, err := asInt(p)
		if err != nil {
			return nil, err
		}
		total += n
	}
	return total, nil
}

func (Sum) Finalize(combined any) (any, error) {
	return asInt(combined)
}

// DistinctCount counts distinct string values per group. Chunk reduces a
// partition's values to their distinct set, Combine concatenates the sets
// from all partitions without deduplicating, and Finalize deduplicates the
// concatenation and returns its cardinality. Values may be single strings
// or string slices; slices are flattened before deduplication.
type DistinctCount struct{}

func (DistinctCount) Name() string { return "distinct-count" }

func (DistinctCount) Chunk(values []any) (any, error) {
	seen := make(map[string]struct{})
	for _, v := range values {
		if err := addStrings(seen, v); err != nil {
			return nil, err
		}
	}
	distinct := make([]string, 0, len(seen))
	for s := range seen {
		distinct = append(distinct, s)
	}
	sort.Strings(distinct)
	return distinct, nil
}

func (DistinctCount) Combine(parts []any) (any, error) {
	var merged []string
	for _, p := range parts {
		vals, ok := p.([]string)
		if !ok {
			return nil, fmt.Errorf("distinct-count combine: unexpected partial type %T", p)
		}
		// duplicates across partitions are expected here; Finalize dedupes.
		merged = append(merged, vals...)
	}
	return merged, nil
}

func (DistinctCount) Finalize(combined any) (any, error) {
	vals, ok := combined.([]string)
	if !ok {
		return nil, fmt.Errorf("distinct-count finalize: unexpected type %T", combined)
	}
	seen := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		seen[v] = struct{}{}
	}
	return len(seen), nil
}

// Collect gathers every value of the group into a single slice, for fields
// whose per-group combination happens after materialization (e.g. language
// frequency merging).
type Collect struct{}

func (Collect) Name() string { return "collect" }

func (Collect) Chunk(values []any) (any, error) {
	out := make([]any, len(values))
	copy(out, values)
	return out, nil
}

func (Collect) Combine(parts []any) (any, error) {
	var merged []any
	for _, p := range parts {
		vals, ok := p.([]any)
		if !ok {
			return nil, fmt.Errorf("collect combine: unexpected partial type %T", p)
		}
		merged = append(merged, vals...)
	}
	return merged, nil
}

func (Collect) Finalize(combined any) (any, error) {
	if _, ok := combined.([]any); !ok {
		return nil, fmt.Errorf("collect finalize: unexpected type %T", combined)
	}
	return combined, nil
}

// asInt normalizes the numeric representations that survive JSON decoding.
func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("cannot sum non-integral value %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("cannot sum non-numeric value %v (%T)", v, v)
	}
}

// addStrings flattens v into the set: a bare string counts once, a string
// slice contributes each element.
func addStrings(set map[string]struct{}, v any) error {
	switch s := v.(type) {
	case string:
		set[s] = struct{}{}
	case []string:
		for _, e := range s {
			set[e] = struct{}{}
		}
	case []any:
		for _, e := range s {
			str, ok := e.(string)
			if !ok {
				return fmt.Errorf("cannot count distinct non-string value %v (%T)", e, e)
			}
			set[str] = struct{}{}
		}
	case nil:
	default:
		return fmt.Errorf("cannot count distinct non-string value %v (%T)", v, v)
	}
	return nil
}
