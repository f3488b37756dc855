// Package bag implements a small in-process partitioned collection with
// parallel map, grouped aggregation, and three-stage algebraic reductions.
// It stands in for a cluster data-parallel engine: every per-item and
// per-partition function it runs is pure, and reductions are combined
// associatively so partition layout never changes a result.
package bag

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Record is a flat JSON-decoded mapping, the unit of both raw input and
// aggregated output.
type Record = map[string]any

// Bag is an immutable partitioned collection.
type Bag[T any] struct {
	partitions [][]T
}

// FromSlice splits items into npartitions contiguous partitions. A
// npartitions below 1 yields a single partition.
func FromSlice[T any](items []T, npartitions int) *Bag[T] {
	if npartitions < 1 {
		npartitions = 1
	}
	if npartitions > len(items) && len(items) > 0 {
		npartitions = len(items)
	}
	parts := make([][]T, 0, npartitions)
	if len(items) == 0 {
		return &Bag[T]{partitions: [][]T{{}}}
	}
	size := (len(items) + npartitions - 1) / npartitions
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		parts = append(parts, items[start:end])
	}
	return &Bag[T]{partitions: parts}
}

// FromPartitions wraps an existing partition layout without copying.
func FromPartitions[T any](parts [][]T) *Bag[T] {
	if len(parts) == 0 {
		parts = [][]T{{}}
	}
	return &Bag[T]{partitions: parts}
}

// NPartitions returns the number of partitions.
func (b *Bag[T]) NPartitions() int {
	return len(b.partitions)
}

// Len returns the total number of items across all partitions.
func (b *Bag[T]) Len() int {
	n := 0
	for _, p := range b.partitions {
		n += len(p)
	}
	return n
}

// Partition returns the i-th partition. The returned slice must not be
// mutated.
func (b *Bag[T]) Partition(i int) []T {
	return b.partitions[i]
}

// Items materializes the bag into a single flat slice, partition order
// preserved.
func (b *Bag[T]) Items() []T {
	out := make([]T, 0, b.Len())
	for _, p := range b.partitions {
		out = append(out, p...)
	}
	return out
}

// Map applies fn to every item in parallel, one goroutine per partition,
// bounded by workers. The first error aborts the whole operation; no
// partial bag is returned.
func Map[T, U any](ctx context.Context, b *Bag[T], workers int, fn func(T) (U, error)) (*Bag[U], error) {
	if workers < 1 {
		workers = 1
	}
	out := make([][]U, b.NPartitions())
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range b.partitions {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			mapped := make([]U, 0, len(b.partitions[i]))
			for _, item := range b.partitions[i] {
				u, err := fn(item)
				if err != nil {
					return err
				}
				mapped = append(mapped, u)
			}
			out[i] = mapped
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Bag[U]{partitions: out}, nil
}
