package bag

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestFromSlicePartitioning(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	b := FromSlice(items, 3)
	if got := b.NPartitions(); got != 3 {
		t.Fatalf("NPartitions() = %d, want 3", got)
	}
	if got := b.Len(); got != len(items) {
		t.Fatalf("Len() = %d, want %d", got, len(items))
	}
	if got := b.Items(); !reflect.DeepEqual(got, items) {
		t.Fatalf("Items() = %v, want %v", got, items)
	}
}

func TestFromSliceMorePartitionsThanItems(t *testing.T) {
	b := FromSlice([]int{1, 2}, 10)
	if got := b.NPartitions(); got > 2 {
		t.Fatalf("NPartitions() = %d, want at most 2", got)
	}
	if got := b.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
}

func TestFromSliceEmpty(t *testing.T) {
	b := FromSlice([]int(nil), 4)
	if got := b.NPartitions(); got != 1 {
		t.Fatalf("NPartitions() = %d, want 1", got)
	}
	if got := b.Len(); got != 0 {
		t.Fatalf("Len() = %d, want 0", got)
	}
}

func TestMapAppliesFunctionInOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	b := FromSlice(items, 2)

	doubled, err := Map(context.Background(), b, 4, func(n int) (int, error) {
		return n * 2, nil
	})
	if err != nil {
		t.Fatalf("Map() error: %v", err)
	}
	want := []int{2, 4, 6, 8, 10}
	if got := doubled.Items(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Map() items = %v, want %v", got, want)
	}
}

func TestMapPropagatesFirstError(t *testing.T) {
	boom := errors.New("boom")
	b := FromSlice([]int{1, 2, 3, 4}, 4)

	_, err := Map(context.Background(), b, 2, func(n int) (int, error) {
		if n == 3 {
			return 0, boom
		}
		return n, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Map() error = %v, want %v", err, boom)
	}
}

func TestMapCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := FromSlice([]int{1, 2, 3}, 3)
	_, err := Map(ctx, b, 1, func(n int) (int, error) { return n, nil })
	if err == nil {
		t.Fatal("Map() with cancelled context returned nil error")
	}
}
