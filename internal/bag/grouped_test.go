package bag

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	pkgerrors "github.com/EmanuelaBoros/impresso-essentials/pkg/errors"
)

func testPlan() Plan {
	return Plan{
		Kind: "test",
		Keys: []string{"np_id", "year"},
		Fields: map[string]Aggregation{
			"issues": DistinctCount{},
			"items":  Sum{},
		},
	}
}

func TestAggregateSumsAndDistinctCounts(t *testing.T) {
	records := []Record{
		{"np_id": "NZZ", "year": "1870", "issues": "NZZ-1870-01-01-a", "items": 2},
		{"np_id": "NZZ", "year": "1870", "issues": "NZZ-1870-01-01-a", "items": 3},
		{"np_id": "NZZ", "year": "1870", "issues": "NZZ-1870-01-02-a", "items": 1},
		{"np_id": "GDL", "year": "1900", "issues": "GDL-1900-06-15-a", "items": 4},
	}
	b := FromSlice(records, 2)

	out, err := Aggregate(context.Background(), b, testPlan(), Options{Workers: 2})
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}
	want := []Record{
		{"np_id": "GDL", "year": "1900", "issues": 1, "items": 4},
		{"np_id": "NZZ", "year": "1870", "issues": 2, "items": 6},
	}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("Aggregate() = %v, want %v", out, want)
	}
}

// Partition layout must never change a result: the same multiset of count
// records aggregated under different partitionings yields identical output.
func TestAggregatePartitionIndependence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	records := make([]Record, 400)
	for i := range records {
		np := fmt.Sprintf("SRC%d", rng.Intn(3))
		year := fmt.Sprintf("%d", 1850+rng.Intn(4))
		records[i] = Record{
			"np_id":  np,
			"year":   year,
			"issues": fmt.Sprintf("%s-%s-01-%02d-a", np, year, rng.Intn(20)),
			"items":  rng.Intn(5),
		}
	}

	var baseline []Record
	for _, npartitions := range []int{1, 2, 3, 7, 16, 400} {
		b := FromSlice(records, npartitions)
		out, err := Aggregate(context.Background(), b, testPlan(), Options{Workers: 4})
		if err != nil {
			t.Fatalf("Aggregate() with %d partitions: %v", npartitions, err)
		}
		if baseline == nil {
			baseline = out
			continue
		}
		if !reflect.DeepEqual(out, baseline) {
			t.Fatalf("result with %d partitions differs from single-partition result", npartitions)
		}
	}
}

func TestAggregateOutputSortedByKey(t *testing.T) {
	records := []Record{
		{"np_id": "ZZZ", "year": "1900", "issues": "z", "items": 1},
		{"np_id": "AAA", "year": "1950", "issues": "a", "items": 1},
		{"np_id": "AAA", "year": "1900", "issues": "a", "items": 1},
	}
	out, err := Aggregate(context.Background(), FromSlice(records, 3), testPlan(), Options{})
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}
	wantOrder := [][2]string{{"AAA", "1900"}, {"AAA", "1950"}, {"ZZZ", "1900"}}
	for i, rec := range out {
		if rec["np_id"] != wantOrder[i][0] || rec["year"] != wantOrder[i][1] {
			t.Fatalf("output[%d] key = (%v, %v), want %v", i, rec["np_id"], rec["year"], wantOrder[i])
		}
	}
}

func TestAggregateMissingKeyColumn(t *testing.T) {
	records := []Record{{"np_id": "NZZ", "issues": "x", "items": 1}}
	_, err := Aggregate(context.Background(), FromSlice(records, 1), testPlan(), Options{})
	if !errors.Is(err, pkgerrors.ErrAggregation) {
		t.Fatalf("Aggregate() error = %v, want ErrAggregation", err)
	}
}

func TestAggregateNoKeysConfigured(t *testing.T) {
	plan := Plan{Kind: "test", Fields: map[string]Aggregation{"items": Sum{}}}
	_, err := Aggregate(context.Background(), FromSlice([]Record{}, 1), plan, Options{})
	if !errors.Is(err, pkgerrors.ErrAggregation) {
		t.Fatalf("Aggregate() error = %v, want ErrAggregation", err)
	}
}

type countingSink struct {
	calls int
	last  [2]int
}

func (c *countingSink) Progress(stage string, completed, total int) {
	c.calls++
	c.last = [2]int{completed, total}
}

func TestAggregateReportsProgressDuringMaterialization(t *testing.T) {
	records := []Record{
		{"np_id": "A", "year": "1900", "issues": "a", "items": 1},
		{"np_id": "B", "year": "1900", "issues": "b", "items": 1},
	}
	sink := &countingSink{}
	_, err := Aggregate(context.Background(), FromSlice(records, 1), testPlan(), Options{Progress: sink})
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}
	if sink.calls != 2 {
		t.Fatalf("progress calls = %d, want 2", sink.calls)
	}
	if sink.last != [2]int{2, 2} {
		t.Fatalf("final progress = %v, want [2 2]", sink.last)
	}
}

func TestDistinctCountStages(t *testing.T) {
	agg := DistinctCount{}

	chunk1, err := agg.Chunk([]any{"a", "b", "a"})
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if got := chunk1.([]string); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("Chunk() = %v, want [a b]", got)
	}

	chunk2, err := agg.Chunk([]any{[]string{"b", "c"}})
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}

	combined, err := agg.Combine([]any{chunk1, chunk2})
	if err != nil {
		t.Fatalf("Combine() error: %v", err)
	}
	// the combine stage concatenates, it must not deduplicate
	if got := combined.([]string); len(got) != 4 {
		t.Fatalf("Combine() kept %d values, want 4", len(got))
	}

	final, err := agg.Finalize(combined)
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	if final != 3 {
		t.Fatalf("Finalize() = %v, want 3", final)
	}
}

func TestDistinctCountRejectsNonString(t *testing.T) {
	if _, err := (DistinctCount{}).Chunk([]any{42}); err == nil {
		t.Fatal("Chunk() accepted a non-string value")
	}
}

func TestSumNormalizesJSONNumbers(t *testing.T) {
	got, err := Sum{}.Chunk([]any{1, int64(2), float64(3)})
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if got != 6 {
		t.Fatalf("Chunk() = %v, want 6", got)
	}
	if _, err := (Sum{}).Chunk([]any{"no"}); err == nil {
		t.Fatal("Chunk() accepted a non-numeric value")
	}
}

func TestSumRejectsNonIntegralFloat(t *testing.T) {
	if _, err := (Sum{}).Chunk([]any{1.7}); err == nil {
		t.Fatal("Chunk() accepted a non-integral float")
	}
	if _, err := (Sum{}).Combine([]any{2.5}); err == nil {
		t.Fatal("Combine() accepted a non-integral float")
	}
	got, err := Sum{}.Chunk([]any{float64(3)})
	if err != nil {
		t.Fatalf("Chunk() rejected an integral float: %v", err)
	}
	if got != 3 {
		t.Fatalf("Chunk() = %v, want 3", got)
	}
}

func TestCollectGathersAllValues(t *testing.T) {
	agg := Collect{}
	c1, _ := agg.Chunk([]any{"fr", "de"})
	c2, _ := agg.Chunk([]any{"fr"})
	combined, err := agg.Combine([]any{c1, c2})
	if err != nil {
		t.Fatalf("Combine() error: %v", err)
	}
	final, err := agg.Finalize(combined)
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	if got := final.([]any); len(got) != 3 {
		t.Fatalf("Finalize() kept %d values, want 3", len(got))
	}
}
