package ivf

import (
	"context"
	"testing"

	"github.com/nanoindex/nanoindex/internal/cluster"
	"github.com/nanoindex/nanoindex/internal/distance"
)

type fakeSource struct {
	dim  int
	data []float32
}

func (f *fakeSource) Dim() int                  { return f.dim }
func (f *fakeSource) N() int                    { return len(f.data) / f.dim }
func (f *fakeSource) AllVectorsFlat() []float32 { return f.data }
func (f *fakeSource) NormsSq() []float32 {
	n := f.N()
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = distance.NormSq(f.data[i*f.dim : (i+1)*f.dim])
	}
	return out
}

func TestUntrainedSearchReturnsEmpty(t *testing.T) {
	var idx Index
	results, err := idx.Search(context.Background(), []float32{1, 2}, 5, 3, 100, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %v", results)
	}
}

func TestTrainPartitionsRows(t *testing.T) {
	src := &fakeSource{dim: 2, data: []float32{
		0, 0,
		0.1, 0,
		10, 10,
		10.1, 10,
		5, 5,
	}}
	cfg := cluster.DefaultConfig(2)
	cfg.Seed = 1

	idx, err := Train(context.Background(), src, 2, cfg)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if idx.NTrained() != 5 {
		t.Fatalf("expected NTrained=5, got %d", idx.NTrained())
	}

	seen := make(map[int]bool)
	total := 0
	for _, list := range idx.lists {
		for _, row := range list {
			if seen[int(row)] {
				t.Fatalf("row %d assigned to more than one list", row)
			}
			seen[int(row)] = true
			total++
		}
	}
	if total != 5 {
		t.Fatalf("expected all 5 rows partitioned, got %d", total)
	}
}

func TestSingleClusterMatchesFlat(t *testing.T) {
	src := &fakeSource{dim: 2, data: []float32{
		1, 1,
		2, 2,
		3, 3,
		10, 0,
	}}
	cfg := cluster.DefaultConfig(1)
	cfg.Seed = 9

	idx, err := Train(context.Background(), src, 1, cfg)
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	query := []float32{0, 0}
	norms := src.NormsSq()
	results, err := idx.Search(context.Background(), query, 4, 1, 0, norms, src.data)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected all 4 rows with K=1, got %d", len(results))
	}

	flatDists := distance.L2SqBatch(query, src.data, 2, norms)
	for i, r := range results {
		want := flatDists[r.RowIndex]
		if r.Distance != want {
			t.Fatalf("result %d distance mismatch: got %v want %v", i, r.Distance, want)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Fatalf("results not sorted ascending: %v", results)
		}
	}
}

func TestNProbeGreaterThanKIsInvalid(t *testing.T) {
	src := &fakeSource{dim: 2, data: []float32{0, 0, 1, 1, 2, 2, 3, 3}}
	cfg := cluster.DefaultConfig(2)
	cfg.Seed = 2

	idx, err := Train(context.Background(), src, 2, cfg)
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	_, err = idx.Search(context.Background(), []float32{0, 0}, 2, 3, 0, src.NormsSq(), src.data)
	if err == nil {
		t.Fatalf("expected error for nprobe > k")
	}
}

func TestMaxCodesBudgetLimitsScan(t *testing.T) {
	src := &fakeSource{dim: 1, data: []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}}
	cfg := cluster.DefaultConfig(1)
	cfg.Seed = 4

	idx, err := Train(context.Background(), src, 1, cfg)
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	results, err := idx.Search(context.Background(), []float32{0}, 10, 1, 3, src.NormsSq(), src.data)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) > 3 {
		t.Fatalf("expected at most 3 results under max_codes budget, got %d", len(results))
	}
}

func TestEmptyStoreTrainsToUntrained(t *testing.T) {
	src := &fakeSource{dim: 2, data: nil}
	cfg := cluster.DefaultConfig(2)

	idx, err := Train(context.Background(), src, 2, cfg)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if idx.IsTrained() {
		t.Fatalf("expected untrained index for empty store")
	}
	results, err := idx.Search(context.Background(), []float32{0, 0}, 5, 1, 0, nil, nil)
	if err != nil || len(results) != 0 {
		t.Fatalf("expected empty results, got %v err=%v", results, err)
	}
}
