package cluster

import (
	"math"
	"testing"
)

func flatten(rows [][]float32) []float32 {
	dim := len(rows[0])
	out := make([]float32, 0, len(rows)*dim)
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

func TestTrainSeparatesObviousClusters(t *testing.T) {
	rows := [][]float32{
		{0, 0}, {0.1, 0}, {0, 0.1},
		{10, 10}, {10.1, 10}, {10, 10.1},
	}
	x := flatten(rows)

	cfg := DefaultConfig(2)
	cfg.Seed = 42

	res, err := Train(x, len(rows), 2, cfg)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if res.K != 2 || res.Dim != 2 {
		t.Fatalf("unexpected shape: %+v", res)
	}

	var nearZero, nearTen int
	for k := 0; k < 2; k++ {
		c := res.Centroids[k*2 : k*2+2]
		if c[0] < 5 && c[1] < 5 {
			nearZero++
		} else {
			nearTen++
		}
	}
	if nearZero != 1 || nearTen != 1 {
		t.Fatalf("expected one centroid near each cluster, got centroids %v", res.Centroids)
	}
}

func TestTrainDeterministicGivenSeed(t *testing.T) {
	rows := [][]float32{
		{1, 2}, {2, 1}, {8, 9}, {9, 8}, {3, 3}, {7, 7},
	}
	x := flatten(rows)

	cfg := DefaultConfig(2)
	cfg.Seed = 7

	a, err := Train(x, len(rows), 2, cfg)
	if err != nil {
		t.Fatalf("train a: %v", err)
	}
	b, err := Train(x, len(rows), 2, cfg)
	if err != nil {
		t.Fatalf("train b: %v", err)
	}

	for i := range a.Centroids {
		if a.Centroids[i] != b.Centroids[i] {
			t.Fatalf("non-deterministic centroid at %d: %v vs %v", i, a.Centroids[i], b.Centroids[i])
		}
	}
}

func TestTrainKGreaterThanSampleIsInvalid(t *testing.T) {
	x := flatten([][]float32{{1, 1}, {2, 2}})
	cfg := DefaultConfig(5)

	if _, err := Train(x, 2, 2, cfg); err == nil {
		t.Fatalf("expected error when k exceeds sample size")
	}
}

func TestTrainEmptyClusterKeepsPreviousCentroid(t *testing.T) {
	// All points identical: both seeded centroids are {5, 5}, every row
	// ties and goes to centroid 0, so centroid 1 is left empty. Verify
	// training does not NaN it out and keeps its seeded value.
	rows := [][]float32{{5, 5}, {5, 5}, {5, 5}, {5, 5}}
	x := flatten(rows)

	cfg := DefaultConfig(2)
	cfg.Seed = 1

	res, err := Train(x, len(rows), 2, cfg)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	for _, v := range res.Centroids {
		if math.IsNaN(float64(v)) {
			t.Fatalf("centroid contains NaN: %v", res.Centroids)
		}
		if v != 5 {
			t.Fatalf("expected every centroid to stay at {5, 5}, got %v", res.Centroids)
		}
	}
}

func TestCentroidSqMatchesDotProduct(t *testing.T) {
	rows := [][]float32{{1, 0}, {0, 1}, {3, 4}, {6, 8}}
	x := flatten(rows)

	cfg := DefaultConfig(2)
	cfg.Seed = 3

	res, err := Train(x, len(rows), 2, cfg)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	for k := 0; k < res.K; k++ {
		c := res.Centroids[k*2 : k*2+2]
		want := c[0]*c[0] + c[1]*c[1]
		got := res.CentroidSq[k]
		if math.Abs(float64(got-want)) > 1e-4*math.Abs(float64(want))+1e-6 {
			t.Fatalf("centroid %d norm mismatch: got %v want %v", k, got, want)
		}
	}
}
