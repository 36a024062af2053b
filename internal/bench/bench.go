// Package bench measures recall@K and search-latency percentiles against a
// running Engine. The teacher reports its numbers through testing.B's
// RunParallel/ReportMetric machinery (see benchmark/*_bench_test.go); this
// package adapts the same measure-then-report idiom into a runnable library
// invoked from the CLI rather than `go test -bench`, stamping each run with
// a UUID so repeated runs against the same data directory can be told apart
// in logs.
package bench

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nanoindex/nanoindex"
)

// Config parameterizes a synthetic benchmark run.
type Config struct {
	NumVectors int
	Dim        int
	NumQueries int
	TopK       int
	Clusters   int
	UseIndex   bool
	UseAgent   bool
	Seed       int64
}

// DefaultConfig returns a modest-sized run sized for a laptop-class machine.
func DefaultConfig(dim int) Config {
	return Config{
		NumVectors: 5000,
		Dim:        dim,
		NumQueries: 200,
		TopK:       10,
		Clusters:   32,
		UseIndex:   true,
		UseAgent:   false,
		Seed:       1,
	}
}

// Report is the measured outcome of one Run, keyed by RunID for correlating
// against logged search latencies elsewhere.
type Report struct {
	RunID        string        `json:"run_id"`
	NumVectors   int           `json:"num_vectors"`
	NumQueries   int           `json:"num_queries"`
	TopK         int           `json:"top_k"`
	RecallAtK    float64       `json:"recall_at_k"`
	P50LatencyMs float64       `json:"p50_latency_ms"`
	P95LatencyMs float64       `json:"p95_latency_ms"`
	P99LatencyMs float64       `json:"p99_latency_ms"`
	TotalTime    time.Duration `json:"total_time_ns"`
}

// Run seeds eng with cfg.NumVectors random vectors, optionally trains the
// IVF index, then issues cfg.NumQueries searches, comparing each against an
// exhaustive flat-scan ground truth to compute recall@K.
func Run(ctx context.Context, eng *nanoindex.Engine, cfg Config) (*Report, error) {
	runID := uuid.NewString()
	rng := rand.New(rand.NewSource(cfg.Seed))

	vectors := make([][]float32, cfg.NumVectors)
	ids := make([]int64, cfg.NumVectors)
	for i := range vectors {
		v := make([]float32, cfg.Dim)
		for d := range v {
			v[d] = rng.Float32()*2 - 1
		}
		vectors[i] = v
		ids[i] = int64(i + 1)
	}
	if _, err := eng.Add(vectors, ids); err != nil {
		return nil, fmt.Errorf("bench: seeding vectors: %w", err)
	}

	if cfg.UseIndex {
		if _, err := eng.Train(ctx, cfg.Clusters); err != nil {
			return nil, fmt.Errorf("bench: training index: %w", err)
		}
	}

	queries := make([][]float32, cfg.NumQueries)
	for i := range queries {
		src := vectors[rng.Intn(len(vectors))]
		q := make([]float32, len(src))
		copy(q, src)
		queries[i] = q
	}

	start := time.Now()
	latencies := make([]float64, 0, cfg.NumQueries)
	var hitSum int
	for _, q := range queries {
		truth, err := eng.Search(ctx, q, cfg.TopK, false, false)
		if err != nil {
			return nil, fmt.Errorf("bench: ground-truth search: %w", err)
		}

		qStart := time.Now()
		got, err := eng.Search(ctx, q, cfg.TopK, cfg.UseIndex, cfg.UseAgent)
		if err != nil {
			return nil, fmt.Errorf("bench: search: %w", err)
		}
		latencies = append(latencies, float64(time.Since(qStart).Microseconds())/1000.0)

		hitSum += overlap(truth.Results, got.Results)
	}
	total := time.Since(start)

	sort.Float64s(latencies)
	return &Report{
		RunID:        runID,
		NumVectors:   cfg.NumVectors,
		NumQueries:   cfg.NumQueries,
		TopK:         cfg.TopK,
		RecallAtK:    float64(hitSum) / float64(cfg.NumQueries*cfg.TopK),
		P50LatencyMs: percentile(latencies, 0.50),
		P95LatencyMs: percentile(latencies, 0.95),
		P99LatencyMs: percentile(latencies, 0.99),
		TotalTime:    total,
	}, nil
}

func overlap(truth, got []nanoindex.SearchHit) int {
	seen := make(map[int64]struct{}, len(truth))
	for _, h := range truth {
		seen[h.ID] = struct{}{}
	}
	n := 0
	for _, h := range got {
		if _, ok := seen[h.ID]; ok {
			n++
		}
	}
	return n
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
