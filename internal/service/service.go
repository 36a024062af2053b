// Package service implements the SearchService glue (component C6 in the
// dependency graph, though the design calls it a thin layer rather than a
// numbered component): dispatching a query to the flat scan or the IVF
// index, optionally through the adaptive agent, and resolving row indices
// back to external IDs. It owns no locks of its own; the caller (the
// top-level Engine) is expected to hold the store/index read lock for the
// duration of Search, mirroring how the teacher's Collection wraps its
// Database components under its own mutex.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nanoindex/nanoindex/internal/agent"
	"github.com/nanoindex/nanoindex/internal/distance"
	"github.com/nanoindex/nanoindex/internal/index/ivf"
	"github.com/nanoindex/nanoindex/internal/store"
)

// Hit is a single ranked search result, with the row resolved to its
// caller-supplied external ID.
type Hit struct {
	ID       int64
	Distance float32
}

// Outcome is the full return value of Search: the ranked hits, the
// observed latency, and which strategy produced them.
type Outcome struct {
	Hits      []Hit
	LatencyMs float64
	Strategy  string
}

// Service holds the glue's configuration. The zero value uses L2 and, on
// the IVF path, probes every inverted list with no scan budget; New sets
// the documented defaults. A probe count above the index's K is lowered to
// K before the IVF search runs.
type Service struct {
	DefaultNProbe   int
	DefaultMaxCodes int
	Metric          distance.Metric
}

// New returns a Service configured with the documented defaults.
func New() *Service {
	return &Service{
		DefaultNProbe:   10,
		DefaultMaxCodes: 50000,
		Metric:          distance.L2,
	}
}

// Search dispatches query against ds (and idx, if non-nil and trained),
// optionally asking ag which strategy to use and feeding the observed
// latency back. store and idx must already be safe to read for the
// duration of the call (the caller holds the appropriate lock).
func (s *Service) Search(ctx context.Context, ds *store.DataStore, idx *ivf.Index, ag *agent.Agent, query []float32, topK int, useIndex, useAgent bool) (*Outcome, error) {
	if len(query) != ds.Dim() {
		return nil, fmt.Errorf("service: query dimension %d does not match store dimension %d", len(query), ds.Dim())
	}
	if topK <= 0 {
		return nil, fmt.Errorf("service: top_k must be positive, got %d", topK)
	}

	start := time.Now()

	strategy := "flat"
	nprobe := s.DefaultNProbe
	maxCodes := s.DefaultMaxCodes
	wantIVF := false

	var arm string
	if useAgent && ag != nil {
		arm = ag.Select()
		strategy = arm
		if arm != "flat" {
			p := agent.Params(arm)
			nprobe = p.NProbe
			maxCodes = p.MaxCodes
			wantIVF = true
		}
	} else if useIndex {
		strategy = "ivf_balanced"
		wantIVF = true
	}

	var rows []rowDistance
	var err error

	if wantIVF && idx.IsTrained() {
		if nprobe > idx.K() {
			nprobe = idx.K()
		}
		rows, err = s.searchIVF(ctx, ds, idx, query, topK, nprobe, maxCodes)
	} else {
		strategy = "flat"
		rows, err = s.searchFlat(ds, query, topK)
	}
	if err != nil {
		return nil, err
	}

	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

	if useAgent && ag != nil {
		ag.Update(arm, latencyMs)
	}

	hits := make([]Hit, len(rows))
	for i, rd := range rows {
		id, idErr := ds.RowID(rd.row)
		if idErr != nil {
			return nil, idErr
		}
		hits[i] = Hit{ID: id, Distance: rd.dist}
	}

	return &Outcome{Hits: hits, LatencyMs: latencyMs, Strategy: strategy}, nil
}

type rowDistance struct {
	row  int
	dist float32
}

func (s *Service) searchFlat(ds *store.DataStore, query []float32, topK int) ([]rowDistance, error) {
	n := ds.N()
	if n == 0 {
		return nil, nil
	}

	all := ds.AllVectorsFlat()
	norms := ds.NormsSq()

	var dists []float32
	switch s.Metric {
	case distance.MetricCosine:
		dists = make([]float32, n)
		dim := ds.Dim()
		for i := 0; i < n; i++ {
			dists[i] = distance.Cosine(query, all[i*dim:(i+1)*dim])
		}
	default:
		dists = distance.L2SqBatch(query, all, ds.Dim(), norms)
	}

	if topK > n {
		topK = n
	}
	heap := distance.NewTopKHeap(topK)
	for row, d := range dists {
		heap.Offer(distance.Candidate{RowIndex: row, Distance: d})
	}

	sorted := heap.Sorted()
	out := make([]rowDistance, len(sorted))
	for i, c := range sorted {
		out[i] = rowDistance{row: c.RowIndex, dist: c.Distance}
	}
	return out, nil
}

func (s *Service) searchIVF(ctx context.Context, ds *store.DataStore, idx *ivf.Index, query []float32, topK, nprobe, maxCodes int) ([]rowDistance, error) {
	results, err := idx.Search(ctx, query, topK, nprobe, maxCodes, ds.NormsSq(), ds.AllVectorsFlat())
	if err != nil {
		return nil, err
	}
	out := make([]rowDistance, len(results))
	for i, r := range results {
		out[i] = rowDistance{row: r.RowIndex, dist: r.Distance}
	}
	return out, nil
}
