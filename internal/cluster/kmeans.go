// Package cluster implements mini-batch K-means (component C3): plain
// random centroid seeding over an optionally subsampled training set, fused
// batched assignment, and empty-cluster retention, in the spirit of the
// teacher's coarse-quantizer trainer but without k-means++ seeding or
// product quantization.
package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/nanoindex/nanoindex/internal/distance"
)

// Config holds the mini-batch K-means knobs named in the clustering design.
type Config struct {
	K         int
	MaxIters  int
	Tol       float32
	SampleCap int
	Seed      int64
}

// DefaultConfig returns the documented defaults for every field except K,
// which the caller must always set explicitly.
func DefaultConfig(k int) Config {
	return Config{
		K:         k,
		MaxIters:  20,
		Tol:       1e-4,
		SampleCap: 10000,
		Seed:      0,
	}
}

// Result is the outcome of a training run: the learned centroid matrix and
// its squared norms, cached for reuse by the IVF index.
type Result struct {
	Centroids  []float32 // K * dim, row-major
	CentroidSq []float32 // K, ||c_k||^2
	Dim        int
	K          int
	Iterations int
	Converged  bool
}

// Train runs mini-batch K-means over the row-major matrix X (n rows of dim
// columns each). It never mutates X. Given the same seed and input it
// produces bit-identical centroids.
func Train(x []float32, n, dim int, cfg Config) (*Result, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("cluster: dimension must be positive, got %d", dim)
	}
	if len(x) != n*dim {
		return nil, fmt.Errorf("cluster: data length %d does not match n*dim (%d*%d)", len(x), n, dim)
	}
	if cfg.K <= 0 {
		return nil, fmt.Errorf("cluster: k must be positive, got %d", cfg.K)
	}
	maxIters := cfg.MaxIters
	if maxIters <= 0 {
		maxIters = 20
	}
	tol := cfg.Tol
	if tol <= 0 {
		tol = 1e-4
	}
	sampleCap := cfg.SampleCap
	if sampleCap <= 0 {
		sampleCap = 10000
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	sampleRows, sampleN := subsample(n, sampleCap, rng)
	if cfg.K > sampleN {
		return nil, fmt.Errorf("cluster: k=%d exceeds sample size %d", cfg.K, sampleN)
	}

	xPrime := gather(x, dim, sampleRows)

	centroids := seedCentroids(xPrime, sampleN, dim, cfg.K, rng)

	converged := false
	iter := 0
	for ; iter < maxIters; iter++ {
		assignments, centroidSq := assign(xPrime, sampleN, dim, centroids, cfg.K)
		shift := update(xPrime, sampleN, dim, assignments, centroids, cfg.K)
		_ = centroidSq
		if shift <= tol {
			converged = true
			iter++
			break
		}
	}

	centroidSq := make([]float32, cfg.K)
	for k := 0; k < cfg.K; k++ {
		centroidSq[k] = distance.NormSq(centroids[k*dim : (k+1)*dim])
	}

	return &Result{
		Centroids:  centroids,
		CentroidSq: centroidSq,
		Dim:        dim,
		K:          cfg.K,
		Iterations: iter,
		Converged:  converged,
	}, nil
}

// subsample draws min(n, cap) row indices uniformly without replacement via
// a partial Fisher-Yates shuffle, preserving nothing about input order in
// the returned index set (order within the returned slice is the draw
// order, which is irrelevant to the algorithm).
func subsample(n, cap int, rng *rand.Rand) ([]int, int) {
	if n <= cap {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows, n
	}

	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	for i := 0; i < cap; i++ {
		j := i + rng.Intn(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:cap], cap
}

func gather(x []float32, dim int, rows []int) []float32 {
	out := make([]float32, len(rows)*dim)
	for i, r := range rows {
		copy(out[i*dim:(i+1)*dim], x[r*dim:(r+1)*dim])
	}
	return out
}

// seedCentroids samples K rows from xPrime uniformly without replacement.
// This is plain random seeding, deliberately not k-means++.
func seedCentroids(xPrime []float32, n, dim, k int, rng *rand.Rand) []float32 {
	picks, _ := subsample(n, k, rng)
	centroids := make([]float32, k*dim)
	for i, r := range picks {
		copy(centroids[i*dim:(i+1)*dim], xPrime[r*dim:(r+1)*dim])
	}
	return centroids
}

// assign computes, for every row of xPrime, the index of its nearest
// centroid using the fused batched distance form, one centroid at a time:
// for each centroid k it scores every row against it and keeps a running
// argmin per row, so ties naturally favor the lowest centroid index since
// centroids are visited in ascending order and a tie never overwrites the
// existing assignment.
func assign(xPrime []float32, n, dim int, centroids []float32, k int) ([]int, []float32) {
	assignments := make([]int, n)
	best := make([]float32, n)
	for i := range best {
		best[i] = math.MaxFloat32
	}

	for c := 0; c < k; c++ {
		centroid := centroids[c*dim : (c+1)*dim]
		dists := distance.L2SqBatch(centroid, xPrime, dim, nil)
		for i, d := range dists {
			if d < best[i] {
				best[i] = d
				assignments[i] = c
			}
		}
	}

	return assignments, best
}

// update recomputes each centroid as the mean of its assigned rows,
// leaving untouched any centroid with no assignments. It returns the
// maximum per-centroid L2 shift observed, mutating centroids in place.
func update(xPrime []float32, n, dim int, assignments []int, centroids []float32, k int) float32 {
	sums := make([]float32, k*dim)
	counts := make([]int, k)

	for i := 0; i < n; i++ {
		c := assignments[i]
		counts[c]++
		row := xPrime[i*dim : (i+1)*dim]
		sumRow := sums[c*dim : (c+1)*dim]
		for d := 0; d < dim; d++ {
			sumRow[d] += row[d]
		}
	}

	var maxShift float32
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			continue
		}
		old := centroids[c*dim : (c+1)*dim]
		newCentroid := sums[c*dim : (c+1)*dim]
		inv := 1.0 / float32(counts[c])

		var shiftSq float32
		for d := 0; d < dim; d++ {
			nv := newCentroid[d] * inv
			diff := nv - old[d]
			shiftSq += diff * diff
			old[d] = nv
		}
		if shift := float32(math.Sqrt(float64(shiftSq))); shift > maxShift {
			maxShift = shift
		}
	}

	return maxShift
}
