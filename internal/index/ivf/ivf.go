// Package ivf implements the inverted-file index (component C4): coarse
// centroids trained by internal/cluster, per-centroid inverted lists built
// in row-index order, and probe-bounded search with a hard scan budget. It
// plays the role the teacher's internal/index/ivfpq package plays, stripped
// of product quantization and grown a max_codes scan budget the teacher
// never had.
package ivf

import (
	"context"
	"fmt"
	"sort"

	"github.com/nanoindex/nanoindex/internal/cluster"
	"github.com/nanoindex/nanoindex/internal/distance"
)

// VectorSource is the minimal read-only view of the data store the index
// needs to train and search, letting tests substitute a fake store.
type VectorSource interface {
	Dim() int
	N() int
	AllVectorsFlat() []float32
	NormsSq() []float32
}

// Result is a single search hit: a row index into the data store and its
// squared distance to the query.
type Result struct {
	RowIndex int
	Distance float32
}

// Index holds a trained set of centroids and their inverted lists. The zero
// value is a valid, untrained index whose Search always returns empty.
type Index struct {
	dim        int
	k          int
	nTrained   int
	centroids  []float32 // k * dim
	centroidSq []float32 // k
	lists      [][]int32 // k inverted lists of row indices, row-index order
}

// IsTrained reports whether Train has produced usable centroids.
func (idx *Index) IsTrained() bool {
	return idx != nil && idx.k > 0
}

// NTrained returns the row count snapshotted at the most recent Train call.
func (idx *Index) NTrained() int {
	if idx == nil {
		return 0
	}
	return idx.nTrained
}

// K returns the number of centroids the index was trained with.
func (idx *Index) K() int {
	if idx == nil {
		return 0
	}
	return idx.k
}

// Train clusters the first N rows of src into k centroids and builds
// inverted lists over exactly those rows. It returns a brand new *Index and
// never mutates the receiver, so callers build off-band and swap the
// pointer in under their own exclusive lock.
func Train(ctx context.Context, src VectorSource, k int, cfg cluster.Config) (*Index, error) {
	dim := src.Dim()
	n := src.N()

	if k <= 0 {
		return nil, fmt.Errorf("ivf: k must be positive, got %d", k)
	}
	if n == 0 {
		return &Index{dim: dim, k: 0, nTrained: 0}, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	cfg.K = k
	data := src.AllVectorsFlat()

	res, err := cluster.Train(data, n, dim, cfg)
	if err != nil {
		return nil, err
	}

	assignments := assignRows(data, n, dim, res.Centroids, src.NormsSq(), k)

	lists := make([][]int32, k)
	for row, c := range assignments {
		lists[c] = append(lists[c], int32(row))
	}

	return &Index{
		dim:        dim,
		k:          k,
		nTrained:   n,
		centroids:  res.Centroids,
		centroidSq: res.CentroidSq,
		lists:      lists,
	}, nil
}

// assignRows computes, for every row, the index of its nearest centroid
// using the fused batched distance with the store's norm cache, visiting
// centroids in ascending order so ties favor the lowest centroid index.
func assignRows(data []float32, n, dim int, centroids, rowNormsSq []float32, k int) []int {
	assignments := make([]int, n)
	best := make([]float32, n)
	for i := range best {
		best[i] = maxFloat32
	}

	for c := 0; c < k; c++ {
		centroid := centroids[c*dim : (c+1)*dim]
		dists := distance.L2SqBatch(centroid, data, dim, rowNormsSq)
		for row, d := range dists {
			if d < best[row] {
				best[row] = d
				assignments[row] = c
			}
		}
	}
	return assignments
}

const maxFloat32 = 3.4028235e38

// Search returns the topK nearest rows to query among the nprobe closest
// centroids, scanning at most maxCodes rows in total. An untrained index
// always returns an empty, non-error result.
func (idx *Index) Search(ctx context.Context, query []float32, topK, nprobe, maxCodes int, rowNormsSq, allVectorsFlat []float32) ([]Result, error) {
	if idx == nil || !idx.IsTrained() {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("ivf: query dimension %d does not match index dimension %d", len(query), idx.dim)
	}
	if nprobe > idx.k {
		return nil, fmt.Errorf("ivf: nprobe %d exceeds k %d", nprobe, idx.k)
	}
	if nprobe <= 0 {
		nprobe = idx.k
	}
	if topK <= 0 {
		return nil, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	queryNormSq := distance.NormSq(query)
	centroidDists := make([]float32, idx.k)
	for c := 0; c < idx.k; c++ {
		centroid := idx.centroids[c*idx.dim : (c+1)*idx.dim]
		var dot float32
		for d := 0; d < idx.dim; d++ {
			dot += query[d] * centroid[d]
		}
		centroidDists[c] = queryNormSq + idx.centroidSq[c] - 2*dot
	}

	probeOrder := make([]int, idx.k)
	for i := range probeOrder {
		probeOrder[i] = i
	}
	sort.Slice(probeOrder, func(i, j int) bool {
		a, b := probeOrder[i], probeOrder[j]
		if centroidDists[a] != centroidDists[b] {
			return centroidDists[a] < centroidDists[b]
		}
		return a < b
	})
	probeOrder = probeOrder[:nprobe]

	heap := distance.NewTopKHeap(topK)
	codesScanned := 0

probeLoop:
	for _, c := range probeOrder {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		list := idx.lists[c]
		for _, row := range list {
			if maxCodes > 0 && codesScanned >= maxCodes {
				break probeLoop
			}
			rowVec := allVectorsFlat[int(row)*idx.dim : (int(row)+1)*idx.dim]
			var rowNormSq float32
			if rowNormsSq != nil {
				rowNormSq = rowNormsSq[row]
			} else {
				rowNormSq = distance.NormSq(rowVec)
			}
			var dot float32
			for d := 0; d < idx.dim; d++ {
				dot += query[d] * rowVec[d]
			}
			d := queryNormSq + rowNormSq - 2*dot
			if d < 0 {
				d = 0
			}
			heap.Offer(distance.Candidate{RowIndex: int(row), Distance: d})
			codesScanned++
		}
	}

	sorted := heap.Sorted()
	results := make([]Result, len(sorted))
	for i, c := range sorted {
		results[i] = Result{RowIndex: c.RowIndex, Distance: c.Distance}
	}
	return results, nil
}
