package distance

import (
	"math"
	"testing"
)

func TestL2SqExactMatch(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	if got := L2Sq(a, b); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestL2SqNonNegative(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-1, 5, 0.5}
	if got := L2Sq(a, b); got < 0 {
		t.Fatalf("expected non-negative, got %v", got)
	}
}

func TestCosineZeroVector(t *testing.T) {
	zero := []float32{0, 0, 0}
	other := []float32{1, 2, 3}
	if got := Cosine(zero, other); got != 1.0 {
		t.Fatalf("expected 1.0 for zero vector, got %v", got)
	}
}

func TestNormalizeZeroVectorUnchanged(t *testing.T) {
	zero := []float32{0, 0, 0}
	got := Normalize(zero)
	for i, v := range got {
		if v != zero[i] {
			t.Fatalf("expected unchanged zero vector, got %v", got)
		}
	}
}

func TestNormalizeUnitNorm(t *testing.T) {
	v := []float32{3, 4}
	got := Normalize(v)
	normSq := NormSq(got)
	if math.Abs(float64(normSq)-1.0) > 1e-4 {
		t.Fatalf("expected unit norm, got normSq=%v", normSq)
	}
}

func TestL2SqBatchMatchesPairwise(t *testing.T) {
	q := []float32{1, 2, 3}
	rows := []float32{
		1, 2, 3,
		4, 5, 6,
		0, 0, 0,
	}
	dim := 3

	got := L2SqBatch(q, rows, dim, nil)
	for i := 0; i < 3; i++ {
		row := rows[i*dim : (i+1)*dim]
		want := L2Sq(q, row)
		if relErr(got[i], want) > 1e-4 {
			t.Fatalf("row %d: got %v want %v", i, got[i], want)
		}
	}
}

func TestL2SqBatchWithCachedNorms(t *testing.T) {
	q := []float32{1, 0}
	rows := []float32{2, 0, 0, 3}
	dim := 2
	cached := []float32{NormSq(rows[0:2]), NormSq(rows[2:4])}

	got := L2SqBatch(q, rows, dim, cached)
	want := L2SqBatch(q, rows, dim, nil)
	for i := range got {
		if relErr(got[i], want[i]) > 1e-4 {
			t.Fatalf("index %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestL2SqBatchEmpty(t *testing.T) {
	q := []float32{1, 2}
	got := L2SqBatch(q, nil, 2, nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %v", got)
	}
}

func TestTopKHeapStableTiebreak(t *testing.T) {
	h := NewTopKHeap(2)
	h.Offer(Candidate{RowIndex: 1, Distance: 1.0})
	h.Offer(Candidate{RowIndex: 0, Distance: 1.0})

	sorted := h.Sorted()
	if len(sorted) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(sorted))
	}
	if sorted[0].RowIndex != 0 || sorted[1].RowIndex != 1 {
		t.Fatalf("expected row 0 before row 1 on tie, got %+v", sorted)
	}
}

func TestTopKHeapEvictsWorst(t *testing.T) {
	h := NewTopKHeap(2)
	h.Offer(Candidate{RowIndex: 0, Distance: 5})
	h.Offer(Candidate{RowIndex: 1, Distance: 3})
	h.Offer(Candidate{RowIndex: 2, Distance: 1})

	sorted := h.Sorted()
	if len(sorted) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(sorted))
	}
	if sorted[0].RowIndex != 2 || sorted[1].RowIndex != 1 {
		t.Fatalf("expected rows [2,1], got %+v", sorted)
	}
}

func relErr(got, want float32) float64 {
	if want == 0 {
		return math.Abs(float64(got))
	}
	return math.Abs(float64(got-want) / float64(want))
}
