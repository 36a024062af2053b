package store

import (
	"errors"
	"os"
	"testing"
)

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "nanoindex-store-*")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestAddAndGetByID(t *testing.T) {
	ds, err := Open(tempDir(t), 3, 8)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ds.Close()

	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	ids := []int64{10, 20, 30}

	rows, err := ds.Add(vectors, ids)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	row, v, err := ds.GetByID(10)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if row != 0 {
		t.Fatalf("expected row 0, got %d", row)
	}
	if v[0] != 1 || v[1] != 0 || v[2] != 0 {
		t.Fatalf("unexpected vector %v", v)
	}
}

func TestDuplicateIDRejectedAtomically(t *testing.T) {
	ds, err := Open(tempDir(t), 2, 8)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ds.Close()

	if _, err := ds.Add([][]float32{{1, 1}}, []int64{1}); err != nil {
		t.Fatalf("initial add: %v", err)
	}

	_, err = ds.Add([][]float32{{2, 2}, {3, 3}, {4, 4}}, []int64{2, 1, 3})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if ds.N() != 1 {
		t.Fatalf("expected N=1 after rejected batch, got %d", ds.N())
	}
	if _, _, err := ds.GetByID(2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected id 2 to be absent, got err=%v", err)
	}
	if _, _, err := ds.GetByID(3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected id 3 to be absent, got err=%v", err)
	}
}

func TestGrowthDoubles(t *testing.T) {
	ds, err := Open(tempDir(t), 2, 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ds.Close()

	for i := int64(0); i < 5; i++ {
		if _, err := ds.Add([][]float32{{float32(i), float32(i) + 1}}, []int64{i}); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	if ds.Capacity() != 8 {
		t.Fatalf("expected capacity 8, got %d", ds.Capacity())
	}
	for i := int64(0); i < 5; i++ {
		_, v, err := ds.GetByID(i)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if v[0] != float32(i) || v[1] != float32(i)+1 {
			t.Fatalf("row %d corrupted: %v", i, v)
		}
	}
}

func TestReopenRoundTrip(t *testing.T) {
	dir := tempDir(t)

	ds, err := Open(dir, 2, 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := ds.Add([][]float32{{1, 2}, {3, 4}}, []int64{100, 200}); err != nil {
		t.Fatalf("add: %v", err)
	}
	wantCap := ds.Capacity()
	if err := ds.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(dir, 2, 4)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.N() != 2 {
		t.Fatalf("expected N=2 after reopen, got %d", reopened.N())
	}
	if reopened.Capacity() != wantCap {
		t.Fatalf("expected capacity %d after reopen, got %d", wantCap, reopened.Capacity())
	}
	_, v, err := reopened.GetByID(200)
	if err != nil {
		t.Fatalf("get by id after reopen: %v", err)
	}
	if v[0] != 3 || v[1] != 4 {
		t.Fatalf("unexpected vector after reopen: %v", v)
	}
}

func TestNormsSqMatchesDotProduct(t *testing.T) {
	ds, err := Open(tempDir(t), 3, 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ds.Close()

	if _, err := ds.Add([][]float32{{1, 2, 3}, {0, 0, 0}}, []int64{1, 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	norms := ds.NormsSq()
	if norms[0] != 14 {
		t.Fatalf("expected 14, got %v", norms[0])
	}
	if norms[1] != 0 {
		t.Fatalf("expected 0, got %v", norms[1])
	}
}

func TestResetClearsStore(t *testing.T) {
	ds, err := Open(tempDir(t), 2, 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ds.Close()

	if _, err := ds.Add([][]float32{{1, 1}}, []int64{1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := ds.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if ds.N() != 0 {
		t.Fatalf("expected N=0 after reset, got %d", ds.N())
	}
	if _, _, err := ds.GetByID(1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected id 1 to be gone after reset")
	}
}

func TestDimensionMismatchOnReopen(t *testing.T) {
	dir := tempDir(t)
	ds, err := Open(dir, 3, 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ds.Close()

	if _, err := Open(dir, 4, 4); err == nil {
		t.Fatalf("expected error reopening with mismatched dim")
	}
}
