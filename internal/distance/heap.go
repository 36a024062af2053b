package distance

import "container/heap"

// Candidate is a scored row awaiting placement in a bounded top-K heap.
type Candidate struct {
	RowIndex int
	Distance float32
}

// TopKHeap is a bounded max-heap over Candidate, keyed so that its root is
// always the candidate that should be evicted first: the largest distance,
// or on a distance tie, the largest row index. Keeping the heap at size K
// this way means the surviving candidates, once drained, come out ascending
// by distance with a stable lower-row-index tiebreak — the ordering
// §4.4/§4.6 require.
type TopKHeap struct {
	items []Candidate
	k     int
}

// NewTopKHeap creates a heap bounded to at most k candidates.
func NewTopKHeap(k int) *TopKHeap {
	return &TopKHeap{items: make([]Candidate, 0, k), k: k}
}

func (h *TopKHeap) Len() int { return len(h.items) }

func (h *TopKHeap) Less(i, j int) bool {
	if h.items[i].Distance != h.items[j].Distance {
		return h.items[i].Distance > h.items[j].Distance
	}
	return h.items[i].RowIndex > h.items[j].RowIndex
}

func (h *TopKHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *TopKHeap) Push(x interface{}) { h.items = append(h.items, x.(Candidate)) }

func (h *TopKHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// Offer considers c for inclusion. If the heap has fewer than k entries, c
// is always added. Otherwise c replaces the current worst entry only if c
// is strictly better (lower distance, or equal distance with a lower row
// index).
func (h *TopKHeap) Offer(c Candidate) {
	if h.k <= 0 {
		return
	}
	if h.Len() < h.k {
		heap.Push(h, c)
		return
	}

	worst := h.items[0]
	better := c.Distance < worst.Distance ||
		(c.Distance == worst.Distance && c.RowIndex < worst.RowIndex)
	if better {
		heap.Pop(h)
		heap.Push(h, c)
	}
}

// Sorted drains the heap and returns its contents ascending by distance,
// with ties broken by ascending row index.
func (h *TopKHeap) Sorted() []Candidate {
	n := h.Len()
	out := make([]Candidate, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Candidate)
	}
	return out
}
