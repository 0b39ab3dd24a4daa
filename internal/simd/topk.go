package simd

import "sort"

// Scored pairs a row id with its score
type Scored struct {
	ID    int
	Score float64
}

// less orders by descending score, then ascending id
func less(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

// TopK returns the k highest scores ordered by descending score with ties
// broken by ascending id. The id exclude is skipped; pass -1 to keep all.
func TopK(scores []float64, k, exclude int) []Scored {
	if k <= 0 {
		return nil
	}

	n := len(scores)
	if exclude >= 0 && exclude < n {
		n--
	}
	if k >= n {
		all := make([]Scored, 0, n)
		for id, s := range scores {
			if id != exclude {
				all = append(all, Scored{ID: id, Score: s})
			}
		}
		sortScored(all)
		return all
	}

	// Min-heap of size k whose root is the weakest kept entry
	heap := make([]Scored, 0, k)
	for id, s := range scores {
		if id == exclude {
			continue
		}
		c := Scored{ID: id, Score: s}
		if len(heap) < k {
			heap = append(heap, c)
			heapifyUp(heap, len(heap)-1)
		} else if less(c, heap[0]) {
			heap[0] = c
			heapifyDown(heap, 0)
		}
	}

	sortScored(heap)
	return heap
}

// sortScored sorts in place, using insertion sort for small slices
func sortScored(s []Scored) {
	if len(s) <= 16 {
		for i := 1; i < len(s); i++ {
			key := s[i]
			j := i - 1
			for j >= 0 && less(key, s[j]) {
				s[j+1] = s[j]
				j--
			}
			s[j+1] = key
		}
		return
	}
	sort.Slice(s, func(i, j int) bool { return less(s[i], s[j]) })
}

func heapifyUp(heap []Scored, i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !less(heap[parent], heap[i]) {
			break
		}
		heap[parent], heap[i] = heap[i], heap[parent]
		i = parent
	}
}

func heapifyDown(heap []Scored, i int) {
	n := len(heap)
	for {
		weakest := i
		left := 2*i + 1
		right := 2*i + 2

		if left < n && less(heap[weakest], heap[left]) {
			weakest = left
		}
		if right < n && less(heap[weakest], heap[right]) {
			weakest = right
		}

		if weakest == i {
			break
		}

		heap[i], heap[weakest] = heap[weakest], heap[i]
		i = weakest
	}
}
