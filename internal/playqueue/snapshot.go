package playqueue

// Snapshot captures both orderings and the current position for
// persistence. CurrentIndex is the linear index; the shuffled position is
// derivable from ShuffleOrder.
type Snapshot struct {
	Tracks       []Track
	CurrentIndex int
	Shuffle      bool
	ShuffleOrder []int // permutation of linear indices, nil when shuffle is off
}

// Snapshot returns a copy of the queue state.
func (q *Queue) Snapshot() Snapshot {
	return Snapshot{
		Tracks:       q.Tracks(),
		CurrentIndex: q.cur,
		Shuffle:      q.perm != nil,
		ShuffleOrder: q.ShuffleOrder(),
	}
}

// Restore replaces the queue state from a snapshot. A snapshot whose
// shuffle order is not a valid permutation falls back to linear order.
func (q *Queue) Restore(s Snapshot) {
	q.linear = make([]Track, len(s.Tracks))
	copy(q.linear, s.Tracks)

	q.perm = nil
	if s.Shuffle && isPermutation(s.ShuffleOrder, len(q.linear)) {
		q.perm = make([]int, len(s.ShuffleOrder))
		copy(q.perm, s.ShuffleOrder)
	} else if s.Shuffle {
		q.SetShuffle(true)
	}

	if s.CurrentIndex >= 0 && s.CurrentIndex < len(q.linear) {
		q.cur = s.CurrentIndex
	} else {
		q.cur = -1
	}
}

func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, v := range order {
		if v < 0 || v >= n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
