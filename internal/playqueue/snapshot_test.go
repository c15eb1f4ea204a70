package playqueue

import "testing"

func TestSnapshot_RoundTrip(t *testing.T) {
	q := New()
	q.Replace(tracks(1, 2, 3, 4), 2, false)
	q.SetShuffle(true)

	snap := q.Snapshot()

	restored := New()
	restored.Restore(snap)

	if restored.Current() == nil || restored.Current().ID != 3 {
		t.Errorf("restored Current() = %v, want track 3", restored.Current())
	}
	if restored.CurrentIndex() != q.CurrentIndex() {
		t.Errorf("restored CurrentIndex() = %d, want %d", restored.CurrentIndex(), q.CurrentIndex())
	}
	if restored.ShuffledIndex() != q.ShuffledIndex() {
		t.Errorf("restored ShuffledIndex() = %d, want %d", restored.ShuffledIndex(), q.ShuffledIndex())
	}

	got := restored.Tracks()
	want := q.Tracks()
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Fatalf("restored track[%d].ID = %d, want %d", i, got[i].ID, want[i].ID)
		}
	}

	gotOrder := restored.ShuffleOrder()
	wantOrder := q.ShuffleOrder()
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("restored order[%d] = %d, want %d", i, gotOrder[i], wantOrder[i])
		}
	}
}

func TestSnapshot_RestoreInvalidOrder(t *testing.T) {
	q := New()
	q.Restore(Snapshot{
		Tracks:       tracks(1, 2, 3),
		CurrentIndex: 1,
		Shuffle:      true,
		ShuffleOrder: []int{0, 0, 2}, // duplicate entry, not a permutation
	})

	// A corrupt order falls back to a fresh permutation, never a broken one.
	if !isPermutation(q.ShuffleOrder(), 3) {
		t.Errorf("ShuffleOrder() = %v is not a permutation", q.ShuffleOrder())
	}
	if q.Current() == nil || q.Current().ID != 2 {
		t.Errorf("Current() = %v, want track 2", q.Current())
	}
}

func TestSnapshot_RestoreIndexOutOfRange(t *testing.T) {
	q := New()
	q.Restore(Snapshot{Tracks: tracks(1), CurrentIndex: 7})

	if q.Current() != nil {
		t.Errorf("Current() = %v, want nil", q.Current())
	}
}

func TestIsPermutation(t *testing.T) {
	tests := []struct {
		name  string
		order []int
		n     int
		want  bool
	}{
		{"valid", []int{2, 0, 1}, 3, true},
		{"wrong length", []int{0, 1}, 3, false},
		{"duplicate", []int{0, 0, 1}, 3, false},
		{"out of range", []int{0, 1, 3}, 3, false},
		{"empty", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPermutation(tt.order, tt.n); got != tt.want {
				t.Errorf("isPermutation(%v, %d) = %v, want %v", tt.order, tt.n, got, tt.want)
			}
		})
	}
}
