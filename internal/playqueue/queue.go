package playqueue

import (
	"math/rand/v2"
	"time"
)

// Queue holds the ordered track list and its shuffled projection.
//
// There is one logical position and two physical orderings: the linear
// slice is the source of truth, and perm (when shuffle is on) is a
// permutation of linear indices. The current position is always a linear
// index; the shuffled position is derived by lookup, so the two orderings
// cannot drift apart.
type Queue struct {
	linear []Track
	perm   []int // permutation of linear indices; nil when shuffle is off
	cur    int   // linear index of the current track, -1 if none
	rng    *rand.Rand
}

// New creates a new empty queue.
func New() *Queue {
	return &Queue{
		cur: -1,
		rng: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
}

// Current returns the current track, or nil if none.
func (q *Queue) Current() *Track {
	if q.cur < 0 || q.cur >= len(q.linear) {
		return nil
	}
	t := q.linear[q.cur]
	return &t
}

// CurrentIndex returns the linear index of the current track (-1 if none).
func (q *Queue) CurrentIndex() int {
	return q.cur
}

// ShuffledIndex returns the current track's position in the shuffled
// projection, or -1 if shuffle is off or nothing is current.
func (q *Queue) ShuffledIndex() int {
	if q.perm == nil || q.cur < 0 {
		return -1
	}
	return q.permPos(q.cur)
}

// Shuffle returns whether the shuffled projection is active.
func (q *Queue) Shuffle() bool {
	return q.perm != nil
}

// Len returns the number of tracks in the queue.
func (q *Queue) Len() int {
	return len(q.linear)
}

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return len(q.linear) == 0
}

// Tracks returns a copy of the linear ordering.
func (q *Queue) Tracks() []Track {
	out := make([]Track, len(q.linear))
	copy(out, q.linear)
	return out
}

// ShuffleOrder returns a copy of the permutation, or nil if shuffle is off.
func (q *Queue) ShuffleOrder() []int {
	if q.perm == nil {
		return nil
	}
	out := make([]int, len(q.perm))
	copy(out, q.perm)
	return out
}

// Replace replaces the whole queue. With startShuffled a fresh permutation
// is generated and playback starts at a random position in it; otherwise
// playback starts at startIndex in the supplied order. An empty track list
// is a no-op and returns nil.
func (q *Queue) Replace(tracks []Track, startIndex int, startShuffled bool) *Track {
	if len(tracks) == 0 {
		return nil
	}
	q.linear = make([]Track, len(tracks))
	copy(q.linear, tracks)
	q.perm = nil

	if startShuffled {
		q.perm = q.rng.Perm(len(q.linear))
		q.cur = q.perm[q.rng.IntN(len(q.perm))]
	} else {
		if startIndex < 0 || startIndex >= len(q.linear) {
			startIndex = 0
		}
		q.cur = startIndex
	}
	return q.Current()
}

// SetShuffle toggles the shuffled projection. Enabling generates a fresh
// permutation; disabling drops it. The current track never changes: its
// position is a linear index and only the projection is rebuilt.
func (q *Queue) SetShuffle(enabled bool) {
	if !enabled {
		q.perm = nil
		return
	}
	if len(q.linear) == 0 {
		q.perm = []int{}
		return
	}
	q.perm = q.rng.Perm(len(q.linear))
}

// Next advances to the next track under the given repeat mode and returns
// it. Returns nil when there is no next track (RepeatOff at the end, or
// nothing current).
func (q *Queue) Next(mode RepeatMode) *Track {
	if q.cur < 0 || len(q.linear) == 0 {
		return nil
	}
	if mode == RepeatOne {
		return q.Current()
	}

	if q.perm != nil {
		pos := q.permPos(q.cur) + 1
		if pos >= len(q.perm) {
			if mode != RepeatAll {
				return nil
			}
			pos = 0
		}
		q.cur = q.perm[pos]
		return q.Current()
	}

	next := q.cur + 1
	if next >= len(q.linear) {
		if mode != RepeatAll {
			return nil
		}
		next = 0
	}
	q.cur = next
	return q.Current()
}

// HasNext returns true if Next would yield a track.
func (q *Queue) HasNext(mode RepeatMode) bool {
	if q.cur < 0 || len(q.linear) == 0 {
		return false
	}
	if mode == RepeatOne || mode == RepeatAll {
		return true
	}
	if q.perm != nil {
		return q.permPos(q.cur) < len(q.perm)-1
	}
	return q.cur < len(q.linear)-1
}

// Previous moves back one position in the active ordering and returns the
// new current track. Returns nil at the start of the queue (RepeatAll
// wraps to the end instead).
func (q *Queue) Previous(mode RepeatMode) *Track {
	if q.cur < 0 || len(q.linear) == 0 {
		return nil
	}
	if mode == RepeatOne {
		return q.Current()
	}

	if q.perm != nil {
		pos := q.permPos(q.cur) - 1
		if pos < 0 {
			if mode != RepeatAll {
				return nil
			}
			pos = len(q.perm) - 1
		}
		q.cur = q.perm[pos]
		return q.Current()
	}

	prev := q.cur - 1
	if prev < 0 {
		if mode != RepeatAll {
			return nil
		}
		prev = len(q.linear) - 1
	}
	q.cur = prev
	return q.Current()
}

// JumpTo sets the current position to the given linear index.
// Returns the track at that position, or nil if the index is invalid.
func (q *Queue) JumpTo(index int) *Track {
	if index < 0 || index >= len(q.linear) {
		return nil
	}
	q.cur = index
	return q.Current()
}

// Add appends tracks to the queue. Under shuffle each new track is placed
// at a random not-yet-played position in the projection so it remains
// reachable.
func (q *Queue) Add(tracks ...Track) {
	for _, t := range tracks {
		idx := len(q.linear)
		q.linear = append(q.linear, t)
		if q.perm == nil {
			continue
		}
		lo := 0
		if q.cur >= 0 {
			lo = q.permPos(q.cur) + 1
		}
		at := lo + q.rng.IntN(len(q.perm)-lo+1)
		q.perm = insertInt(q.perm, at, idx)
	}
}

// InsertNext inserts a track immediately after the current one in both
// orderings. With nothing current it behaves like Add.
func (q *Queue) InsertNext(t Track) {
	if q.cur < 0 {
		q.Add(t)
		return
	}

	at := q.cur + 1
	q.linear = append(q.linear[:at], append([]Track{t}, q.linear[at:]...)...)

	if q.perm != nil {
		for i, v := range q.perm {
			if v >= at {
				q.perm[i] = v + 1
			}
		}
		q.perm = insertInt(q.perm, q.permPos(q.cur)+1, at)
	}
}

// RemoveAt removes the track at the given linear index. When the current
// track is removed the position moves to the entry that followed it in the
// active ordering (-1 if it was the last); the caller decides whether to
// load the new current track. Returns whether the current track was
// removed and whether the removal happened at all.
func (q *Queue) RemoveAt(index int) (removedCurrent, ok bool) {
	if index < 0 || index >= len(q.linear) {
		return false, false
	}
	removedCurrent = index == q.cur

	var permPos int
	if q.perm != nil {
		permPos = q.permPos(index)
		q.perm = append(q.perm[:permPos], q.perm[permPos+1:]...)
		for i, v := range q.perm {
			if v > index {
				q.perm[i] = v - 1
			}
		}
	}

	q.linear = append(q.linear[:index], q.linear[index+1:]...)

	switch {
	case removedCurrent && q.perm != nil:
		if permPos < len(q.perm) {
			q.cur = q.perm[permPos]
		} else {
			q.cur = -1
		}
	case removedCurrent:
		if index < len(q.linear) {
			q.cur = index
		} else {
			q.cur = -1
		}
	case q.cur > index:
		q.cur--
	}
	return removedCurrent, true
}

// IndexOf returns the first linear index holding the given track id, or -1.
func (q *Queue) IndexOf(id int64) int {
	for i, t := range q.linear {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Clear removes all tracks and resets the position.
func (q *Queue) Clear() {
	q.linear = nil
	q.perm = nil
	q.cur = -1
}

func (q *Queue) permPos(linearIndex int) int {
	for i, v := range q.perm {
		if v == linearIndex {
			return i
		}
	}
	return -1
}

func insertInt(s []int, at, v int) []int {
	s = append(s, 0)
	copy(s[at+1:], s[at:])
	s[at] = v
	return s
}
