// Package remainder tracks the still-missing byte ranges of a file transfer
// as an ordered set of disjoint half-open intervals [begin, end).
package remainder

import "sort"

type interval struct {
	begin, end uint64
}

// Tracker records which sub-ranges of [begin, end) have not yet been
// received, shrinking as Reduce is called for each chunk that arrives.
type Tracker struct {
	intervals []interval
}

// New creates a Tracker whose entire [begin, end) range is outstanding.
func New(begin, end uint64) *Tracker {
	if end <= begin {
		return &Tracker{}
	}
	return &Tracker{intervals: []interval{{begin, end}}}
}

// Reduce marks [from, to) as received, removing it from the outstanding set.
func (t *Tracker) Reduce(from, to uint64) {
	if to <= from {
		return
	}
	var kept []interval
	var toAdd []interval
	for _, iv := range t.intervals {
		switch {
		case to <= iv.begin || from >= iv.end:
			// No overlap.
			kept = append(kept, iv)
		case from <= iv.begin && to >= iv.end:
			// Fully covered: drop iv entirely.
		case from > iv.begin && to < iv.end:
			// Middle split: two remaining pieces.
			toAdd = append(toAdd, interval{iv.begin, from}, interval{to, iv.end})
		case from <= iv.begin && to < iv.end:
			// Cut from the start.
			toAdd = append(toAdd, interval{to, iv.end})
		case from > iv.begin && to >= iv.end:
			// Cut from the end.
			toAdd = append(toAdd, interval{iv.begin, from})
		}
	}
	kept = append(kept, toAdd...)
	sort.Slice(kept, func(i, j int) bool { return kept[i].begin < kept[j].begin })
	t.intervals = kept
}

// Remaining returns the total number of bytes still outstanding.
func (t *Tracker) Remaining() uint64 {
	var sum uint64
	for _, iv := range t.intervals {
		sum += iv.end - iv.begin
	}
	return sum
}

// Done reports whether no bytes remain outstanding.
func (t *Tracker) Done() bool {
	return len(t.intervals) == 0
}

// Ranges returns a copy of the outstanding ranges as [begin,end) pairs,
// sorted ascending.
func (t *Tracker) Ranges() [][2]uint64 {
	out := make([][2]uint64, len(t.intervals))
	for i, iv := range t.intervals {
		out[i] = [2]uint64{iv.begin, iv.end}
	}
	return out
}
