// Package topk keeps the K best (score, index) pairs under a configurable ordering
package topk

import (
	"math"

	"github.com/cuemby/keyforge/pkg/types"
)

// Tracker is a bounded list sorted best to worst.
//
// Empty slots behave as if they held the ordering's sentinel (-Inf when
// larger is better, +Inf otherwise), so a candidate equal to the sentinel
// never qualifies. Ties are resolved by strict comparison: a score equal to
// one already kept is rejected, which keeps the first one seen.
//
// A Tracker is not safe for concurrent use
type Tracker struct {
	entries      []types.Candidate
	capacity     int
	preferLarger bool
}

// New creates a tracker holding at most capacity entries
func New(capacity int, preferLarger bool) *Tracker {
	if capacity < 0 {
		capacity = 0
	}
	return &Tracker{
		entries:      make([]types.Candidate, 0, capacity),
		capacity:     capacity,
		preferLarger: preferLarger,
	}
}

// Sentinel returns the worst possible score for the ordering
func (t *Tracker) Sentinel() float32 {
	if t.preferLarger {
		return float32(math.Inf(-1))
	}
	return float32(math.Inf(1))
}

// Better reports whether a is strictly better than b
func (t *Tracker) Better(a, b float32) bool {
	if t.preferLarger {
		return a > b
	}
	return a < b
}

// FindInsertionPoint returns where score would be inserted, or false when
// the candidate does not qualify
func (t *Tracker) FindInsertionPoint(score float32) (int, bool) {
	if t.capacity == 0 || !t.Better(score, t.Sentinel()) {
		// NaN and sentinel-equal scores never beat an empty slot
		return 0, false
	}
	if t.Full() && !t.Better(score, t.entries[len(t.entries)-1].Score) {
		return 0, false
	}
	for i, e := range t.entries {
		if t.Better(score, e.Score) {
			return i, true
		}
		if e.Score == score {
			return 0, false
		}
	}
	// Not full: the first empty slot holds the sentinel, which is worse
	return len(t.entries), true
}

// InsertAt places the pair at pos and drops the worst entry when over capacity
func (t *Tracker) InsertAt(pos int, score float32, index int32) {
	if pos < 0 || pos > len(t.entries) || pos >= t.capacity {
		return
	}
	if len(t.entries) < t.capacity {
		t.entries = append(t.entries, types.Candidate{})
	}
	copy(t.entries[pos+1:], t.entries[pos:len(t.entries)-1])
	t.entries[pos] = types.Candidate{Index: index, Score: score}
}

// Insert adds the pair if it qualifies and reports whether it was kept
func (t *Tracker) Insert(score float32, index int32) bool {
	pos, ok := t.FindInsertionPoint(score)
	if !ok {
		return false
	}
	t.InsertAt(pos, score, index)
	return true
}

// Merge folds every entry of other into t. Entries that do not qualify are dropped
func (t *Tracker) Merge(other *Tracker) {
	if other == nil {
		return
	}
	for _, e := range other.entries {
		// other is sorted best-first: once one entry misses a full list, the rest will too
		if t.Full() && !t.Better(e.Score, t.Worst()) {
			return
		}
		t.Insert(e.Score, e.Index)
	}
}

// Entries returns a copy of the kept pairs, best first
func (t *Tracker) Entries() []types.Candidate {
	out := make([]types.Candidate, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of kept entries
func (t *Tracker) Len() int {
	return len(t.entries)
}

// Cap returns K
func (t *Tracker) Cap() int {
	return t.capacity
}

// Full reports whether K entries are kept
func (t *Tracker) Full() bool {
	return len(t.entries) >= t.capacity
}

// PreferLarger reports the active ordering
func (t *Tracker) PreferLarger() bool {
	return t.preferLarger
}

// Worst returns the score a candidate has to beat to enter a full list.
// For a list that is not full this is the sentinel
func (t *Tracker) Worst() float32 {
	if !t.Full() || len(t.entries) == 0 {
		return t.Sentinel()
	}
	return t.entries[len(t.entries)-1].Score
}
