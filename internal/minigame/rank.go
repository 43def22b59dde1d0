package minigame

import (
	"cmp"
	"slices"
)

// Entry is a raw score plus its badness (lower is better). Entries are ranked
// in the order given when badness ties.
type Entry struct {
	Slot    int
	Score   int64
	Badness int64
}

// Rank turns entries into results ordered best first with ranks 1..N.
func Rank(entries []Entry) []Result {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		return cmp.Compare(a.Badness, b.Badness)
	})

	results := make([]Result, len(sorted))
	for i, e := range sorted {
		results[i] = Result{Slot: e.Slot, Score: e.Score, Rank: i + 1}
	}
	return results
}
