package ranking

import "sort"

// sortRanked applies the pagination-stable total order: score descending,
// then created_at descending (newer wins ties), then clip id ascending.
func sortRanked(entries []Ranked) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		ci, cj := entries[i].Clip.CreatedAt, entries[j].Clip.CreatedAt
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return entries[i].Clip.ID < entries[j].Clip.ID
	})
}
