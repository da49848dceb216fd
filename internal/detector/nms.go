package detector

import (
	"sort"

	"github.com/dudu/facekit/internal/geometry"
)

// SortByScore returns a copy of cands ordered by descending score.
// Equal scores keep their input order.
func SortByScore(cands []Candidate) []Candidate {
	sorted := make([]Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	return sorted
}

// Suppress performs greedy non-maximum suppression over candidates already
// sorted by descending score and returns the indices kept. A candidate is
// kept when its IoU with every previously kept one is at most threshold.
func Suppress(sorted []Candidate, threshold float32) []int {
	picked := make([]int, 0, len(sorted))
	for i := range sorted {
		keep := true
		for _, k := range picked {
			if geometry.IoU(sorted[i].Box, sorted[k].Box) > threshold {
				keep = false
				break
			}
		}
		if keep {
			picked = append(picked, i)
		}
	}
	return picked
}

// NMS sorts and suppresses, returning the surviving candidates in score order
func NMS(cands []Candidate, threshold float32) []Candidate {
	sorted := SortByScore(cands)
	picked := Suppress(sorted, threshold)
	out := make([]Candidate, len(picked))
	for i, k := range picked {
		out[i] = sorted[k]
	}
	return out
}
