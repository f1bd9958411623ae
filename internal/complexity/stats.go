package complexity

import (
	"cmp"
	"slices"
)

// Stats buckets a report's scores.
type Stats struct {
	Total   int     `json:"total"`
	Low     int     `json:"low"`    // 1-3
	Medium  int     `json:"medium"` // 4-7
	High    int     `json:"high"`   // 8-10
	Average float64 `json:"average"`
}

// ComputeStats summarizes entries.
func ComputeStats(entries []Entry) Stats {
	var s Stats
	sum := 0
	for _, e := range entries {
		s.Total++
		sum += e.ComplexityScore
		switch {
		case e.ComplexityScore <= 3:
			s.Low++
		case e.ComplexityScore <= 7:
			s.Medium++
		default:
			s.High++
		}
	}
	if s.Total > 0 {
		s.Average = float64(sum) / float64(s.Total)
	}
	return s
}

// Recommendations returns the entries scoring at or above threshold, highest
// score first, then by task id.
func Recommendations(entries []Entry, threshold int) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.ComplexityScore >= threshold {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if c := cmp.Compare(b.ComplexityScore, a.ComplexityScore); c != 0 {
			return c
		}
		return cmp.Compare(a.TaskID, b.TaskID)
	})
	return out
}
