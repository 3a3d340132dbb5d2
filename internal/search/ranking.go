package search

import (
	"sort"
	"strings"

	"github.com/ashishacharya123/PKMS-sub000/internal/store"
)

// normalizeScores min-max scales one type's raw scores onto [0, 1] and
// applies the type weight. Raw scores from independently built indexes are
// not comparable (different term statistics and length distributions), so
// comparison happens in this normalized space. A single-hit batch maps to
// 1.0 before weighting.
func normalizeScores(hits []*store.RankedHit, typeWeight float64) map[string]float64 {
	out := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return out
	}

	minScore, maxScore := hits[0].RawScore, hits[0].RawScore
	for _, h := range hits[1:] {
		if h.RawScore < minScore {
			minScore = h.RawScore
		}
		if h.RawScore > maxScore {
			maxScore = h.RawScore
		}
	}

	spread := maxScore - minScore
	for _, h := range hits {
		norm := 1.0
		if spread > 0 {
			norm = (h.RawScore - minScore) / spread
		}
		out[h.ID] = norm * typeWeight
	}
	return out
}

// sortResults orders the final result list by the caller's sort key.
// Relevance and date default to descending, title and type to ascending.
// Ties always fall through to score descending, recency descending, then
// type and id ascending, regardless of the primary direction, so ordering
// is reproducible and pagination is stable.
func sortResults(results []*Result, key SortKey, dir SortDir) {
	flip := dir == DirDesc
	if dir == "" {
		flip = key == SortRelevance || key == SortDate || key == ""
	}

	// compare returns the primary ordering in ascending terms.
	compare := func(a, b *Result) int {
		switch key {
		case SortDate:
			switch {
			case a.UpdatedAt.Before(b.UpdatedAt):
				return -1
			case a.UpdatedAt.After(b.UpdatedAt):
				return 1
			}
		case SortTitle:
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case SortType:
			return strings.Compare(string(a.Type), string(b.Type))
		default: // relevance
			switch {
			case a.Score < b.Score:
				return -1
			case a.Score > b.Score:
				return 1
			}
		}
		return 0
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if c := compare(a, b); c != 0 {
			if flip {
				return c > 0
			}
			return c < 0
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.ID < b.ID
	})
}
