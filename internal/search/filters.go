package search

import (
	"strings"

	"github.com/ashishacharya123/PKMS-sub000/internal/store"
)

// matchesFilters applies the post-filters to one enriched candidate.
// Filtering happens after ranking so filter combinations compose freely
// without per-combination index schemas.
func matchesFilters(doc *store.Document, q *Query) bool {
	if q.FavoritesOnly && !doc.IsFavorite {
		return false
	}
	if doc.IsArchived && !q.IncludeArchived && doc.Type != store.TypeArchiveItem && doc.Type != store.TypeArchiveFolder {
		return false
	}
	if !q.CreatedAfter.IsZero() && doc.CreatedAt.Before(q.CreatedAfter) {
		return false
	}
	if !q.CreatedBefore.IsZero() && doc.CreatedAt.After(q.CreatedBefore) {
		return false
	}
	if q.MimeFamily != "" && !strings.EqualFold(doc.MimeFamily, q.MimeFamily) {
		return false
	}
	if q.Status != "" && !strings.EqualFold(doc.Status, q.Status) {
		return false
	}
	if q.MinPriority > 0 && doc.Priority < q.MinPriority {
		return false
	}
	if q.MaxPriority > 0 && doc.Priority > q.MaxPriority {
		return false
	}
	if q.MinSizeBytes > 0 && doc.SizeBytes < q.MinSizeBytes {
		return false
	}
	if q.MaxSizeBytes > 0 && doc.SizeBytes > q.MaxSizeBytes {
		return false
	}

	if len(q.IncludeTags) > 0 || len(q.ExcludeTags) > 0 {
		have := make(map[string]struct{})
		for _, t := range doc.Tags() {
			have[t] = struct{}{}
		}
		for _, t := range canonicalTags(q.IncludeTags) {
			if _, ok := have[t]; !ok {
				return false
			}
		}
		for _, t := range canonicalTags(q.ExcludeTags) {
			if _, ok := have[t]; ok {
				return false
			}
		}
	}
	return true
}

// canonicalTags normalizes caller-supplied tag names the same way the
// synchronizer canonicalizes stored tags.
func canonicalTags(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.Join(strings.Fields(strings.ToLower(n)), "-")
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}
