package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ashishacharya123/PKMS-sub000/internal/store"
)

func filterDoc() *store.Document {
	return &store.Document{
		Type:       store.TypeDocument,
		ID:         "d1",
		Owner:      "alice",
		Title:      "Quarterly Budget Report",
		TagsText:   "finance 2025",
		MimeFamily: "pdf",
		Status:     "active",
		Priority:   3,
		SizeBytes:  4096,
		CreatedAt:  time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestMatchesFilters(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		tweak func(*store.Document)
		want  bool
	}{
		{"no filters", Query{}, nil, true},
		{"include tag present", Query{IncludeTags: []string{"finance"}}, nil, true},
		{"include tag case-insensitive", Query{IncludeTags: []string{"Finance"}}, nil, true},
		{"include tag missing", Query{IncludeTags: []string{"finance", "taxes"}}, nil, false},
		{"exclude tag present", Query{ExcludeTags: []string{"2025"}}, nil, false},
		{"exclude tag absent", Query{ExcludeTags: []string{"taxes"}}, nil, true},
		{"favorites only rejects", Query{FavoritesOnly: true}, nil, false},
		{"favorites only accepts", Query{FavoritesOnly: true},
			func(d *store.Document) { d.IsFavorite = true }, true},
		{"archived hidden by default", Query{},
			func(d *store.Document) { d.IsArchived = true }, false},
		{"archived shown on request", Query{IncludeArchived: true},
			func(d *store.Document) { d.IsArchived = true }, true},
		{"date range inside", Query{
			CreatedAfter:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			CreatedBefore: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		}, nil, true},
		{"created too early", Query{
			CreatedAfter: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		}, nil, false},
		{"mime family matches", Query{MimeFamily: "PDF"}, nil, true},
		{"mime family differs", Query{MimeFamily: "image"}, nil, false},
		{"status matches", Query{Status: "active"}, nil, true},
		{"status differs", Query{Status: "done"}, nil, false},
		{"priority in range", Query{MinPriority: 2, MaxPriority: 4}, nil, true},
		{"priority too low", Query{MinPriority: 4}, nil, false},
		{"size in range", Query{MinSizeBytes: 1024, MaxSizeBytes: 8192}, nil, true},
		{"size too large", Query{MaxSizeBytes: 1024}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := filterDoc()
			if tt.tweak != nil {
				tt.tweak(doc)
			}
			assert.Equal(t, tt.want, matchesFilters(doc, &tt.query))
		})
	}
}

func TestMatchesFilters_ArchiveTypesAlwaysVisible(t *testing.T) {
	doc := filterDoc()
	doc.Type = store.TypeArchiveItem
	doc.IsArchived = true
	assert.True(t, matchesFilters(doc, &Query{}),
		"archive items are inherently archived and stay searchable")
}
