// Package search implements the query side: per-type ranking with
// cross-type score normalization, fuzzy re-ranking, post-filtering, and
// the result cache in front of it all.
package search

import (
	"time"

	"github.com/ashishacharya123/PKMS-sub000/internal/store"
)

// Mode describes which ranking strategy produced a response.
type Mode string

const (
	// ModeExact means pure inverted-index ranking.
	ModeExact Mode = "exact"
	// ModeHybrid means fuzzy re-ranking engaged because exact recall was low.
	ModeHybrid Mode = "hybrid"
	// ModeFuzzy means the caller requested fuzzy matching explicitly.
	ModeFuzzy Mode = "fuzzy"
)

// SortKey selects the final result ordering.
type SortKey string

const (
	SortRelevance SortKey = "relevance"
	SortDate      SortKey = "date"
	SortTitle     SortKey = "title"
	SortType      SortKey = "type"
)

// SortDir is the sort direction. The zero value means the key's natural
// direction (descending for relevance and date, ascending otherwise).
type SortDir string

const (
	DirAsc  SortDir = "asc"
	DirDesc SortDir = "desc"
)

// Query is one search request. It is owned by the caller and never
// persisted beyond the cache key derived from it.
type Query struct {
	Owner string
	Text  string

	// Types restricts the search; empty means all types.
	Types []store.ContentType

	// Post-filters, applied after ranking so they compose freely.
	IncludeTags     []string
	ExcludeTags     []string
	FavoritesOnly   bool
	IncludeArchived bool
	CreatedAfter    time.Time
	CreatedBefore   time.Time
	MimeFamily      string
	Status          string
	MinPriority     int
	MaxPriority     int
	MinSizeBytes    int64
	MaxSizeBytes    int64

	// Fuzzy requests typo-tolerant matching explicitly. FuzzyThreshold is
	// the 0-100 similarity cutoff; zero means the configured default.
	Fuzzy          bool
	FuzzyThreshold int

	SortBy  SortKey
	SortDir SortDir
	Limit   int
	Offset  int
}

// Result is one ranked hit. Results are value copies per response; cached
// payloads are decoded fresh for each caller.
type Result struct {
	ID    string            `json:"id"`
	Type  store.ContentType `json:"type"`
	Title string            `json:"title"`
	// Preview is a short snippet of the body text.
	Preview string   `json:"preview"`
	Tags    []string `json:"tags,omitempty"`

	// RawScore is the index's native score, higher is better.
	RawScore float64 `json:"raw_score"`
	// NormalizedScore is in [0, 1] and comparable across types.
	NormalizedScore float64 `json:"normalized_score"`
	// FuzzyScore is the 0-100 token-set similarity, present when fuzzy
	// re-ranking ran for this result.
	FuzzyScore *float64 `json:"fuzzy_score,omitempty"`
	// Score is what the relevance sort uses: the fuzzy blend when fuzzy
	// ran, the normalized score otherwise.
	Score float64 `json:"score"`

	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats carries per-response diagnostics.
type Stats struct {
	TookMS       int64                     `json:"took_ms"`
	CacheHit     bool                      `json:"cache_hit"`
	Candidates   int                       `json:"candidates"`
	CountsByType map[store.ContentType]int `json:"counts_by_type,omitempty"`
}

// Response is the full answer to one Query.
type Response struct {
	Results []*Result `json:"results"`
	// Total counts matches after filtering, before pagination.
	Total int  `json:"total"`
	Mode  Mode `json:"search_mode"`
	// ModulesSearched lists the types that answered; a failed or timed-out
	// type is excluded.
	ModulesSearched []store.ContentType `json:"modules_searched"`
	// Reason is set when the engine returned early, such as a too-short
	// query.
	Reason string `json:"reason,omitempty"`
	Stats  Stats  `json:"stats"`
}

// Suggestion is one typeahead completion.
type Suggestion struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}
