package search

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/ashishacharya123/PKMS-sub000/internal/store"
)

// Per-field weights for fuzzy similarity. Title and tags dominate because
// short, curated fields carry more signal per character than body text.
const (
	fuzzyWeightTitle    = 0.4
	fuzzyWeightTags     = 0.3
	fuzzyWeightBody     = 0.2
	fuzzyWeightFilename = 0.1
)

// tokenSetRatio computes a 0-100 similarity between a query and a field.
// Each query token is matched against its closest field token, so the
// measure is insensitive to word order and to extra field words:
// "report budget" scores 100 against "budget report", and a near-miss
// like "budjet" still scores high against "Quarterly Budget Report".
func tokenSetRatio(query, field string) float64 {
	queryTokens := store.Tokenize(query)
	fieldTokens := store.Tokenize(field)
	if len(queryTokens) == 0 || len(fieldTokens) == 0 {
		return 0
	}

	fieldSet := toSet(fieldTokens)
	var sum float64
	for _, qt := range queryTokens {
		if _, ok := fieldSet[qt]; ok {
			sum += 100
			continue
		}
		var best float64
		for ft := range fieldSet {
			if s := similarity(qt, ft); s > best {
				best = s
			}
		}
		sum += best
	}
	return sum / float64(len(queryTokens))
}

// similarity is a 0-100 normalized Levenshtein ratio.
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	longest := len([]rune(a))
	if lb := len([]rune(b)); lb > longest {
		longest = lb
	}
	dist := levenshtein.ComputeDistance(a, b)
	if dist >= longest {
		return 0
	}
	return (1 - float64(dist)/float64(longest)) * 100
}

// fieldSimilarity scores a query against one document using weighted
// per-field token-set similarity. Weights of absent fields are
// redistributed so a tagless note is not penalized for having no tags.
func fieldSimilarity(queryText string, r *Result, filename string) float64 {
	type part struct {
		text   string
		weight float64
	}
	parts := []part{
		{r.Title, fuzzyWeightTitle},
		{strings.Join(r.Tags, " "), fuzzyWeightTags},
		{r.Preview, fuzzyWeightBody},
		{filename, fuzzyWeightFilename},
	}

	var sum, weightSum float64
	for _, p := range parts {
		if strings.TrimSpace(p.text) == "" {
			continue
		}
		sum += tokenSetRatio(queryText, p.text) * p.weight
		weightSum += p.weight
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

func toSet(tokens []string) map[string]struct{} {
	s := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}
