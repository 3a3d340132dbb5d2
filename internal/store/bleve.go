package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"

	pkmserr "github.com/ashishacharya123/PKMS-sub000/internal/errors"
)

const (
	// TextStopFilterName is the registered name of the stop word filter.
	TextStopFilterName = "pkms_stop"

	// Relative field boosts applied to the ranking disjunction.
	boostTitle = 3.0
	boostTags  = 2.0
	boostBody  = 1.0
	boostExtra = 1.0
)

// defaultStopWords are high-frequency English words excluded from the index.
var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for",
	"if", "in", "into", "is", "it", "no", "not", "of", "on", "or",
	"such", "that", "the", "their", "then", "there", "these", "they",
	"this", "to", "was", "will", "with",
}

func init() {
	registry.RegisterTokenFilter(TextStopFilterName, textStopFilterConstructor)
}

// BleveTypeIndex is one content type's inverted index backed by Bleve v2.
type BleveTypeIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	typ    ContentType
	path   string
	closed bool
}

// bleveEntry is the shape actually indexed. Field names must match the
// document mapping registered in createIndexMapping.
type bleveEntry struct {
	Owner     string  `json:"owner"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	Tags      string  `json:"tags"`
	Extra     string  `json:"extra"`
	UpdatedAt float64 `json:"updated_at"`
}

// NewBleveTypeIndex opens (or creates) the index for one content type.
// An empty path creates an in-memory index. A corrupted on-disk index is
// cleared and recreated; affected entries must be resynced by their owners'
// CRUD modules.
func NewBleveTypeIndex(path string, typ ContentType) (*BleveTypeIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, pkmserr.InternalError("create index mapping", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, pkmserr.IndexUnavailable(string(typ), mkErr)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("index_corrupted",
				slog.String("type", string(typ)),
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, pkmserr.IndexUnavailable(string(typ),
					fmt.Errorf("corrupted index cannot be cleared: %w", removeErr))
			}
			slog.Info("index_cleared",
				slog.String("type", string(typ)),
				slog.String("path", path))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("index_open_failed",
				slog.String("type", string(typ)),
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, pkmserr.IndexUnavailable(string(typ),
					fmt.Errorf("corrupted index cannot be cleared: %w", removeErr))
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, pkmserr.IndexUnavailable(string(typ), err)
	}

	return &BleveTypeIndex{index: idx, typ: typ, path: path}, nil
}

// createIndexMapping builds the field mappings shared by every type index.
// The owner field is a raw keyword excluded from the catch-all so that
// ownership never influences relevance. Title is stored for suggestions.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(TextAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			TextStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("add custom analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = TextAnalyzerName

	ownerField := bleve.NewTextFieldMapping()
	ownerField.Analyzer = keyword.Name
	ownerField.IncludeInAll = false
	ownerField.Store = false

	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = TextAnalyzerName
	titleField.Store = true

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = TextAnalyzerName
	textField.Store = false

	updatedField := bleve.NewNumericFieldMapping()
	updatedField.IncludeInAll = false
	updatedField.Store = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("owner", ownerField)
	docMapping.AddFieldMappingsAt("title", titleField)
	docMapping.AddFieldMappingsAt("body", textField)
	docMapping.AddFieldMappingsAt("tags", textField)
	docMapping.AddFieldMappingsAt("extra", textField)
	docMapping.AddFieldMappingsAt("updated_at", updatedField)
	indexMapping.DefaultMapping = docMapping

	return indexMapping, nil
}

// validateIndexIntegrity checks an on-disk Bleve index before opening.
// Returns nil when the index is absent (it will be created) or healthy.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// isCorruptionError reports whether err indicates Bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// Index fully replaces the entry for entry.ID.
func (b *BleveTypeIndex) Index(ctx context.Context, entry *IndexEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return pkmserr.IndexUnavailable(string(b.typ), fmt.Errorf("index is closed"))
	}

	doc := bleveEntry{
		Owner:     entry.Owner,
		Title:     entry.Title,
		Body:      entry.Body,
		Tags:      entry.TagsText,
		Extra:     entry.ExtraText,
		UpdatedAt: float64(entry.UpdatedAt.UnixMilli()),
	}
	if err := b.index.Index(entry.ID, doc); err != nil {
		return pkmserr.SyncFailure(fmt.Sprintf("index %s/%s", b.typ, entry.ID), err)
	}
	return nil
}

// Delete removes the entry for id. Deleting a missing id is a no-op.
func (b *BleveTypeIndex) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return pkmserr.IndexUnavailable(string(b.typ), fmt.Errorf("index is closed"))
	}
	if err := b.index.Delete(id); err != nil {
		return pkmserr.SyncFailure(fmt.Sprintf("delete %s/%s", b.typ, id), err)
	}
	return nil
}

// Rank returns up to limit owner-scoped candidates, best first. The match
// disjunction weights title over tags over body and extra text; ties are
// broken by recency then id so ordering is stable across runs.
func (b *BleveTypeIndex) Rank(ctx context.Context, owner, queryStr string, limit int) ([]*RankedHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, pkmserr.IndexUnavailable(string(b.typ), fmt.Errorf("index is closed"))
	}
	if strings.TrimSpace(queryStr) == "" {
		return []*RankedHit{}, nil
	}

	ownerQ := bleve.NewTermQuery(owner)
	ownerQ.SetField("owner")

	fields := []struct {
		name  string
		boost float64
	}{
		{"title", boostTitle},
		{"tags", boostTags},
		{"body", boostBody},
		{"extra", boostExtra},
	}
	disjuncts := make([]query.Query, 0, len(fields))
	for _, f := range fields {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(f.name)
		mq.SetBoost(f.boost)
		disjuncts = append(disjuncts, mq)
	}

	conj := bleve.NewConjunctionQuery(ownerQ, bleve.NewDisjunctionQuery(disjuncts...))

	req := bleve.NewSearchRequestOptions(conj, limit, 0, false)
	req.SortBy([]string{"-_score", "-updated_at", "_id"})

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pkmserr.IndexUnavailable(string(b.typ), err)
	}

	hits := make([]*RankedHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, &RankedHit{ID: hit.ID, RawScore: hit.Score})
	}
	return hits, nil
}

// SuggestTitles returns distinct title completions for a prefix. Every token
// but the last must match fully; the last token matches as a term prefix.
func (b *BleveTypeIndex) SuggestTitles(ctx context.Context, owner, prefix string, limit int) ([]*Suggestion, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, pkmserr.IndexUnavailable(string(b.typ), fmt.Errorf("index is closed"))
	}

	tokens := Tokenize(prefix)
	if len(tokens) == 0 {
		return []*Suggestion{}, nil
	}

	ownerQ := bleve.NewTermQuery(owner)
	ownerQ.SetField("owner")

	parts := []query.Query{ownerQ}
	for _, tok := range tokens[:len(tokens)-1] {
		mq := bleve.NewMatchQuery(tok)
		mq.SetField("title")
		parts = append(parts, mq)
	}
	pq := bleve.NewPrefixQuery(tokens[len(tokens)-1])
	pq.SetField("title")
	parts = append(parts, pq)

	// Overfetch so deduplication by title still fills the limit.
	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(parts...), limit*3, 0, false)
	req.SortBy([]string{"-_score", "-updated_at", "_id"})
	req.Fields = []string{"title"}

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pkmserr.IndexUnavailable(string(b.typ), err)
	}

	seen := make(map[string]struct{}, len(result.Hits))
	out := make([]*Suggestion, 0, limit)
	for _, hit := range result.Hits {
		title, _ := hit.Fields["title"].(string)
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, &Suggestion{Text: title, Score: hit.Score})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// DocCount returns the number of indexed entries.
func (b *BleveTypeIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, pkmserr.IndexUnavailable(string(b.typ), fmt.Errorf("index is closed"))
	}
	return b.index.DocCount()
}

// Close closes the index. Safe to call more than once.
func (b *BleveTypeIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

var _ TypeIndex = (*BleveTypeIndex)(nil)

func textStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	stop := make(map[string]struct{}, len(defaultStopWords))
	for _, w := range defaultStopWords {
		stop[w] = struct{}{}
	}
	return &textStopFilter{stopWords: stop}, nil
}

type textStopFilter struct {
	stopWords map[string]struct{}
}

func (f *textStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if _, isStop := f.stopWords[string(token.Term)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
