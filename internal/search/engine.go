package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ashishacharya123/PKMS-sub000/internal/cache"
	"github.com/ashishacharya123/PKMS-sub000/internal/config"
	pkmserr "github.com/ashishacharya123/PKMS-sub000/internal/errors"
	"github.com/ashishacharya123/PKMS-sub000/internal/store"
)

// minQueryRunes is the shortest query that runs a full search. Shorter
// queries return an empty response with a reason, never an error.
const minQueryRunes = 2

const (
	cacheNamespaceSearch  = "pkms:search"
	cacheNamespaceSuggest = "pkms:suggest"
)

// Indexes is the read surface the engine needs from the index set.
type Indexes interface {
	Index(typ store.ContentType) (store.TypeIndex, error)
	Documents() *store.SQLiteStore
}

// MetricsRecorder observes completed queries.
type MetricsRecorder interface {
	RecordQuery(queryText string, mode Mode, took time.Duration, resultCount int, cacheHit bool)
}

// Engine is the hybrid search orchestrator: cache check, per-type fan-out
// ranking, normalization, fuzzy re-ranking, filtering, sorting, pagination.
type Engine struct {
	stores  Indexes
	cfg     *config.Config
	cache   *cache.Tiered
	logger  *slog.Logger
	metrics MetricsRecorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache attaches the tiered result cache.
func WithCache(c *cache.Tiered) Option {
	return func(e *Engine) { e.cache = c }
}

// WithLogger sets the query logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches a query metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine over the given index set.
func New(stores Indexes, cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		stores: stores,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// candidate is one enriched hit flowing through the pipeline.
type candidate struct {
	doc    *store.Document
	result *Result
}

// Search answers one query. It always returns a response rather than an
// error for recoverable conditions: malformed queries are sanitized, failed
// types are skipped, a down cache is bypassed.
func (e *Engine) Search(ctx context.Context, q *Query) (*Response, error) {
	start := time.Now()
	qlog := e.logger.With(slog.String("query_id", uuid.NewString()))

	if q.Owner == "" {
		return nil, pkmserr.MalformedQuery("owner is required", nil)
	}

	text := store.SanitizeQuery(q.Text)
	if utf8.RuneCountInString(text) < minQueryRunes {
		return &Response{
			Results:         []*Result{},
			Mode:            ModeExact,
			ModulesSearched: []store.ContentType{},
			Reason:          fmt.Sprintf("query must be at least %d characters", minQueryRunes),
			Stats:           Stats{TookMS: time.Since(start).Milliseconds()},
		}, nil
	}

	types, err := resolveTypes(q.Types)
	if err != nil {
		return nil, err
	}
	limit, offset := e.resolvePage(q)
	threshold := q.FuzzyThreshold
	if threshold <= 0 {
		threshold = e.cfg.Fuzzy.DefaultThreshold
	}

	key := e.searchCacheKey(q, text, types, limit, offset, threshold)
	if resp, ok := e.cacheGet(ctx, key); ok {
		resp.Stats.CacheHit = true
		resp.Stats.TookMS = time.Since(start).Milliseconds()
		e.record(text, resp.Mode, time.Since(start), len(resp.Results), true)
		return resp, nil
	}

	ranked, searched := e.fanOut(ctx, qlog, q.Owner, text, types)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	candidates, err := e.enrich(ctx, q.Owner, ranked)
	if err != nil {
		return nil, err
	}

	mode := ModeExact
	switch {
	case q.Fuzzy:
		mode = ModeFuzzy
		candidates, err = e.fuzzyRerank(ctx, q.Owner, text, types, candidates, threshold)
		if err != nil {
			return nil, err
		}
	case len(candidates) > 0 && len(candidates) < e.cfg.Search.RecallThreshold:
		mode = ModeHybrid
		blendAll(text, candidates, e.cfg.Fuzzy.RelevanceBlend, e.cfg.Fuzzy.FuzzyBlend)
	}

	results := make([]*Result, 0, len(candidates))
	countsByType := make(map[store.ContentType]int)
	for _, c := range candidates {
		if !matchesFilters(c.doc, q) {
			continue
		}
		results = append(results, c.result)
		countsByType[c.result.Type]++
	}

	sortResults(results, q.SortBy, q.SortDir)

	total := len(results)
	results = paginate(results, offset, limit)

	resp := &Response{
		Results:         results,
		Total:           total,
		Mode:            mode,
		ModulesSearched: searched,
		Stats: Stats{
			TookMS:       time.Since(start).Milliseconds(),
			Candidates:   len(candidates),
			CountsByType: countsByType,
		},
	}

	// A cancelled query must not publish a partial result.
	if ctx.Err() == nil {
		e.cachePut(ctx, key, resp)
	}

	qlog.Debug("search_done",
		slog.String("mode", string(mode)),
		slog.Int("total", total),
		slog.Int("returned", len(results)),
		slog.Duration("took", time.Since(start)))
	e.record(text, mode, time.Since(start), len(results), false)
	return resp, nil
}

// fanOut runs the per-type ranking queries concurrently, each under its own
// timeout. A failed or timed-out type contributes nothing and is excluded
// from the searched list; the query still answers from the others.
func (e *Engine) fanOut(ctx context.Context, qlog *slog.Logger, owner, text string, types []store.ContentType) (map[store.ContentType][]*store.RankedHit, []store.ContentType) {
	var (
		mu      sync.Mutex
		ranked  = make(map[store.ContentType][]*store.RankedHit, len(types))
		failed  = make(map[store.ContentType]bool, len(types))
		g, gctx = errgroup.WithContext(ctx)
	)

	for _, typ := range types {
		typ := typ
		g.Go(func() error {
			idx, err := e.stores.Index(typ)
			if err == nil {
				tctx, cancel := context.WithTimeout(gctx, e.cfg.Search.PerTypeTimeout)
				defer cancel()
				var hits []*store.RankedHit
				hits, err = idx.Rank(tctx, owner, text, e.cfg.Search.CandidateLimit)
				if err == nil {
					mu.Lock()
					ranked[typ] = hits
					mu.Unlock()
					return nil
				}
			}
			qlog.Warn("type_query_failed",
				slog.String("type", string(typ)),
				slog.String("error", err.Error()))
			mu.Lock()
			failed[typ] = true
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	searched := make([]store.ContentType, 0, len(types))
	for _, typ := range types {
		if !failed[typ] {
			searched = append(searched, typ)
		}
	}
	return ranked, searched
}

// enrich joins ranked hits with their document rows and computes the
// normalized score. Hits without a document row are index orphans from an
// interrupted sync and are dropped.
func (e *Engine) enrich(ctx context.Context, owner string, ranked map[store.ContentType][]*store.RankedHit) ([]*candidate, error) {
	var out []*candidate
	for typ, hits := range ranked {
		if len(hits) == 0 {
			continue
		}
		norm := normalizeScores(hits, e.cfg.TypeWeight(string(typ)))

		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
		}
		docs, err := e.stores.Documents().GetBatch(ctx, typ, ids)
		if err != nil {
			return nil, err
		}

		for _, h := range hits {
			doc, ok := docs[h.ID]
			if !ok || doc.Owner != owner {
				continue
			}
			out = append(out, &candidate{
				doc:    doc,
				result: resultFromDoc(doc, h.RawScore, norm[h.ID]),
			})
		}
	}
	return out, nil
}

// fuzzyRerank implements the explicit fuzzy path. Sparse candidate sets
// are widened from the document store; the extras carry no relevance
// score, so every one of them is similarity-scored and threshold-gated.
// Only exact-ranked candidates beyond the top N keep their relevance
// score unchanged. Candidates whose similarity falls below the threshold
// are dropped.
func (e *Engine) fuzzyRerank(ctx context.Context, owner, text string, types []store.ContentType, candidates []*candidate, threshold int) ([]*candidate, error) {
	var supplements []*candidate
	if len(candidates) < e.cfg.Search.RecallThreshold {
		extra, err := e.supplementFromStore(ctx, owner, types, candidates)
		if err != nil {
			return nil, err
		}
		supplements = extra
	}

	ranked := candidates
	var untouched []*candidate
	if topN := e.cfg.Search.LightBoostTopN; len(ranked) > topN {
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].result.NormalizedScore > ranked[j].result.NormalizedScore
		})
		untouched = ranked[topN:]
		ranked = ranked[:topN]
	}

	kept := make([]*candidate, 0, len(ranked)+len(supplements))
	rescore := func(c *candidate) {
		sim := fieldSimilarity(text, c.result, c.doc.Filename)
		if sim < float64(threshold) {
			return
		}
		applyBlend(c.result, sim, e.cfg.Fuzzy.RelevanceBlend, e.cfg.Fuzzy.FuzzyBlend)
		kept = append(kept, c)
	}
	for _, c := range ranked {
		rescore(c)
	}
	for _, c := range supplements {
		rescore(c)
	}
	return append(kept, untouched...), nil
}

// supplementFromStore widens the fuzzy candidate pool with the owner's
// recent documents that exact ranking missed entirely, so a typo like
// "budjet" can still reach "Budget" records.
func (e *Engine) supplementFromStore(ctx context.Context, owner string, types []store.ContentType, existing []*candidate) ([]*candidate, error) {
	have := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		have[string(c.doc.Type)+"/"+c.doc.ID] = struct{}{}
	}

	var out []*candidate
	for _, typ := range types {
		docs, err := e.stores.Documents().ListByOwner(ctx, typ, owner, e.cfg.Search.CandidateLimit)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if _, ok := have[string(doc.Type)+"/"+doc.ID]; ok {
				continue
			}
			out = append(out, &candidate{doc: doc, result: resultFromDoc(doc, 0, 0)})
		}
	}
	return out, nil
}

// blendAll re-scores every candidate without dropping any. Used on the
// hybrid path, where fuzzy similarity refines ordering for sparse exact
// matches but must never hide them.
func blendAll(text string, candidates []*candidate, relWeight, fuzzWeight float64) {
	for _, c := range candidates {
		sim := fieldSimilarity(text, c.result, c.doc.Filename)
		applyBlend(c.result, sim, relWeight, fuzzWeight)
	}
}

func applyBlend(r *Result, sim, relWeight, fuzzWeight float64) {
	s := sim
	r.FuzzyScore = &s
	r.Score = relWeight*r.NormalizedScore + fuzzWeight*(sim/100)
}

func resultFromDoc(doc *store.Document, raw, norm float64) *Result {
	return &Result{
		ID:              doc.ID,
		Type:            doc.Type,
		Title:           doc.Title,
		Preview:         doc.Preview,
		Tags:            doc.Tags(),
		RawScore:        raw,
		NormalizedScore: norm,
		Score:           norm,
		UpdatedAt:       doc.UpdatedAt,
		CreatedAt:       doc.CreatedAt,
	}
}

func resolveTypes(requested []store.ContentType) ([]store.ContentType, error) {
	if len(requested) == 0 {
		return store.AllTypes(), nil
	}
	seen := make(map[store.ContentType]struct{}, len(requested))
	out := make([]store.ContentType, 0, len(requested))
	for _, typ := range requested {
		if !typ.Valid() {
			return nil, pkmserr.New(pkmserr.ErrCodeInvalidFilter,
				fmt.Sprintf("unknown content type %q", typ), nil)
		}
		if _, dup := seen[typ]; dup {
			continue
		}
		seen[typ] = struct{}{}
		out = append(out, typ)
	}
	return out, nil
}

func (e *Engine) resolvePage(q *Query) (limit, offset int) {
	limit = q.Limit
	if limit <= 0 {
		limit = e.cfg.Search.DefaultLimit
	}
	if limit > e.cfg.Search.MaxLimit {
		limit = e.cfg.Search.MaxLimit
	}
	offset = q.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func paginate(results []*Result, offset, limit int) []*Result {
	if offset >= len(results) {
		return []*Result{}
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}

// searchCacheKey derives the canonical cache key for a query. Multi-value
// fields are sorted inside CanonicalKey, so logically identical queries
// share a key regardless of parameter order.
func (e *Engine) searchCacheKey(q *Query, text string, types []store.ContentType, limit, offset, threshold int) string {
	typeNames := make([]string, len(types))
	for i, typ := range types {
		typeNames[i] = string(typ)
	}
	fields := map[string][]string{
		"owner":    {q.Owner},
		"q":        {strings.ToLower(text)},
		"types":    typeNames,
		"inc_tags": canonicalTags(q.IncludeTags),
		"exc_tags": canonicalTags(q.ExcludeTags),
		"fav":      {strconv.FormatBool(q.FavoritesOnly)},
		"arch":     {strconv.FormatBool(q.IncludeArchived)},
		"fuzzy":    {strconv.FormatBool(q.Fuzzy) + ":" + strconv.Itoa(threshold)},
		"sort":     {string(q.SortBy) + ":" + string(q.SortDir)},
		"page":     {strconv.Itoa(limit) + ":" + strconv.Itoa(offset)},
	}
	if !q.CreatedAfter.IsZero() {
		fields["after"] = []string{q.CreatedAfter.UTC().Format(time.RFC3339)}
	}
	if !q.CreatedBefore.IsZero() {
		fields["before"] = []string{q.CreatedBefore.UTC().Format(time.RFC3339)}
	}
	if q.MimeFamily != "" {
		fields["mime"] = []string{strings.ToLower(q.MimeFamily)}
	}
	if q.Status != "" {
		fields["status"] = []string{strings.ToLower(q.Status)}
	}
	if q.MinPriority > 0 || q.MaxPriority > 0 {
		fields["prio"] = []string{strconv.Itoa(q.MinPriority) + ":" + strconv.Itoa(q.MaxPriority)}
	}
	if q.MinSizeBytes > 0 || q.MaxSizeBytes > 0 {
		fields["size"] = []string{
			strconv.FormatInt(q.MinSizeBytes, 10) + ":" + strconv.FormatInt(q.MaxSizeBytes, 10),
		}
	}
	return cache.CanonicalKey(cacheNamespaceSearch, fields)
}

func (e *Engine) cacheGet(ctx context.Context, key string) (*Response, bool) {
	if e.cache == nil {
		return nil, false
	}
	data, ok := e.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		e.logger.Warn("cache_decode_failed", slog.String("error", err.Error()))
		return nil, false
	}
	return &resp, true
}

func (e *Engine) cachePut(ctx context.Context, key string, resp *Response) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		e.logger.Warn("cache_encode_failed", slog.String("error", err.Error()))
		return
	}
	e.cache.Set(ctx, key, data)
}

func (e *Engine) record(text string, mode Mode, took time.Duration, results int, cacheHit bool) {
	if e.metrics != nil {
		e.metrics.RecordQuery(text, mode, took, results, cacheHit)
	}
}
