package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/ashishacharya123/PKMS-sub000/internal/store"
)

// SuggestQuery is one typeahead request.
type SuggestQuery struct {
	Owner  string
	Prefix string
	// Types restricts the suggestion scan; empty means all types.
	Types []store.ContentType
	Limit int
}

// Suggest returns up to Limit distinct title completions for a prefix,
// merged across the allowed types and ordered best-first. Prefixes shorter
// than the configured minimum return an empty list rather than an error,
// to keep typeahead callers simple.
func (e *Engine) Suggest(ctx context.Context, q *SuggestQuery) ([]*Suggestion, error) {
	if q.Owner == "" {
		return nil, fmt.Errorf("owner is required")
	}

	prefix := store.SanitizeQuery(q.Prefix)
	if utf8.RuneCountInString(prefix) < e.cfg.Suggest.MinQueryLength {
		return []*Suggestion{}, nil
	}

	types, err := resolveTypes(q.Types)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = e.cfg.Suggest.DefaultLimit
	}

	var (
		mu      sync.Mutex
		merged  []*store.Suggestion
		g, gctx = errgroup.WithContext(ctx)
	)
	for _, typ := range types {
		typ := typ
		g.Go(func() error {
			idx, err := e.stores.Index(typ)
			if err == nil {
				var got []*store.Suggestion
				got, err = idx.SuggestTitles(gctx, q.Owner, prefix, limit)
				if err == nil {
					mu.Lock()
					merged = append(merged, got...)
					mu.Unlock()
					return nil
				}
			}
			e.logger.Warn("suggest_type_failed",
				slog.String("type", string(typ)),
				slog.String("error", err.Error()))
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Deduplicate across types keeping the best score per title.
	best := make(map[string]*Suggestion, len(merged))
	for _, s := range merged {
		key := strings.ToLower(s.Text)
		if cur, ok := best[key]; !ok || s.Score > cur.Score {
			best[key] = &Suggestion{Text: s.Text, Score: s.Score}
		}
	}

	out := make([]*Suggestion, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return strings.ToLower(out[i].Text) < strings.ToLower(out[j].Text)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
