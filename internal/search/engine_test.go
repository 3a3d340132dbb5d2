package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashishacharya123/PKMS-sub000/internal/cache"
	"github.com/ashishacharya123/PKMS-sub000/internal/config"
	"github.com/ashishacharya123/PKMS-sub000/internal/store"
	"github.com/ashishacharya123/PKMS-sub000/internal/syncer"
)

type fixture struct {
	set    *store.Set
	engine *Engine
	sync   *syncer.Syncer
	tags   *store.SQLiteTagStore
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	set, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close() })

	cfg := config.NewConfig()
	return &fixture{
		set:    set,
		engine: New(set, cfg, opts...),
		sync:   syncer.New(set, set.Tags()),
		tags:   set.Tags(),
	}
}

func (f *fixture) add(t *testing.T, typ store.ContentType, id, owner string, fields *store.IndexFields) {
	t.Helper()
	require.NoError(t, f.sync.NotifyChange(context.Background(), typ, id, owner, fields))
}

func fieldsAt(title, body string, updated time.Time) *store.IndexFields {
	return &store.IndexFields{
		Title:     title,
		Body:      body,
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func fields(title, body string) *store.IndexFields {
	return fieldsAt(title, body, time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))
}

func TestSearch_QueryTooShort(t *testing.T) {
	f := newFixture(t)

	resp, err := f.engine.Search(context.Background(), &Query{Owner: "alice", Text: "a"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.NotEmpty(t, resp.Reason)
	assert.Equal(t, ModeExact, resp.Mode)
}

func TestSearch_RequiresOwner(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Search(context.Background(), &Query{Text: "deploy"})
	require.Error(t, err)
}

func TestSearch_MultiTypeDeploy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	f.add(t, store.TypeNote, "n1", "alice", fieldsAt("Deploy runbook", "how we deploy", base))
	f.add(t, store.TypeNote, "n2", "alice", fieldsAt("Weekly sync", "discussed the deploy", base.Add(time.Hour)))
	f.add(t, store.TypeNote, "n3", "alice", fieldsAt("Ideas", "deploy faster", base.Add(2*time.Hour)))
	f.add(t, store.TypeTask, "t1", "alice", fields("Deploy to staging", "deploy the new build"))

	resp, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy"})
	require.NoError(t, err)

	require.Len(t, resp.Results, 4)
	assert.Equal(t, 4, resp.Total)
	assert.Contains(t, resp.ModulesSearched, store.TypeNote)
	assert.Contains(t, resp.ModulesSearched, store.TypeTask)

	for _, r := range resp.Results {
		assert.GreaterOrEqual(t, r.NormalizedScore, 0.0)
		assert.LessOrEqual(t, r.NormalizedScore, 1.0)
	}
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
	}
}

func TestSearch_OwnerIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.add(t, store.TypeNote, "n1", "alice", fields("Deploy notes", "alice's deploy"))
	f.add(t, store.TypeNote, "n2", "bob", fields("Deploy notes", "bob's deploy"))

	resp, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "n1", resp.Results[0].ID)
}

func TestSearch_Determinism(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	same := time.Date(2026, 7, 2, 9, 0, 0, 0, time.UTC)
	for _, id := range []string{"c", "a", "b", "d"} {
		f.add(t, store.TypeNote, id, "alice", fieldsAt("deploy", "identical body text", same))
	}

	first, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy"})
	require.NoError(t, err)
	require.Len(t, first.Results, 4)

	for i := 0; i < 5; i++ {
		again, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy"})
		require.NoError(t, err)
		require.Len(t, again.Results, 4)
		for j := range first.Results {
			assert.Equal(t, first.Results[j].ID, again.Results[j].ID)
		}
	}
	// Identical scores and timestamps leave id ascending as the order.
	assert.Equal(t, "a", first.Results[0].ID)
	assert.Equal(t, "b", first.Results[1].ID)
}

func TestSearch_FuzzyBudgetScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.tags.SetTags(ctx, "alice", store.TypeDocument, "d1", []string{"finance", "2025"}))
	f.add(t, store.TypeDocument, "d1", "alice", &store.IndexFields{
		Title:     "Quarterly Budget Report",
		Body:      "Quarterly budget numbers for the finance review",
		Filename:  "quarterly-budget-report.pdf",
		CreatedAt: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	})

	exact, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "budget"})
	require.NoError(t, err)
	require.Len(t, exact.Results, 1)
	assert.Equal(t, "d1", exact.Results[0].ID)

	typo, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "budjet", Fuzzy: true, FuzzyThreshold: 60})
	require.NoError(t, err)
	require.Len(t, typo.Results, 1, "fuzzy mode must tolerate the typo")
	assert.Equal(t, "d1", typo.Results[0].ID)
	assert.Equal(t, ModeFuzzy, typo.Mode)
	require.NotNil(t, typo.Results[0].FuzzyScore)
	assert.GreaterOrEqual(t, *typo.Results[0].FuzzyScore, 60.0)

	miss, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "budjet"})
	require.NoError(t, err)
	assert.Empty(t, miss.Results, "without fuzzy mode the typo finds nothing")
}

func TestSearch_FuzzyThresholdGatesWidenedPool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("n%02d", i)
		f.add(t, store.TypeNote, id, "alice", fields("Grocery list "+id, "milk eggs bread"))
	}

	resp, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "zxqvwk", Fuzzy: true, FuzzyThreshold: 90})
	require.NoError(t, err)
	assert.Equal(t, ModeFuzzy, resp.Mode)
	assert.Empty(t, resp.Results, "widened candidates below the threshold must be dropped")
}

func TestSearch_FuzzyScoresWidenedPoolBeyondTopN(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("n%02d", i)
		f.add(t, store.TypeNote, id, "alice", fields("Grocery list "+id, "milk eggs bread"))
	}
	f.add(t, store.TypeNote, "b1", "alice", fields("Budget forecast", "budget numbers for next quarter"))

	resp, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "budjet", Fuzzy: true, FuzzyThreshold: 60})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "b1", resp.Results[0].ID)
	require.NotNil(t, resp.Results[0].FuzzyScore)
	assert.GreaterOrEqual(t, *resp.Results[0].FuzzyScore, 60.0)
}

func TestSearch_DeleteThenQuery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.add(t, store.TypeDocument, "d1", "alice", fields("Meeting Minutes March", "notes from march"))
	require.NoError(t, f.sync.NotifyChange(ctx, store.TypeDocument, "d1", "alice", nil))

	resp, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "Meeting Minutes March"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

// overrideIndexes swaps in a misbehaving index for one type.
type overrideIndexes struct {
	set      *store.Set
	typ      store.ContentType
	override func(store.TypeIndex) store.TypeIndex
}

func (p *overrideIndexes) Index(typ store.ContentType) (store.TypeIndex, error) {
	idx, err := p.set.Index(typ)
	if err != nil {
		return nil, err
	}
	if typ == p.typ {
		return p.override(idx), nil
	}
	return idx, nil
}

func (p *overrideIndexes) Documents() *store.SQLiteStore { return p.set.Documents() }

type brokenIndex struct{ store.TypeIndex }

func (brokenIndex) Rank(context.Context, string, string, int) ([]*store.RankedHit, error) {
	return nil, errors.New("segment read failed")
}

// slowIndex blocks until the per-type deadline fires.
type slowIndex struct{ store.TypeIndex }

func (slowIndex) Rank(ctx context.Context, _, _ string, _ int) ([]*store.RankedHit, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSearch_PartialFailureTolerance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.add(t, store.TypeNote, "n1", "alice", fields("Deploy runbook", "deploy steps"))
	f.add(t, store.TypeTask, "t1", "alice", fields("Deploy to staging", "deploy it"))

	engine := New(&overrideIndexes{
		set: f.set,
		typ: store.TypeTask,
		override: func(idx store.TypeIndex) store.TypeIndex {
			return brokenIndex{idx}
		},
	}, config.NewConfig())

	resp, err := engine.Search(ctx, &Query{Owner: "alice", Text: "deploy"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, store.TypeNote, resp.Results[0].Type)
	assert.Contains(t, resp.ModulesSearched, store.TypeNote)
	assert.NotContains(t, resp.ModulesSearched, store.TypeTask)
}

func TestSearch_PerTypeTimeoutExcludesSlowType(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.add(t, store.TypeNote, "n1", "alice", fields("Deploy runbook", "deploy steps"))
	f.add(t, store.TypeTask, "t1", "alice", fields("Deploy to staging", "deploy it"))

	cfg := config.NewConfig()
	cfg.Search.PerTypeTimeout = 20 * time.Millisecond
	engine := New(&overrideIndexes{
		set: f.set,
		typ: store.TypeTask,
		override: func(idx store.TypeIndex) store.TypeIndex {
			return slowIndex{idx}
		},
	}, cfg)

	resp, err := engine.Search(ctx, &Query{Owner: "alice", Text: "deploy"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, store.TypeNote, resp.Results[0].Type)
	assert.Contains(t, resp.ModulesSearched, store.TypeNote)
	assert.NotContains(t, resp.ModulesSearched, store.TypeTask)
}

func TestSearch_TypeFilter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.add(t, store.TypeNote, "n1", "alice", fields("Deploy note", "deploy"))
	f.add(t, store.TypeTask, "t1", "alice", fields("Deploy task", "deploy"))

	resp, err := f.engine.Search(ctx, &Query{
		Owner: "alice",
		Text:  "deploy",
		Types: []store.ContentType{store.TypeTask},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, store.TypeTask, resp.Results[0].Type)
	assert.Equal(t, []store.ContentType{store.TypeTask}, resp.ModulesSearched)

	_, err = f.engine.Search(ctx, &Query{
		Owner: "alice",
		Text:  "deploy",
		Types: []store.ContentType{"bogus"},
	})
	assert.Error(t, err)
}

func TestSearch_TagFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.tags.SetTags(ctx, "alice", store.TypeNote, "n1", []string{"work", "urgent"}))
	require.NoError(t, f.tags.SetTags(ctx, "alice", store.TypeNote, "n2", []string{"personal"}))
	f.add(t, store.TypeNote, "n1", "alice", fields("Deploy A", "deploy"))
	f.add(t, store.TypeNote, "n2", "alice", fields("Deploy B", "deploy"))

	resp, err := f.engine.Search(ctx, &Query{
		Owner:       "alice",
		Text:        "deploy",
		IncludeTags: []string{"Work"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "n1", resp.Results[0].ID)

	resp, err = f.engine.Search(ctx, &Query{
		Owner:       "alice",
		Text:        "deploy",
		ExcludeTags: []string{"urgent"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "n2", resp.Results[0].ID)
}

func TestSearch_FavoriteAndArchivedFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	fav := fields("Deploy fav", "deploy")
	fav.IsFavorite = true
	f.add(t, store.TypeNote, "n1", "alice", fav)

	archived := fields("Deploy archived", "deploy")
	archived.IsArchived = true
	f.add(t, store.TypeNote, "n2", "alice", archived)

	f.add(t, store.TypeNote, "n3", "alice", fields("Deploy plain", "deploy"))

	resp, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2, "archived results hidden by default")

	resp, err = f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy", IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 3)

	resp, err = f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy", FavoritesOnly: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "n1", resp.Results[0].ID)
}

func TestSearch_Pagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	same := time.Date(2026, 7, 3, 10, 0, 0, 0, time.UTC)
	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		f.add(t, store.TypeNote, id, "alice", fieldsAt("deploy", "same body", same))
	}

	var collected []string
	for offset := 0; offset < len(ids); offset += 2 {
		resp, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy", Limit: 2, Offset: offset})
		require.NoError(t, err)
		assert.Equal(t, 5, resp.Total)
		for _, r := range resp.Results {
			collected = append(collected, r.ID)
		}
	}
	assert.Equal(t, ids, collected, "pages tile the result set without gaps or repeats")

	resp, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy", Limit: 2, Offset: 99})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 5, resp.Total)
}

func TestSearch_SortByDateAndTitle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	f.add(t, store.TypeNote, "n1", "alice", fieldsAt("Beta deploy", "deploy", base))
	f.add(t, store.TypeNote, "n2", "alice", fieldsAt("Alpha deploy", "deploy", base.Add(time.Hour)))

	resp, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy", SortBy: SortDate})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "n2", resp.Results[0].ID, "date sort defaults to newest first")

	resp, err = f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy", SortBy: SortTitle})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Alpha deploy", resp.Results[0].Title)
}

func newLocalTiered(t *testing.T) *cache.Tiered {
	t.Helper()
	local, err := cache.NewLocal(64)
	require.NoError(t, err)
	return cache.NewTiered(nil, local, time.Minute, slog.Default())
}

func TestSearch_CacheHit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithCache(newLocalTiered(t)))

	f.add(t, store.TypeNote, "n1", "alice", fields("Deploy runbook", "deploy steps"))

	fresh, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy"})
	require.NoError(t, err)
	assert.False(t, fresh.Stats.CacheHit)

	cached, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy"})
	require.NoError(t, err)
	assert.True(t, cached.Stats.CacheHit)

	require.Len(t, cached.Results, len(fresh.Results))
	for i := range fresh.Results {
		assert.Equal(t, fresh.Results[i].ID, cached.Results[i].ID)
		assert.Equal(t, fresh.Results[i].Score, cached.Results[i].Score)
	}
}

func TestSearch_CacheKeyIgnoresTagOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithCache(newLocalTiered(t)))

	require.NoError(t, f.tags.SetTags(ctx, "alice", store.TypeNote, "n1", []string{"a", "b"}))
	f.add(t, store.TypeNote, "n1", "alice", fields("Deploy runbook", "deploy"))

	_, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy", IncludeTags: []string{"a", "b"}})
	require.NoError(t, err)

	resp, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy", IncludeTags: []string{"b", "a"}})
	require.NoError(t, err)
	assert.True(t, resp.Stats.CacheHit, "tag order must not change the cache key")
}

func TestSearch_CancelledContext(t *testing.T) {
	f := newFixture(t, WithCache(newLocalTiered(t)))
	f.add(t, store.TypeNote, "n1", "alice", fields("Deploy runbook", "deploy"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Search(ctx, &Query{Owner: "alice", Text: "deploy"})
	require.Error(t, err)

	// The cancelled call must not have cached anything.
	resp, err := f.engine.Search(context.Background(), &Query{Owner: "alice", Text: "deploy"})
	require.NoError(t, err)
	assert.False(t, resp.Stats.CacheHit)
}

type recordedQuery struct {
	mode    Mode
	results int
	hit     bool
}

type recorder struct{ calls []recordedQuery }

func (r *recorder) RecordQuery(_ string, mode Mode, _ time.Duration, results int, hit bool) {
	r.calls = append(r.calls, recordedQuery{mode: mode, results: results, hit: hit})
}

func TestSearch_RecordsMetrics(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, WithMetrics(rec), WithCache(newLocalTiered(t)))
	f.add(t, store.TypeNote, "n1", "alice", fields("Deploy runbook", "deploy"))

	_, err := f.engine.Search(context.Background(), &Query{Owner: "alice", Text: "deploy"})
	require.NoError(t, err)
	_, err = f.engine.Search(context.Background(), &Query{Owner: "alice", Text: "deploy"})
	require.NoError(t, err)

	require.Len(t, rec.calls, 2)
	assert.False(t, rec.calls[0].hit)
	assert.True(t, rec.calls[1].hit)
	assert.Equal(t, 1, rec.calls[0].results)
}
