package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkmserr "github.com/ashishacharya123/PKMS-sub000/internal/errors"
	"github.com/ashishacharya123/PKMS-sub000/internal/store"
)

type staticTags struct {
	tags map[string][]string
	err  error
}

func (s *staticTags) TagsFor(_ context.Context, owner string, typ store.ContentType, id string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tags[string(typ)+"/"+id], nil
}

// failingIndex wraps a real index but fails every write.
type failingIndex struct {
	store.TypeIndex
}

func (f *failingIndex) Index(context.Context, *store.IndexEntry) error {
	return errors.New("disk full")
}

func (f *failingIndex) Delete(context.Context, string) error {
	return errors.New("disk full")
}

type stubStores struct {
	set     *store.Set
	failing map[store.ContentType]store.TypeIndex
}

func (s *stubStores) Index(typ store.ContentType) (store.TypeIndex, error) {
	if idx, ok := s.failing[typ]; ok {
		return idx, nil
	}
	return s.set.Index(typ)
}

func (s *stubStores) Documents() *store.SQLiteStore { return s.set.Documents() }

func newTestSet(t *testing.T) *store.Set {
	t.Helper()
	set, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close() })
	return set
}

func noteFields(title, body string) *store.IndexFields {
	now := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	return &store.IndexFields{
		Title:     title,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSyncer_CreateIndexesAndStores(t *testing.T) {
	ctx := context.Background()
	set := newTestSet(t)
	tags := &staticTags{tags: map[string][]string{
		"note/n1": {"DevOps", "Release"},
	}}
	s := New(set, tags)

	require.NoError(t, s.NotifyChange(ctx, store.TypeNote, "n1", "alice", noteFields("Deploy checklist", "steps to deploy")))

	idx, err := set.Index(store.TypeNote)
	require.NoError(t, err)
	hits, err := idx.Rank(ctx, "alice", "deploy", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	doc, err := set.Documents().Get(ctx, store.TypeNote, "n1")
	require.NoError(t, err)
	assert.Equal(t, "Deploy checklist", doc.Title)
	assert.Equal(t, []string{"devops", "release"}, doc.Tags())
	assert.Equal(t, "steps to deploy", doc.Preview)
}

func TestSyncer_TagsAreSearchable(t *testing.T) {
	ctx := context.Background()
	set := newTestSet(t)
	tags := &staticTags{tags: map[string][]string{
		"note/n1": {"quarterly-budget"},
	}}
	s := New(set, tags)

	require.NoError(t, s.NotifyChange(ctx, store.TypeNote, "n1", "alice", noteFields("Untitled", "nothing relevant")))

	idx, err := set.Index(store.TypeNote)
	require.NoError(t, err)
	hits, err := idx.Rank(ctx, "alice", "quarterly", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestSyncer_DeleteRemovesEverywhere(t *testing.T) {
	ctx := context.Background()
	set := newTestSet(t)
	s := New(set, &staticTags{})

	require.NoError(t, s.NotifyChange(ctx, store.TypeNote, "n1", "alice", noteFields("Doomed note", "body")))
	require.NoError(t, s.NotifyChange(ctx, store.TypeNote, "n1", "alice", nil))

	idx, err := set.Index(store.TypeNote)
	require.NoError(t, err)
	hits, err := idx.Rank(ctx, "alice", "doomed", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = set.Documents().Get(ctx, store.TypeNote, "n1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSyncer_DeleteMissingRecordIsNoop(t *testing.T) {
	set := newTestSet(t)
	s := New(set, &staticTags{})

	require.NoError(t, s.NotifyChange(context.Background(), store.TypeNote, "never-existed", "alice", nil))
}

func TestSyncer_IndexFailureRollsBackDocument(t *testing.T) {
	ctx := context.Background()
	set := newTestSet(t)

	realIdx, err := set.Index(store.TypeNote)
	require.NoError(t, err)
	stores := &stubStores{
		set: set,
		failing: map[store.ContentType]store.TypeIndex{
			store.TypeNote: &failingIndex{TypeIndex: realIdx},
		},
	}
	s := New(stores, &staticTags{})

	err = s.NotifyChange(ctx, store.TypeNote, "n1", "alice", noteFields("Never lands", "body"))
	require.Error(t, err)

	_, err = set.Documents().Get(ctx, store.TypeNote, "n1")
	assert.ErrorIs(t, err, store.ErrNotFound, "document row must roll back when the index write fails")
}

func TestSyncer_DeleteCommitsDocumentBeforeIndex(t *testing.T) {
	ctx := context.Background()
	set := newTestSet(t)

	require.NoError(t, New(set, &staticTags{}).NotifyChange(ctx,
		store.TypeNote, "n1", "alice", noteFields("Short lived", "body")))

	realIdx, err := set.Index(store.TypeNote)
	require.NoError(t, err)
	stores := &stubStores{
		set: set,
		failing: map[store.ContentType]store.TypeIndex{
			store.TypeNote: &failingIndex{TypeIndex: realIdx},
		},
	}
	s := New(stores, &staticTags{})

	err = s.NotifyChange(ctx, store.TypeNote, "n1", "alice", nil)
	require.Error(t, err)

	_, err = set.Documents().Get(ctx, store.TypeNote, "n1")
	assert.ErrorIs(t, err, store.ErrNotFound,
		"the primary delete commits even when the index delete fails")
}

func TestSyncer_TagFetchFailureAborts(t *testing.T) {
	ctx := context.Background()
	set := newTestSet(t)
	s := New(set, &staticTags{err: errors.New("tag service down")})

	err := s.NotifyChange(ctx, store.TypeNote, "n1", "alice", noteFields("Blocked", "body"))
	require.Error(t, err)
	assert.Equal(t, pkmserr.ErrCodeTagFetchFailure, pkmserr.CodeOf(err))

	_, err = set.Documents().Get(ctx, store.TypeNote, "n1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSyncer_RejectsBadInput(t *testing.T) {
	set := newTestSet(t)
	s := New(set, &staticTags{})
	ctx := context.Background()

	err := s.NotifyChange(ctx, store.ContentType("bogus"), "n1", "alice", noteFields("x", ""))
	assert.Equal(t, pkmserr.ErrCodeSyncUnknownType, pkmserr.CodeOf(err))

	err = s.NotifyChange(ctx, store.TypeNote, "", "alice", noteFields("x", ""))
	assert.Error(t, err)

	err = s.NotifyChange(ctx, store.TypeNote, "n1", "", noteFields("x", ""))
	assert.Error(t, err)
}

func TestSyncer_ConcurrentNotifications(t *testing.T) {
	ctx := context.Background()
	set := newTestSet(t)
	s := New(set, &staticTags{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			err := s.NotifyChange(ctx, store.TypeNote, id, "alice", noteFields("note "+id, "shared text"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	idx, err := set.Index(store.TypeNote)
	require.NoError(t, err)
	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), count)
}
