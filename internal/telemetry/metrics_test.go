package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashishacharya123/PKMS-sub000/internal/search"
)

func TestLatencyToBucket(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want LatencyBucket
	}{
		{0, BucketP10},
		{9 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{49 * time.Millisecond, BucketP50},
		{50 * time.Millisecond, BucketP100},
		{99 * time.Millisecond, BucketP100},
		{100 * time.Millisecond, BucketP500},
		{499 * time.Millisecond, BucketP500},
		{500 * time.Millisecond, BucketP1000},
		{3 * time.Second, BucketP1000},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LatencyToBucket(tc.d), "duration %v", tc.d)
	}
}

func TestCircularBufferWraparound(t *testing.T) {
	buf := NewCircularBuffer[string](3)
	assert.Empty(t, buf.Items())

	buf.Add("a")
	buf.Add("b")
	assert.Equal(t, []string{"a", "b"}, buf.Items())
	assert.Equal(t, 2, buf.Size())

	buf.Add("c")
	buf.Add("d")
	buf.Add("e")
	assert.Equal(t, []string{"c", "d", "e"}, buf.Items())
	assert.Equal(t, 3, buf.Size())
}

func TestExtractTerms(t *testing.T) {
	assert.Equal(t, []string{"quarterly", "budget"}, ExtractTerms("Quarterly Budget"))
	assert.Nil(t, ExtractTerms("a an to"))
	assert.Equal(t, []string{"tax"}, ExtractTerms("my tax"))
}

func TestRecordQueryAggregates(t *testing.T) {
	m := New(nil)
	defer m.Close()

	m.RecordQuery("quarterly budget", search.ModeExact, 5*time.Millisecond, 3, false)
	m.RecordQuery("quarterly budget", search.ModeExact, 20*time.Millisecond, 3, true)
	m.RecordQuery("missing thing", search.ModeFuzzy, 600*time.Millisecond, 0, false)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Equal(t, int64(2), snap.ModeCounts[search.ModeExact])
	assert.Equal(t, int64(1), snap.ModeCounts[search.ModeFuzzy])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP50])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP1000])
	assert.Equal(t, int64(1), snap.CacheHitCount)
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, []string{"missing thing"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(1), snap.ExactRepeatCount)
	assert.InDelta(t, 33.3, snap.ZeroResultPercentage(), 0.1)
	assert.InDelta(t, 0.333, snap.CacheHitRate(), 0.01)
}

func TestTopTermsSortedByFrequency(t *testing.T) {
	m := New(nil)
	defer m.Close()

	m.RecordQuery("budget review", search.ModeExact, time.Millisecond, 1, false)
	m.RecordQuery("budget forecast", search.ModeExact, time.Millisecond, 1, false)
	m.RecordQuery("vacation plans", search.ModeExact, time.Millisecond, 1, false)

	snap := m.Snapshot()
	require.NotEmpty(t, snap.TopTerms)
	assert.Equal(t, "budget", snap.TopTerms[0].Term)
	assert.Equal(t, int64(2), snap.TopTerms[0].Count)
}

func TestExactRepeatIgnoresCaseAndSpace(t *testing.T) {
	m := New(nil)
	defer m.Close()

	m.RecordQuery("Tax Receipts", search.ModeExact, time.Millisecond, 1, false)
	m.RecordQuery("  tax receipts ", search.ModeExact, time.Millisecond, 1, true)

	assert.Equal(t, int64(1), m.Snapshot().ExactRepeatCount)
}

func TestRecordAfterCloseIsNoop(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.Close())

	m.RecordQuery("late query", search.ModeExact, time.Millisecond, 1, false)
	assert.Equal(t, int64(0), m.Snapshot().TotalQueries)
}

func TestFlushPersistsAndResets(t *testing.T) {
	store := openTestStore(t)
	m := NewWithConfig(store, Config{FlushInterval: 0})

	m.RecordQuery("quarterly budget", search.ModeExact, 5*time.Millisecond, 2, false)
	m.RecordQuery("nothing here", search.ModeHybrid, 30*time.Millisecond, 0, false)
	require.NoError(t, m.Flush())

	snap := m.Snapshot()
	assert.Empty(t, snap.ModeCounts)
	assert.Empty(t, snap.TopTerms)
	assert.Empty(t, snap.ZeroResultQueries)
	assert.Equal(t, int64(2), snap.TotalQueries)

	date := time.Now().UTC().Format("2006-01-02")
	modes, err := store.GetModeCounts(date, date)
	require.NoError(t, err)
	assert.Equal(t, int64(1), modes[search.ModeExact])
	assert.Equal(t, int64(1), modes[search.ModeHybrid])

	terms, err := store.GetTopTerms(10)
	require.NoError(t, err)
	require.NotEmpty(t, terms)

	zero, err := store.GetZeroResultQueries(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"nothing here"}, zero)

	require.NoError(t, m.Close())
}

func TestCloseFlushesOnce(t *testing.T) {
	store := openTestStore(t)
	m := NewWithConfig(store, Config{FlushInterval: time.Hour})

	m.RecordQuery("standup notes", search.ModeExact, time.Millisecond, 1, false)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	date := time.Now().UTC().Format("2006-01-02")
	modes, err := store.GetModeCounts(date, date)
	require.NoError(t, err)
	assert.Equal(t, int64(1), modes[search.ModeExact])
}
