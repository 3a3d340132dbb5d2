// Package telemetry collects local query statistics used to tune search:
// mode distribution, latency histogram, cache hit rate, repeated and
// zero-result queries. Nothing leaves the local database.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ashishacharya123/PKMS-sub000/internal/search"
)

// LatencyBucket is one histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer holding at most capacity items.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffer contents oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}
	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current item count.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// ExtractTerms lowercases a query and keeps words of three or more
// characters, the ones worth counting.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an immutable view of the collected metrics.
type Snapshot struct {
	ModeCounts          map[search.Mode]int64   `json:"mode_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	CacheHitCount       int64                   `json:"cache_hit_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage is the share of queries that found nothing.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// CacheHitRate is the share of queries answered from cache.
func (s *Snapshot) CacheHitRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.CacheHitCount) / float64(s.TotalQueries)
}

// MetricsStore persists aggregated metrics between runs.
type MetricsStore interface {
	SaveModeCounts(date string, counts map[search.Mode]int64) error
	GetModeCounts(from, to string) (map[search.Mode]int64, error)
	UpsertTermCounts(terms map[string]int64) error
	GetTopTerms(limit int) ([]TermCount, error)
	AddZeroResultQuery(query string, timestamp time.Time) error
	GetZeroResultQueries(limit int) ([]string, error)
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)
	Close() error
}

// Config tunes the in-memory collector.
type Config struct {
	TopTermsCapacity    int
	ZeroResultsCapacity int
	RecentQueries       int
	// FlushInterval is how often aggregates are written to the store.
	// Zero disables the background flush.
	FlushInterval time.Duration
}

// DefaultConfig returns the collector defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:    100,
		ZeroResultsCapacity: 100,
		RecentQueries:       500,
		FlushInterval:       time.Minute,
	}
}

// QueryMetrics collects query telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.RWMutex

	modes           map[search.Mode]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	totalQueries    int64
	zeroResultCount int64
	cacheHits       int64
	startTime       time.Time

	recentQueries    *lru.Cache[string, struct{}]
	exactRepeatCount int64

	store  MetricsStore
	config Config
	stopCh chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// New creates a collector with default configuration. A nil store keeps
// metrics in memory only.
func New(store MetricsStore) *QueryMetrics {
	return NewWithConfig(store, DefaultConfig())
}

// NewWithConfig creates a collector with explicit configuration.
func NewWithConfig(store MetricsStore, cfg Config) *QueryMetrics {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 100
	}
	if cfg.RecentQueries <= 0 {
		cfg.RecentQueries = 500
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueries)

	m := &QueryMetrics{
		modes:         make(map[search.Mode]int64),
		topTerms:      topTerms,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:     make(map[LatencyBucket]int64),
		startTime:     time.Now(),
		recentQueries: recent,
		store:         store,
		config:        cfg,
		stopCh:        make(chan struct{}),
	}

	if store != nil && cfg.FlushInterval > 0 {
		m.wg.Add(1)
		go m.flushLoop()
	}
	return m
}

// RecordQuery ingests one completed query.
func (m *QueryMetrics) RecordQuery(queryText string, mode search.Mode, took time.Duration, resultCount int, cacheHit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.totalQueries++
	m.modes[mode]++
	m.latencies[LatencyToBucket(took)]++
	if cacheHit {
		m.cacheHits++
	}

	hash := queryHash(queryText)
	if _, seen := m.recentQueries.Get(hash); seen {
		m.exactRepeatCount++
	}
	m.recentQueries.Add(hash, struct{}{})

	for _, term := range ExtractTerms(queryText) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}

	if resultCount == 0 {
		m.zeroResultCount++
		m.zeroResults.Add(queryText)
	}
}

// Snapshot returns a copy of the current aggregates.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	modes := make(map[search.Mode]int64, len(m.modes))
	for k, v := range m.modes {
		modes[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	terms := make([]TermCount, 0, m.topTerms.Len())
	for _, term := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(term); ok {
			terms = append(terms, TermCount{Term: term, Count: count})
		}
	}
	sortTermCounts(terms)

	return &Snapshot{
		ModeCounts:          modes,
		TopTerms:            terms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		CacheHitCount:       m.cacheHits,
		ExactRepeatCount:    m.exactRepeatCount,
		Since:               m.startTime,
	}
}

// Flush writes the current aggregates to the store and resets the daily
// counters. Safe to call with no store configured.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	modes := m.modes
	latencies := m.latencies
	terms := make(map[string]int64, m.topTerms.Len())
	for _, term := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(term); ok {
			terms[term] = count
		}
	}
	zero := m.zeroResults.Items()
	m.modes = make(map[search.Mode]int64)
	m.latencies = make(map[LatencyBucket]int64)
	m.topTerms.Purge()
	m.zeroResults = NewCircularBuffer[string](m.config.ZeroResultsCapacity)
	m.mu.Unlock()

	date := time.Now().UTC().Format("2006-01-02")
	if err := m.store.SaveModeCounts(date, modes); err != nil {
		return err
	}
	if err := m.store.SaveLatencyCounts(date, latencies); err != nil {
		return err
	}
	if err := m.store.UpsertTermCounts(terms); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, q := range zero {
		if err := m.store.AddZeroResultQuery(q, now); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the flush loop and performs a final flush.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()
	return m.Flush()
}

func (m *QueryMetrics) flushLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

func queryHash(q string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(q))))
	return hex.EncodeToString(sum[:8])
}

func sortTermCounts(terms []TermCount) {
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
}

var _ search.MetricsRecorder = (*QueryMetrics)(nil)
