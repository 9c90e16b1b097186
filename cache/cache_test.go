package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/chunkit/core"
	"github.com/poiesic/chunkit/storage/badger"
)

func testEntry(documentID string, key core.Fingerprint) *core.CacheEntry {
	return &core.CacheEntry{
		Key:        key,
		DocumentID: documentID,
		Strategy:   core.StrategySimple,
		Chunks: []*core.Chunk{{
			ID:         core.ChunkID(documentID, 0),
			DocumentID: documentID,
			Index:      0,
			Total:      1,
			Content:    "cached chunk body",
			Kind:       core.ContentText,
			Range:      core.SourceRange{Start: 0, End: 17},
		}},
		Assessments: []core.AssessmentSummary{{
			Coherence: 0.7, Density: 0.6, Completeness: 0.8,
			Integrity: 0.9, Length: 0.5, Overall: 0.7, Passed: true,
		}},
	}
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	store, err := badger.NewMemoryCacheStore()
	require.NoError(t, err)
	c, err := New(DefaultConfig(), WithL2(store))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCachePutGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, testEntry("doc1", 1))

	got := c.Get(ctx, 1)
	require.NotNil(t, got)
	assert.Equal(t, "doc1", got.DocumentID)
	assert.Equal(t, core.TierL1, got.Tier)

	stats := c.Stats(ctx)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.L1Hits)
	assert.Equal(t, uint64(1), stats.Puts)
}

func TestCacheMiss(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	assert.Nil(t, c.Get(ctx, 99))

	stats := c.Stats(ctx)
	assert.Equal(t, uint64(0), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, float64(0), stats.HitRate)
}

func TestCacheL2Promotion(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, testEntry("doc1", 1))
	// Drop the L1 copy so the next read must come from L2.
	c.l1.Remove(1)

	got := c.Get(ctx, 1)
	require.NotNil(t, got)
	assert.Equal(t, core.TierL1, got.Tier)

	stats := c.Stats(ctx)
	assert.Equal(t, uint64(1), stats.L2Hits)
	assert.Equal(t, uint64(0), stats.L1Hits)
	assert.Equal(t, 1, stats.L1Size)

	// Promoted entries serve from L1 next time.
	require.NotNil(t, c.Get(ctx, 1))
	assert.Equal(t, uint64(1), c.Stats(ctx).L1Hits)
}

func TestCacheL1Only(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	c.Put(ctx, testEntry("doc1", 1))
	require.NotNil(t, c.Get(ctx, 1))
	assert.Nil(t, c.Get(ctx, 2))
}

func TestCacheInvalidate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, testEntry("doc1", 1))
	c.Invalidate(ctx, 1)
	assert.Nil(t, c.Get(ctx, 1))
}

func TestCacheInvalidateDocument(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, testEntry("doc1", 1))
	c.Put(ctx, testEntry("doc1", 2))
	c.Put(ctx, testEntry("doc2", 3))

	removed := c.InvalidateDocument(ctx, "doc1")
	assert.Equal(t, 2, removed)
	assert.Nil(t, c.Get(ctx, 1))
	assert.Nil(t, c.Get(ctx, 2))
	assert.NotNil(t, c.Get(ctx, 3))
}

func TestCacheExpiredEntryIsMiss(t *testing.T) {
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	entry := testEntry("doc1", 1)
	c.Put(ctx, entry)
	// Force the stored entry past its lifetime.
	entry.TTL = time.Nanosecond
	entry.InsertedAt = time.Now().Add(-time.Minute)

	assert.Nil(t, c.Get(ctx, 1))
	assert.Equal(t, uint64(1), c.Stats(ctx).Misses)
}

func TestCacheL1Eviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.L1Capacity = 2
	store, err := badger.NewMemoryCacheStore()
	require.NoError(t, err)
	c, err := New(cfg, WithL2(store))
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	c.Put(ctx, testEntry("doc1", 1))
	c.Put(ctx, testEntry("doc2", 2))
	c.Put(ctx, testEntry("doc3", 3))

	assert.Equal(t, 2, c.Stats(ctx).L1Size)
	// The evicted entry is still served from L2.
	require.NotNil(t, c.Get(ctx, 1))
}

func TestCacheHotDocuments(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, testEntry("doc1", 1))
	c.Put(ctx, testEntry("doc2", 2))
	for i := 0; i < 3; i++ {
		c.Get(ctx, 1)
	}
	c.Get(ctx, 2)

	hot := c.HotDocuments(1)
	require.Len(t, hot, 1)
	assert.Equal(t, "doc1", hot[0])
}

func TestTTLPolicy(t *testing.T) {
	p := ttlPolicy{base: 15 * time.Minute, min: time.Minute, max: time.Hour}

	assert.Equal(t, 15*time.Minute, p.forInterval(0))
	assert.Equal(t, time.Minute, p.forInterval(time.Second))
	assert.Equal(t, time.Hour, p.forInterval(3*time.Hour))
	assert.Equal(t, 12*time.Minute, p.forInterval(10*time.Minute))
}

func TestAnalyzerMeanInterval(t *testing.T) {
	a := newAccessAnalyzer(8, 10*time.Second)
	base := time.Now()
	for i := 0; i < 4; i++ {
		a.Record(1, "doc1", base.Add(time.Duration(i)*time.Minute))
	}
	assert.Equal(t, time.Minute, a.MeanInterval(1))
	assert.Equal(t, time.Duration(0), a.MeanInterval(2))
}

func TestAnalyzerRelated(t *testing.T) {
	a := newAccessAnalyzer(8, 10*time.Second)
	base := time.Now()

	// doc2 repeatedly follows key 1 within the window.
	a.Record(1, "doc1", base)
	a.Record(2, "doc2", base.Add(time.Second))
	a.Record(1, "doc1", base.Add(time.Minute))
	a.Record(2, "doc2", base.Add(time.Minute+time.Second))

	related := a.Related(1)
	require.Len(t, related, 1)
	assert.Equal(t, "doc2", related[0])

	// Accesses outside the window build no association.
	a.Record(3, "doc3", base.Add(time.Hour))
	a.Record(4, "doc4", base.Add(2*time.Hour))
	assert.Empty(t, a.Related(3))
}
