package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/chunkit/core"
	"github.com/poiesic/chunkit/storage"
)

func testEntry(documentID string, key core.Fingerprint) *core.CacheEntry {
	return &core.CacheEntry{
		Key:        key,
		DocumentID: documentID,
		Strategy:   core.StrategyStructural,
		Chunks: []*core.Chunk{{
			ID:         core.ChunkID(documentID, 0),
			DocumentID: documentID,
			Index:      0,
			Total:      1,
			Content:    "some chunk content",
			Kind:       core.ContentText,
			Range:      core.SourceRange{Start: 0, End: 18},
		}},
		Assessments: []core.AssessmentSummary{{
			Coherence: 0.7, Density: 0.6, Completeness: 0.8,
			Integrity: 0.9, Length: 0.4, Overall: 0.71, Passed: true,
		}},
		InsertedAt: time.Now().UTC().Truncate(time.Nanosecond),
		Tier:       core.TierL2,
	}
}

func TestCacheStorePutGet(t *testing.T) {
	store, err := NewMemoryCacheStore()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	entry := testEntry("doc1", 42)
	require.NoError(t, store.Put(ctx, entry))

	got, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, entry.Key, got.Key)
	assert.Equal(t, entry.DocumentID, got.DocumentID)
	assert.Equal(t, entry.Strategy, got.Strategy)
	require.Len(t, got.Chunks, 1)
	assert.Equal(t, entry.Chunks[0].Content, got.Chunks[0].Content)
	require.Len(t, got.Assessments, 1)
	assert.Equal(t, entry.Assessments[0], got.Assessments[0])
}

func TestCacheStoreGetMissing(t *testing.T) {
	store, err := NewMemoryCacheStore()
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(context.Background(), 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCacheStoreDelete(t *testing.T) {
	store, err := NewMemoryCacheStore()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, testEntry("doc1", 7)))
	require.NoError(t, store.Delete(ctx, 7))

	_, err = store.Get(ctx, 7)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, store.Delete(ctx, 7))
}

func TestCacheStoreDeleteByDocument(t *testing.T) {
	store, err := NewMemoryCacheStore()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, testEntry("doc1", 1)))
	require.NoError(t, store.Put(ctx, testEntry("doc1", 2)))
	require.NoError(t, store.Put(ctx, testEntry("doc2", 3)))

	removed, err := store.DeleteByDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = store.Get(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.Get(ctx, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := store.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "doc2", got.DocumentID)
}

func TestCacheStoreTouch(t *testing.T) {
	store, err := NewMemoryCacheStore()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, testEntry("doc1", 11)))
	require.NoError(t, store.Touch(ctx, 11))
	require.NoError(t, store.Touch(ctx, 11))

	got, err := store.Get(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.AccessCount)
	assert.False(t, got.LastAccessed.IsZero())

	// Touching a missing key is a no-op.
	assert.NoError(t, store.Touch(ctx, 404))
}

func TestCacheStoreLen(t *testing.T) {
	store, err := NewMemoryCacheStore()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, store.Put(ctx, testEntry("doc1", 1)))
	require.NoError(t, store.Put(ctx, testEntry("doc2", 2)))

	n, err = store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCacheStoreClosed(t *testing.T) {
	store, err := NewMemoryCacheStore()
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.Get(context.Background(), 1)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, store.Put(context.Background(), testEntry("doc1", 1)), storage.ErrStorageClosed)
}
