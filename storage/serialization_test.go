package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/chunkit/core"
)

func TestCacheEntryRoundTrip(t *testing.T) {
	entry := &core.CacheEntry{
		Key:        core.Fingerprint(0xDEADBEEF),
		DocumentID: "doc-42",
		Strategy:   core.StrategyHybrid,
		Chunks: []*core.Chunk{
			{
				ID:           core.ChunkID("doc-42", 0),
				DocumentID:   "doc-42",
				Index:        0,
				Total:        2,
				Content:      "first chunk with unicode: héllo, 世界",
				Kind:         core.ContentText,
				SectionPath:  []string{"Doc", "Intro"},
				SectionLevel: 1,
				Range:        core.SourceRange{Start: 0, End: 40},
				Keywords:     []string{"chunk", "unicode"},
				Importance:   0.8,
				NextID:       core.ChunkID("doc-42", 1),
				QualityScore: 0.72,
				QualityPassed: true,
				CreatedAt:    time.Now().UTC(),
			},
			{
				ID:         core.ChunkID("doc-42", 1),
				DocumentID: "doc-42",
				Index:      1,
				Total:      2,
				Content:    "overlap second chunk",
				Overlap:    8,
				Kind:       core.ContentCode,
				Language:   "go",
				Range:      core.SourceRange{Start: 40, End: 52},
				PrevID:     core.ChunkID("doc-42", 0),
			},
		},
		Assessments: []core.AssessmentSummary{
			{Coherence: 0.7, Density: 0.5, Completeness: 0.9, Integrity: 0.8, Length: 0.6, Overall: 0.71, Passed: true},
			{Overall: 0.4},
		},
		InsertedAt:   time.Now().UTC(),
		LastAccessed: time.Now().UTC().Add(time.Minute),
		TTL:          15 * time.Minute,
		Tier:         core.TierL2,
		AccessCount:  9,
	}

	data := MarshalCacheEntry(entry)
	got, err := UnmarshalCacheEntry(data)
	require.NoError(t, err)

	assert.Equal(t, entry.Key, got.Key)
	assert.Equal(t, entry.DocumentID, got.DocumentID)
	assert.Equal(t, entry.Strategy, got.Strategy)
	assert.Equal(t, entry.TTL, got.TTL)
	assert.Equal(t, entry.Tier, got.Tier)
	assert.Equal(t, entry.AccessCount, got.AccessCount)
	assert.Equal(t, entry.Assessments, got.Assessments)
	require.Len(t, got.Chunks, 2)
	for i := range entry.Chunks {
		assert.Equal(t, *entry.Chunks[i], *got.Chunks[i], "chunk %d", i)
	}
}

func TestCacheEntryEmpty(t *testing.T) {
	entry := &core.CacheEntry{Key: 1, DocumentID: "empty"}

	got, err := UnmarshalCacheEntry(MarshalCacheEntry(entry))
	require.NoError(t, err)
	assert.Equal(t, entry.Key, got.Key)
	assert.Empty(t, got.Chunks)
	assert.Empty(t, got.Assessments)
	assert.True(t, got.InsertedAt.IsZero())
}

func TestUnmarshalTruncated(t *testing.T) {
	entry := &core.CacheEntry{
		Key:        7,
		DocumentID: "doc",
		Chunks:     []*core.Chunk{{ID: "doc_chunk_0000", Content: "content"}},
	}
	data := MarshalCacheEntry(entry)

	_, err := UnmarshalCacheEntry(data[:len(data)/2])
	assert.ErrorIs(t, err, ErrTruncatedData)

	_, err = UnmarshalCacheEntry(nil)
	assert.ErrorIs(t, err, ErrTruncatedData)
}

func TestFingerprintRoundTrip(t *testing.T) {
	for _, f := range []core.Fingerprint{0, 1, 0xFFFFFFFFFFFFFFFF, 12345678} {
		got, err := UnmarshalFingerprint(MarshalFingerprint(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
}
