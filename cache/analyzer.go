package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/poiesic/chunkit/core"
)

// maxTrackedKeys bounds the analyzer's memory. When exceeded, the
// least recently seen key is dropped.
const maxTrackedKeys = 4096

// accessRing is a fixed-capacity ring of access timestamps for one key.
type accessRing struct {
	times      []time.Time
	next       int
	full       bool
	documentID string
	lastSeen   time.Time
}

func (r *accessRing) record(at time.Time) {
	if r.next == len(r.times) {
		r.next = 0
		r.full = true
	}
	r.times[r.next] = at
	r.next++
	r.lastSeen = at
}

func (r *accessRing) count() int {
	if r.full {
		return len(r.times)
	}
	return r.next
}

// meanInterval returns the average spacing between recorded accesses,
// or zero when fewer than two are known.
func (r *accessRing) meanInterval() time.Duration {
	n := r.count()
	if n < 2 {
		return 0
	}
	ordered := make([]time.Time, 0, n)
	start := 0
	if r.full {
		start = r.next
	}
	for i := 0; i < n; i++ {
		ordered = append(ordered, r.times[(start+i)%len(r.times)])
	}
	return ordered[n-1].Sub(ordered[0]) / time.Duration(n-1)
}

// accessAnalyzer tracks per-key access history and key-to-key
// co-access so the cache can pick TTLs and warm related documents.
type accessAnalyzer struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	rings    map[core.Fingerprint]*accessRing

	lastKey  core.Fingerprint
	lastAt   time.Time
	lastSet  bool
	coAccess map[core.Fingerprint]map[string]int
}

func newAccessAnalyzer(capacity int, window time.Duration) *accessAnalyzer {
	return &accessAnalyzer{
		capacity: capacity,
		window:   window,
		rings:    make(map[core.Fingerprint]*accessRing),
		coAccess: make(map[core.Fingerprint]map[string]int),
	}
}

// Record notes a successful lookup for a key.
func (a *accessAnalyzer) Record(key core.Fingerprint, documentID string, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ring, ok := a.rings[key]
	if !ok {
		a.evictIfFullLocked()
		ring = &accessRing{times: make([]time.Time, a.capacity)}
		a.rings[key] = ring
	}
	ring.documentID = documentID
	ring.record(at)

	a.noteSequenceLocked(key, documentID, at)
}

// RecordMiss notes a lookup that found nothing. Misses participate in
// co-access sequencing but carry no document identity.
func (a *accessAnalyzer) RecordMiss(key core.Fingerprint, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.noteSequenceLocked(key, "", at)
}

// MeanInterval returns the observed average access interval for a key,
// or zero when the key has no usable history.
func (a *accessAnalyzer) MeanInterval(key core.Fingerprint) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ring, ok := a.rings[key]; ok {
		return ring.meanInterval()
	}
	return 0
}

// HotDocuments returns document IDs ranked by access count, most
// active first, at most limit entries.
func (a *accessAnalyzer) HotDocuments(limit int) []string {
	a.mu.Lock()
	counts := make(map[string]int)
	for _, ring := range a.rings {
		if ring.documentID != "" {
			counts[ring.documentID] += ring.count()
		}
	}
	a.mu.Unlock()

	docs := make([]string, 0, len(counts))
	for doc := range counts {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if counts[docs[i]] != counts[docs[j]] {
			return counts[docs[i]] > counts[docs[j]]
		}
		return docs[i] < docs[j]
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs
}

// Related returns document IDs historically accessed shortly after the
// given key, strongest association first.
func (a *accessAnalyzer) Related(key core.Fingerprint) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	counts := a.coAccess[key]
	if len(counts) == 0 {
		return nil
	}
	docs := make([]string, 0, len(counts))
	for doc := range counts {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if counts[docs[i]] != counts[docs[j]] {
			return counts[docs[i]] > counts[docs[j]]
		}
		return docs[i] < docs[j]
	})
	return docs
}

// noteSequenceLocked updates co-access association: if this lookup
// follows the previous one within the window, the previous key learns
// that this document tends to follow it.
func (a *accessAnalyzer) noteSequenceLocked(key core.Fingerprint, documentID string, at time.Time) {
	if a.lastSet && a.lastKey != key && documentID != "" && at.Sub(a.lastAt) <= a.window {
		m, ok := a.coAccess[a.lastKey]
		if !ok {
			m = make(map[string]int)
			a.coAccess[a.lastKey] = m
		}
		m[documentID]++
	}
	a.lastKey = key
	a.lastAt = at
	a.lastSet = true
}

func (a *accessAnalyzer) evictIfFullLocked() {
	if len(a.rings) < maxTrackedKeys {
		return
	}
	var oldest core.Fingerprint
	var oldestAt time.Time
	first := true
	for key, ring := range a.rings {
		if first || ring.lastSeen.Before(oldestAt) {
			oldest = key
			oldestAt = ring.lastSeen
			first = false
		}
	}
	delete(a.rings, oldest)
	delete(a.coAccess, oldest)
}
