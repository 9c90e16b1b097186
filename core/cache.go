package core

import "time"

// CacheTier identifies which cache level an entry currently lives in.
type CacheTier int

const (
	TierL1 CacheTier = iota + 1 // in-process, LRU-bounded
	TierL2                      // persistent, larger, slower
)

func (t CacheTier) String() string {
	switch t {
	case TierL1:
		return "l1"
	case TierL2:
		return "l2"
	default:
		return "unknown"
	}
}

// AssessmentSummary is the compact, serializable form of a chunk's
// quality assessment. Recommendations are not stored; they are
// rederived from the metrics on demand.
type AssessmentSummary struct {
	Coherence    float64
	Density      float64
	Completeness float64
	Integrity    float64
	Length       float64
	Overall      float64
	Passed       bool
}

// CacheEntry is one cached chunking result, keyed by the content and
// configuration fingerprint.
type CacheEntry struct {
	Key         Fingerprint
	DocumentID  string
	Strategy    Strategy
	Chunks      []*Chunk
	Assessments []AssessmentSummary

	InsertedAt   time.Time
	LastAccessed time.Time
	TTL          time.Duration
	Tier         CacheTier
	AccessCount  uint64
}

// Expired reports whether the entry's TTL has elapsed relative to now.
// A zero TTL never expires.
func (e *CacheEntry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.InsertedAt) > e.TTL
}
