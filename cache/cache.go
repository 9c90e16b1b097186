// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/poiesic/chunkit/core"
	"github.com/poiesic/chunkit/storage"
)

// Config holds the cache tuning knobs.
type Config struct {
	// L1Capacity bounds the in-process tier, in entries.
	L1Capacity int

	// TTL bounds for the adaptive policy.
	BaseTTL time.Duration
	MinTTL  time.Duration
	MaxTTL  time.Duration

	// AccessHistory bounds the per-key access ring.
	AccessHistory int

	// CoAccessWindow is how soon after one lookup a second lookup
	// counts as related, for predictive warm-up.
	CoAccessWindow time.Duration
}

// DefaultConfig returns the cache configuration used when the caller
// does not supply one.
func DefaultConfig() Config {
	return Config{
		L1Capacity:     256,
		BaseTTL:        15 * time.Minute,
		MinTTL:         time.Minute,
		MaxTTL:         2 * time.Hour,
		AccessHistory:  32,
		CoAccessWindow: 10 * time.Second,
	}
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	L1Hits  uint64  `json:"l1_hits"`
	L2Hits  uint64  `json:"l2_hits"`
	L1Size  int     `json:"l1_size"`
	L2Size  int     `json:"l2_size"`
	Puts    uint64  `json:"puts"`
	Errors  uint64  `json:"errors"`
}

// WarmFunc is invoked asynchronously with keys predicted to be needed
// soon. Implementations schedule recomputation at low priority; the
// cache never waits on them.
type WarmFunc func(documentID string)

// Cache is the two-tier chunking result cache. The L1 tier is a
// bounded in-process LRU; the L2 tier is a persistent store. The cache
// is an accelerator only: every failure path degrades to a miss.
type Cache struct {
	config   Config
	l1       *lru.Cache[core.Fingerprint, *core.CacheEntry]
	l2       storage.CacheStore
	analyzer *accessAnalyzer
	ttl      ttlPolicy
	logger   *slog.Logger

	mu     sync.Mutex
	warm   WarmFunc
	hits   uint64
	misses uint64
	l1Hits uint64
	l2Hits uint64
	puts   uint64
	errs   uint64
}

// Option configures a Cache.
type Option func(*Cache) error

// WithLogger sets the logger for degraded-path diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) error {
		c.logger = logger
		return nil
	}
}

// WithL2 attaches a persistent second tier. Without it the cache runs
// L1-only.
func WithL2(store storage.CacheStore) Option {
	return func(c *Cache) error {
		c.l2 = store
		return nil
	}
}

// WithWarmFunc registers the advisory warm-up callback.
func WithWarmFunc(fn WarmFunc) Option {
	return func(c *Cache) error {
		c.warm = fn
		return nil
	}
}

// New creates a cache.
func New(cfg Config, opts ...Option) (*Cache, error) {
	if cfg.L1Capacity <= 0 {
		cfg.L1Capacity = DefaultConfig().L1Capacity
	}
	if cfg.BaseTTL <= 0 {
		cfg.BaseTTL = DefaultConfig().BaseTTL
	}
	if cfg.MinTTL <= 0 {
		cfg.MinTTL = DefaultConfig().MinTTL
	}
	if cfg.MaxTTL < cfg.MinTTL {
		cfg.MaxTTL = DefaultConfig().MaxTTL
	}
	if cfg.AccessHistory <= 0 {
		cfg.AccessHistory = DefaultConfig().AccessHistory
	}

	l1, err := lru.New[core.Fingerprint, *core.CacheEntry](cfg.L1Capacity)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		config:   cfg,
		l1:       l1,
		analyzer: newAccessAnalyzer(cfg.AccessHistory, cfg.CoAccessWindow),
		ttl:      ttlPolicy{base: cfg.BaseTTL, min: cfg.MinTTL, max: cfg.MaxTTL},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Get returns the cached entry for a fingerprint, or nil on a miss.
// An L2 hit is promoted into L1. L2 errors are logged and reported as
// a miss; they never propagate.
func (c *Cache) Get(ctx context.Context, key core.Fingerprint) *core.CacheEntry {
	now := time.Now().UTC()

	if entry, ok := c.l1.Get(key); ok {
		if entry.Expired(now) {
			c.l1.Remove(key)
		} else {
			c.mu.Lock()
			entry.AccessCount++
			entry.LastAccessed = now
			c.mu.Unlock()
			c.recordHit(key, entry.DocumentID, true)
			return entry
		}
	}

	if c.l2 == nil {
		c.recordMiss(key)
		return nil
	}

	entry, err := c.l2.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.countError()
			c.logger.Warn("cache read degraded to miss", "key", key,
			"error", fmt.Errorf("%w: %w", core.ErrCacheUnavailable, err))
		}
		c.recordMiss(key)
		return nil
	}
	if entry.Expired(now) {
		_ = c.l2.Delete(ctx, key)
		c.recordMiss(key)
		return nil
	}

	// Promote into L1. The LRU demotes its own victim if full.
	entry.Tier = core.TierL1
	entry.AccessCount++
	entry.LastAccessed = now
	c.l1.Add(key, entry)
	if err := c.l2.Touch(ctx, key); err != nil {
		c.countError()
	}

	c.recordHit(key, entry.DocumentID, false)
	return entry
}

// Put stores a freshly computed entry in both tiers. The TTL is chosen
// adaptively from the key's observed access pattern. Storage errors are
// absorbed: a failed put simply means a future miss.
func (c *Cache) Put(ctx context.Context, entry *core.CacheEntry) {
	now := time.Now().UTC()
	entry.InsertedAt = now
	entry.LastAccessed = now
	entry.TTL = c.ttl.forInterval(c.analyzer.MeanInterval(entry.Key))

	entry.Tier = core.TierL1
	c.l1.Add(entry.Key, entry)

	if c.l2 != nil {
		l2Entry := *entry
		l2Entry.Tier = core.TierL2
		if err := c.l2.Put(ctx, &l2Entry); err != nil {
			c.countError()
			c.logger.Warn("cache write skipped", "key", entry.Key,
			"error", fmt.Errorf("%w: %w", core.ErrCacheUnavailable, err))
		}
	}

	c.mu.Lock()
	c.puts++
	c.mu.Unlock()
}

// Invalidate removes one entry from both tiers.
func (c *Cache) Invalidate(ctx context.Context, key core.Fingerprint) {
	c.l1.Remove(key)
	if c.l2 != nil {
		if err := c.l2.Delete(ctx, key); err != nil {
			c.countError()
			c.logger.Warn("cache invalidate incomplete", "key", key, "error", err)
		}
	}
}

// InvalidateDocument removes every cached entry for a document, across
// all configurations, from both tiers.
func (c *Cache) InvalidateDocument(ctx context.Context, documentID string) int {
	removed := 0
	for _, key := range c.l1.Keys() {
		if entry, ok := c.l1.Peek(key); ok && entry.DocumentID == documentID {
			c.l1.Remove(key)
			removed++
		}
	}
	if c.l2 != nil {
		n, err := c.l2.DeleteByDocument(ctx, documentID)
		if err != nil {
			c.countError()
			c.logger.Warn("cache document invalidate incomplete", "document_id", documentID, "error", err)
		} else if n > removed {
			removed = n
		}
	}
	return removed
}

// Stats returns a snapshot of cache effectiveness. L2 size reads go to
// the store; a failing store reports zero rather than an error.
func (c *Cache) Stats(ctx context.Context) Stats {
	c.mu.Lock()
	s := Stats{
		Hits:   c.hits,
		Misses: c.misses,
		L1Hits: c.l1Hits,
		L2Hits: c.l2Hits,
		Puts:   c.puts,
		Errors: c.errs,
	}
	c.mu.Unlock()

	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	s.L1Size = c.l1.Len()
	if c.l2 != nil {
		if n, err := c.l2.Len(ctx); err == nil {
			s.L2Size = n
		}
	}
	return s
}

// HotDocuments returns the most frequently accessed document IDs in
// the analyzer's horizon, most active first.
func (c *Cache) HotDocuments(limit int) []string {
	return c.analyzer.HotDocuments(limit)
}

// Close releases the L2 store when one is attached.
func (c *Cache) Close() error {
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}

func (c *Cache) recordHit(key core.Fingerprint, documentID string, l1 bool) {
	c.mu.Lock()
	c.hits++
	if l1 {
		c.l1Hits++
	} else {
		c.l2Hits++
	}
	c.mu.Unlock()
	c.analyzer.Record(key, documentID, time.Now())
}

func (c *Cache) recordMiss(key core.Fingerprint) {
	c.mu.Lock()
	c.misses++
	warm := c.warm
	c.mu.Unlock()

	c.analyzer.RecordMiss(key, time.Now())

	// Advisory warm-up: schedule related documents in the background.
	if warm != nil {
		for _, doc := range c.analyzer.Related(key) {
			go warm(doc)
		}
	}
}

func (c *Cache) countError() {
	c.mu.Lock()
	c.errs++
	c.mu.Unlock()
}
