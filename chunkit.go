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


package chunkit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/chunkit/ai"
	"github.com/poiesic/chunkit/cache"
	"github.com/poiesic/chunkit/chunker"
	"github.com/poiesic/chunkit/core"
	"github.com/poiesic/chunkit/governor"
	"github.com/poiesic/chunkit/quality"
	"github.com/poiesic/chunkit/scheduler"
	"github.com/poiesic/chunkit/storage/badger"
)

// DocumentSource resolves a document ID back to its title and content.
// The predictive cache warmer uses it to recompute related documents;
// without one, warming is disabled.
type DocumentSource func(ctx context.Context, documentID string) (title, content string, err error)

// Service wires the chunking pipeline together: scheduler admission,
// cache lookup, parse, chunk, assess, cache fill. It is safe for
// concurrent use.
type Service struct {
	config    *core.ChunkingConfig
	chunker   *chunker.Chunker
	assessor  *quality.Assessor
	cache     *cache.Cache
	governor  *governor.Governor
	scheduler *scheduler.Scheduler
	embedder  ai.Embedder
	logger    *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	cachePath       string
	cacheConfig     cache.Config
	schedulerConfig scheduler.Config
	governorConfig  governor.Config
	source          DocumentSource
	embedder        ai.Embedder
	logger          *slog.Logger
}

// WithCachePath persists the L2 cache tier at the given path. Without
// it the cache runs in-process only.
func WithCachePath(path string) ServiceOption {
	return func(o *serviceOptions) {
		o.cachePath = path
	}
}

// WithCacheConfig overrides the cache tuning defaults.
func WithCacheConfig(cfg cache.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.cacheConfig = cfg
	}
}

// WithSchedulerConfig overrides the scheduler bounds.
func WithSchedulerConfig(cfg scheduler.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.schedulerConfig = cfg
	}
}

// WithGovernorConfig overrides the governor thresholds.
func WithGovernorConfig(cfg governor.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.governorConfig = cfg
	}
}

// WithDocumentSource enables predictive cache warming by letting the
// service fetch content for related documents.
func WithDocumentSource(source DocumentSource) ServiceOption {
	return func(o *serviceOptions) {
		o.source = source
	}
}

// WithEmbedder attaches a vector to every produced chunk by embedding
// its body after assessment. Embedding failures fail the task; callers
// who attach an embedder are asking for vectors, not best effort.
func WithEmbedder(embedder ai.Embedder) ServiceOption {
	return func(o *serviceOptions) {
		o.embedder = embedder
	}
}

// WithServiceLogger sets the logger shared across components.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService assembles a chunking service. A nil config uses defaults.
func NewService(cfg *core.ChunkingConfig, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}

	options := &serviceOptions{
		cacheConfig:     cache.DefaultConfig(),
		schedulerConfig: scheduler.DefaultConfig(),
		governorConfig:  governor.DefaultConfig(),
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	ck, err := chunker.New(cfg, chunker.WithLogger(options.logger))
	if err != nil {
		return nil, err
	}

	s := &Service{
		config:   cfg,
		chunker:  ck,
		assessor: quality.NewAssessor(cfg),
		embedder: options.embedder,
		logger:   options.logger,
	}

	cacheOpts := []cache.Option{cache.WithLogger(options.logger)}
	if options.cachePath != "" {
		store, err := badger.NewCacheStore(options.cachePath)
		if err != nil {
			// The persistent tier is an accelerator. When it cannot
			// open, the service degrades to the in-process tier
			// rather than refusing to chunk.
			options.logger.Warn("persistent cache tier disabled",
				"path", options.cachePath,
				"err", fmt.Errorf("%w: %w", core.ErrCacheUnavailable, err))
		} else {
			cacheOpts = append(cacheOpts, cache.WithL2(store))
		}
	}
	if options.source != nil {
		cacheOpts = append(cacheOpts, cache.WithWarmFunc(s.warm(options.source)))
	}
	s.cache, err = cache.New(options.cacheConfig, cacheOpts...)
	if err != nil {
		return nil, err
	}

	s.governor, err = governor.New(options.governorConfig, governor.WithLogger(options.logger))
	if err != nil {
		s.cache.Close()
		return nil, err
	}

	s.scheduler, err = scheduler.New(options.schedulerConfig, s.process,
		scheduler.WithGovernor(s.governor),
		scheduler.WithLogger(options.logger))
	if err != nil {
		s.governor.Close()
		s.cache.Close()
		return nil, err
	}

	return s, nil
}

// ChunkDocument runs one document through admission, cache and the
// chunking pipeline, blocking until its result is ready.
func (s *Service) ChunkDocument(ctx context.Context, documentID, title, content string) (*chunker.Result, error) {
	future, err := s.scheduler.Submit(ctx, &core.Task{
		DocumentID: documentID,
		Title:      title,
		Content:    content,
		Priority:   core.PriorityNormal,
	})
	if err != nil {
		return nil, err
	}
	return future.Wait(ctx)
}

// Submit enqueues one task and returns a future for its result.
func (s *Service) Submit(ctx context.Context, task *core.Task) (*scheduler.Future, error) {
	return s.scheduler.Submit(ctx, task)
}

// SubmitStream processes a set of tasks and yields results in
// completion order; consumers correlate by document ID.
func (s *Service) SubmitStream(ctx context.Context, tasks []*core.Task) <-chan scheduler.TaskResult {
	return s.scheduler.SubmitStream(ctx, tasks)
}

// InvalidateDocument drops all cached results for a document, across
// every configuration variant.
func (s *Service) InvalidateDocument(ctx context.Context, documentID string) int {
	return s.cache.InvalidateDocument(ctx, documentID)
}

// Stats reports cache, scheduler and pressure state in one snapshot.
type Stats struct {
	Cache     cache.Stats       `json:"cache"`
	Scheduler scheduler.Stats   `json:"scheduler"`
	Pressure  string            `json:"pressure"`
	Trend     string            `json:"trend"`
	Resources governor.Snapshot `json:"resources"`
}

// Stats returns a point-in-time snapshot of the service.
func (s *Service) Stats(ctx context.Context) Stats {
	return Stats{
		Cache:     s.cache.Stats(ctx),
		Scheduler: s.scheduler.Stats(),
		Pressure:  s.governor.PressureState().String(),
		Trend:     s.governor.Trend().String(),
		Resources: s.governor.Snapshot(),
	}
}

// Close drains the scheduler, stops the governor and releases the
// cache store.
func (s *Service) Close() error {
	s.scheduler.Close()
	s.governor.Close()
	if err := s.cache.Close(); err != nil {
		s.logger.Error("error closing cache store", "err", err)
		return err
	}
	return nil
}

// process is the scheduler's per-task pipeline: cache lookup, then
// parse, chunk and assess on a miss, then cache fill.
func (s *Service) process(ctx context.Context, task *core.Task) (*chunker.Result, error) {
	start := time.Now()
	key := core.FingerprintFor(task.Content, s.config)

	if entry := s.cache.Get(ctx, key); entry != nil {
		result := s.rehydrate(entry, time.Since(start))
		if err := s.embed(ctx, result.Chunks); err != nil {
			return nil, err
		}
		return result, nil
	}

	result, err := s.chunker.ChunkDocument(task.DocumentID, task.Title, task.Content)
	if err != nil {
		return nil, err
	}
	if err := s.embed(ctx, result.Chunks); err != nil {
		return nil, err
	}

	s.cache.Put(ctx, &core.CacheEntry{
		Key:         key,
		DocumentID:  task.DocumentID,
		Strategy:    result.Statistics.StrategyUsed,
		Chunks:      result.Chunks,
		Assessments: summarize(result.Assessments),
	})
	return result, nil
}

// rehydrate rebuilds a full result from a cached entry. Assessments
// are recomputed from the chunks; the assessor is deterministic, so
// this reproduces exactly what was stored, including recommendations
// the compact cached summary drops.
func (s *Service) rehydrate(entry *core.CacheEntry, elapsed time.Duration) *chunker.Result {
	chunks := entry.Chunks
	if s.embedder != nil {
		// Cached chunks are shared across hits. Embedding writes into
		// them, so each hit gets its own copies.
		chunks = make([]*core.Chunk, len(entry.Chunks))
		for i, ch := range entry.Chunks {
			cp := *ch
			chunks[i] = &cp
		}
	}
	result := &chunker.Result{Chunks: chunks}
	if s.config.Quality.Enabled {
		result.Assessments = s.assessor.AssessAll(entry.Chunks)
	}

	stats := chunker.Statistics{
		TotalChunks:    len(entry.Chunks),
		ProcessingTime: elapsed,
		StrategyUsed:   entry.Strategy,
	}
	var totalSize int
	var totalScore float64
	for i, chunk := range entry.Chunks {
		n := len(chunk.Content)
		totalSize += n
		if i == 0 || n < stats.MinChunkSize {
			stats.MinChunkSize = n
		}
		if n > stats.MaxChunkSize {
			stats.MaxChunkSize = n
		}
		totalScore += chunk.QualityScore
	}
	if len(entry.Chunks) > 0 {
		stats.AverageChunkSize = float64(totalSize) / float64(len(entry.Chunks))
		stats.AverageQualityScore = totalScore / float64(len(entry.Chunks))
	}
	result.Statistics = stats
	return result
}

// warm turns cache miss predictions into low-priority recomputation
// tasks. Failures are logged and dropped; warming is advisory.
func (s *Service) warm(source DocumentSource) cache.WarmFunc {
	return func(documentID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		title, content, err := source(ctx, documentID)
		if err != nil {
			s.logger.Debug("cache warm lookup failed", "document_id", documentID, "err", err)
			return
		}
		if _, err := s.scheduler.Submit(ctx, &core.Task{
			DocumentID: documentID,
			Title:      title,
			Content:    content,
			Priority:   core.PriorityLow,
		}); err != nil {
			s.logger.Debug("cache warm rejected", "document_id", documentID, "err", err)
		}
	}
}

// embed fills in vectors for chunks that do not have one yet. Chunks
// produced alongside a cache fill keep their vectors in the in-process
// tier, so repeat hits there skip the round trip; entries rehydrated
// from storage come back bare and are embedded again. No-op without an
// embedder.
func (s *Service) embed(ctx context.Context, chunks []*core.Chunk) error {
	if s.embedder == nil {
		return nil
	}

	var missing []*core.Chunk
	for _, ch := range chunks {
		if ch.Embedding == nil {
			missing = append(missing, ch)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	texts := make([]string, len(missing))
	for i, ch := range missing {
		texts[i] = ch.Body()
	}
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(missing) {
		return fmt.Errorf("embedding chunks: got %d vectors for %d chunks", len(vectors), len(missing))
	}
	for i, ch := range missing {
		ch.Embedding = vectors[i]
	}
	return nil
}

func summarize(assessments []quality.Assessment) []core.AssessmentSummary {
	out := make([]core.AssessmentSummary, len(assessments))
	for i, a := range assessments {
		out[i] = core.AssessmentSummary{
			Coherence:    a.Metrics.SemanticCoherence,
			Density:      a.Metrics.InformationDensity,
			Completeness: a.Metrics.ContextCompleteness,
			Integrity:    a.Metrics.StructuralIntegrity,
			Length:       a.Metrics.LengthAppropriateness,
			Overall:      a.OverallScore,
			Passed:       a.Passed,
		}
	}
	return out
}
