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

package chunker

import (
	"log/slog"
	"time"

	"github.com/poiesic/chunkit/core"
	"github.com/poiesic/chunkit/parser"
	"github.com/poiesic/chunkit/quality"
)

// Result is the full outcome of chunking one document.
type Result struct {
	Chunks      []*core.Chunk
	Structure   *parser.Structure
	Assessments []quality.Assessment
	Statistics  Statistics
}

// Statistics summarizes a chunking run.
type Statistics struct {
	TotalChunks         int           `json:"total_chunks"`
	AverageChunkSize    float64       `json:"average_chunk_size"`
	MinChunkSize        int           `json:"min_chunk_size"`
	MaxChunkSize        int           `json:"max_chunk_size"`
	AverageQualityScore float64       `json:"average_quality_score"`
	ProcessingTime      time.Duration `json:"processing_time"`
	StrategyUsed        core.Strategy `json:"strategy_used"`
}

// Chunker splits documents into quality-assessed chunks using the
// configured strategy. A Chunker is immutable after construction and
// safe for concurrent use.
type Chunker struct {
	config   *core.ChunkingConfig
	parser   *parser.Parser
	assessor *quality.Assessor
	logger   *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithLogger sets the logger used for per-document diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) error {
		c.logger = logger
		return nil
	}
}

// WithParser overrides the structure parser.
func WithParser(p *parser.Parser) Option {
	return func(c *Chunker) error {
		c.parser = p
		return nil
	}
}

// New creates a Chunker. The configuration is validated up front so a
// constructed Chunker cannot fail on bad bounds later.
func New(cfg *core.ChunkingConfig, opts ...Option) (*Chunker, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if err := core.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	c := &Chunker{
		config:   cfg,
		parser:   parser.NewDefault(),
		assessor: quality.NewAssessor(cfg),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Config returns the configuration the chunker was built with.
func (c *Chunker) Config() *core.ChunkingConfig {
	return c.config
}

// ChunkDocument parses, chunks, and assesses one document. The title
// feeds section paths and metadata but is never spliced into chunk
// content, so concatenating the chunk bodies always reproduces the
// input exactly.
func (c *Chunker) ChunkDocument(documentID, title, content string) (*Result, error) {
	if documentID == "" {
		return nil, core.ErrEmptyDocumentID
	}
	start := time.Now()

	structure := c.parser.Parse(content)
	structure.Metadata.Title = title

	strat, used := c.resolve(content, structure)
	spans := strat(content, structure)
	chunks := c.build(documentID, content, structure, spans)

	var assessments []quality.Assessment
	if c.config.Quality.Enabled {
		assessments = c.assessor.AssessAll(chunks)
		for i, a := range assessments {
			chunks[i].QualityScore = a.OverallScore
			chunks[i].QualityPassed = a.Passed
		}
	}

	stats := c.statistics(chunks, assessments, used, time.Since(start))
	c.logger.Debug("chunked document",
		"document_id", documentID,
		"strategy", used.String(),
		"chunks", stats.TotalChunks,
		"avg_size", int(stats.AverageChunkSize),
		"avg_quality", stats.AverageQualityScore,
		"elapsed", stats.ProcessingTime)

	return &Result{
		Chunks:      chunks,
		Structure:   structure,
		Assessments: assessments,
		Statistics:  stats,
	}, nil
}

// spanFunc produces the ordered, contiguous cut list for a document.
type spanFunc func(content string, s *parser.Structure) []span

// resolve maps the configured strategy to its span producer, running
// the adaptive selector when asked for.
func (c *Chunker) resolve(content string, s *parser.Structure) (spanFunc, core.Strategy) {
	strat := c.config.Strategy
	if strat == core.StrategyAdaptive {
		features := AnalyzeDocument(content, s)
		strat = features.Select(&c.config.Adaptive)
		c.logger.Debug("adaptive strategy selected",
			"strategy", strat.String(),
			"sections", features.SectionCount,
			"code_ratio", features.CodeBlockRatio,
			"avg_paragraph", features.AverageParagraphLength)
	}

	switch strat {
	case core.StrategyStructural:
		return c.structuralSpans, core.StrategyStructural
	case core.StrategySemantic:
		return c.semanticSpans, core.StrategySemantic
	case core.StrategyHybrid:
		return c.hybridSpans, core.StrategyHybrid
	default:
		return c.simpleSpans, core.StrategySimple
	}
}

func (c *Chunker) statistics(chunks []*core.Chunk, assessments []quality.Assessment, used core.Strategy, elapsed time.Duration) Statistics {
	stats := Statistics{
		TotalChunks:    len(chunks),
		ProcessingTime: elapsed,
		StrategyUsed:   used,
	}
	if len(chunks) == 0 {
		return stats
	}

	total := 0
	stats.MinChunkSize = len(chunks[0].Content)
	for _, ch := range chunks {
		size := len(ch.Content)
		total += size
		if size < stats.MinChunkSize {
			stats.MinChunkSize = size
		}
		if size > stats.MaxChunkSize {
			stats.MaxChunkSize = size
		}
	}
	stats.AverageChunkSize = float64(total) / float64(len(chunks))

	if len(assessments) > 0 {
		sum := 0.0
		for _, a := range assessments {
			sum += a.OverallScore
		}
		stats.AverageQualityScore = sum / float64(len(assessments))
	}
	return stats
}
