package core

import (
	"fmt"
	"strings"
)

// Strategy selects the chunk boundary algorithm.
type Strategy int

const (
	// StrategySimple slides a character window, breaking at sentence ends.
	StrategySimple Strategy = iota
	// StrategyStructural aligns chunk boundaries to section boundaries.
	StrategyStructural
	// StrategySemantic cuts on element boundaries, keeping atomic
	// elements (code blocks, tables, lists) whole.
	StrategySemantic
	// StrategyHybrid runs Structural, then re-splits oversized chunks
	// semantically and merges undersized neighbors.
	StrategyHybrid
	// StrategyAdaptive inspects document features and delegates to one
	// of the concrete strategies.
	StrategyAdaptive
)

func (s Strategy) String() string {
	switch s {
	case StrategySimple:
		return "simple"
	case StrategyStructural:
		return "structural"
	case StrategySemantic:
		return "semantic"
	case StrategyHybrid:
		return "hybrid"
	case StrategyAdaptive:
		return "adaptive"
	}
	return "unknown"
}

// ParseStrategy converts a strategy name to its Strategy value.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "simple":
		return StrategySimple, nil
	case "structural":
		return StrategyStructural, nil
	case "semantic":
		return StrategySemantic, nil
	case "hybrid":
		return StrategyHybrid, nil
	case "adaptive":
		return StrategyAdaptive, nil
	}
	return StrategySimple, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// ChunkingConfig controls chunk sizing and strategy selection.
// Sizes are in bytes of document content.
type ChunkingConfig struct {
	Strategy        Strategy
	TargetChunkSize int
	MinChunkSize    int
	MaxChunkSize    int
	OverlapSize     int

	Structural StructuralConfig
	Semantic   SemanticConfig
	Quality    QualityConfig
	Adaptive   AdaptiveConfig
}

// StructuralConfig tunes section-aligned chunking.
type StructuralConfig struct {
	RespectHeadings    bool
	PreserveCodeBlocks bool
	PreserveTables     bool
	PreserveLists      bool
	MinSectionSize     int
}

// SemanticConfig tunes element-boundary chunking.
type SemanticConfig struct {
	ImportanceWeighting bool
	KeywordLimit        int
}

// QualityConfig holds assessment thresholds and metric weights.
// All scores are in [0, 1].
type QualityConfig struct {
	Enabled       bool
	PassThreshold float64

	CoherenceWeight    float64
	DensityWeight      float64
	CompletenessWeight float64
	IntegrityWeight    float64
	LengthWeight       float64
}

// AdaptiveConfig holds the cutoffs the adaptive selector applies, in
// decision order. The defaults mirror observed corpus behavior and are
// deliberately configurable rather than constants.
type AdaptiveConfig struct {
	MinSections        int     // more sections than this (with structure) -> structural
	CodeBlockRatio     float64 // above this -> hybrid
	AvgParagraphLength float64 // above this -> semantic
}

// DefaultConfig returns the chunking configuration used when the caller
// does not supply one.
func DefaultConfig() *ChunkingConfig {
	return &ChunkingConfig{
		Strategy:        StrategyAdaptive,
		TargetChunkSize: 1000,
		MinChunkSize:    100,
		MaxChunkSize:    1500,
		OverlapSize:     50,
		Structural: StructuralConfig{
			RespectHeadings:    true,
			PreserveCodeBlocks: true,
			PreserveTables:     true,
			PreserveLists:      true,
			MinSectionSize:     200,
		},
		Semantic: SemanticConfig{
			ImportanceWeighting: true,
			KeywordLimit:        8,
		},
		Quality: QualityConfig{
			Enabled:            true,
			PassThreshold:      0.6,
			CoherenceWeight:    0.30,
			DensityWeight:      0.20,
			CompletenessWeight: 0.20,
			IntegrityWeight:    0.20,
			LengthWeight:       0.10,
		},
		Adaptive: AdaptiveConfig{
			MinSections:        3,
			CodeBlockRatio:     0.3,
			AvgParagraphLength: 500,
		},
	}
}

// Canonical returns a stable textual form of the sizing-relevant fields,
// used for fingerprinting. Two configs that chunk identically produce
// the same canonical form.
func (c *ChunkingConfig) Canonical() string {
	return fmt.Sprintf("s=%s;t=%d;min=%d;max=%d;o=%d",
		c.Strategy, c.TargetChunkSize, c.MinChunkSize, c.MaxChunkSize, c.OverlapSize)
}
