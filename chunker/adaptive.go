package chunker

import (
	"github.com/poiesic/chunkit/core"
	"github.com/poiesic/chunkit/parser"
)

// DocumentFeatures captures the signals the adaptive selector reads
// from a parsed document.
type DocumentFeatures struct {
	HasClearStructure      bool    `json:"has_clear_structure"`
	SectionCount           int     `json:"section_count"`
	CodeBlockRatio         float64 `json:"code_block_ratio"`
	TableCount             int     `json:"table_count"`
	AverageParagraphLength float64 `json:"average_paragraph_length"`
	DocumentLength         int     `json:"document_length"`
}

// AnalyzeDocument derives the selection features from the parsed
// structure.
func AnalyzeDocument(content string, s *parser.Structure) DocumentFeatures {
	elementCount := len(s.Elements)
	if elementCount == 0 {
		elementCount = 1
	}

	avgParagraph := 0.0
	if s.Metadata.ParagraphCount > 0 {
		avgParagraph = float64(len(content)) / float64(s.Metadata.ParagraphCount)
	}

	return DocumentFeatures{
		HasClearStructure:      s.Metadata.HasClearHeadings,
		SectionCount:           s.SectionCount(),
		CodeBlockRatio:         float64(s.Metadata.CodeBlockCount) / float64(elementCount),
		TableCount:             s.Metadata.TableCount,
		AverageParagraphLength: avgParagraph,
		DocumentLength:         len(content),
	}
}

// Select picks the concrete strategy for these features. The decision
// order is fixed: a deep heading outline favors structural cuts, heavy
// code favors hybrid, long prose paragraphs favor semantic cuts, and
// plain short text takes the simple path.
func (f DocumentFeatures) Select(cfg *core.AdaptiveConfig) core.Strategy {
	switch {
	case f.HasClearStructure && f.SectionCount > cfg.MinSections:
		return core.StrategyStructural
	case f.CodeBlockRatio > cfg.CodeBlockRatio:
		return core.StrategyHybrid
	case f.AverageParagraphLength > cfg.AvgParagraphLength:
		return core.StrategySemantic
	default:
		return core.StrategySimple
	}
}
