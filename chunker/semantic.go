package chunker

import (
	"github.com/poiesic/chunkit/core"
	"github.com/poiesic/chunkit/parser"
)

// semanticSpans cuts on element boundaries rather than raw characters.
// Units accumulate toward the target size; an atomic element that will
// not fit under the max bound is flushed alone, oversized if need be,
// because integrity outweighs the size ceiling for code, tables, and
// lists. Plain-text spans that still exceed the max are windowed.
func (c *Chunker) semanticSpans(content string, structure *parser.Structure) []span {
	units := unitsIn(content, structure, 0, len(content))
	spans := c.packUnits(units)
	return c.capOversizeText(content, structure, spans)
}

// capOversizeText re-splits text and mixed spans that exceed the max
// size using boundary-snapped windows. Typed atomic spans are left
// whole.
func (c *Chunker) capOversizeText(content string, structure *parser.Structure, spans []span) []span {
	var out []span
	for _, sp := range spans {
		if sp.len() <= c.config.MaxChunkSize || isAtomicKind(sp.kind) {
			out = append(out, sp)
			continue
		}

		start := sp.start
		for start < sp.end {
			end := start + c.config.TargetChunkSize
			if end >= sp.end {
				out = append(out, span{start: start, end: sp.end, kind: sp.kind, language: sp.language})
				break
			}
			end = snapBoundary(content, start+c.config.MinChunkSize, end)
			end = avoidAtomic(structure, start, end)
			if end <= start {
				end = min(start+c.config.TargetChunkSize, sp.end)
			}
			out = append(out, span{start: start, end: end, kind: sp.kind, language: sp.language})
			start = end
		}
	}
	return c.absorbShortTail(out)
}

func isAtomicKind(k core.ContentKind) bool {
	return k == core.ContentCode || k == core.ContentTable || k == core.ContentList
}
