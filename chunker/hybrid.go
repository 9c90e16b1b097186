package chunker

import (
	"github.com/poiesic/chunkit/parser"
)

// hybridSpans layers the strategies: structural cuts first, a semantic
// re-split of any span that exceeds the max size, then a merge pass
// that folds undersized neighbors together. The result keeps section
// alignment where the document allows it without letting any one
// section balloon past the ceiling.
func (c *Chunker) hybridSpans(content string, structure *parser.Structure) []span {
	// Without headings the structural pass has nothing to cut on, so
	// start from semantic units instead; falling back to character
	// windows here would slice through code blocks.
	var spans []span
	if structure.SectionCount() > 0 {
		spans = c.structuralSpans(content, structure)
	} else {
		spans = c.packUnits(unitsIn(content, structure, 0, len(content)))
	}

	var refined []span
	for _, sp := range spans {
		if sp.len() <= c.config.MaxChunkSize {
			refined = append(refined, sp)
			continue
		}
		units := unitsIn(content, structure, sp.start, sp.end)
		refined = append(refined, c.capOversizeText(content, structure, c.packUnits(units))...)
	}

	return c.mergeUndersized(refined)
}

// mergeUndersized folds spans below the minimum size into their
// predecessor while the merge stays within the target size.
func (c *Chunker) mergeUndersized(spans []span) []span {
	if len(spans) < 2 {
		return spans
	}

	out := spans[:1]
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		if sp.len() < c.config.MinChunkSize && last.len()+sp.len() <= c.config.TargetChunkSize {
			last.end = sp.end
			continue
		}
		out = append(out, sp)
	}
	return out
}
