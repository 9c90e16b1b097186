package chunker

import (
	"github.com/poiesic/chunkit/core"
	"github.com/poiesic/chunkit/parser"
)

// structuralSpans cuts along the heading hierarchy. The document is
// divided at every section start; each resulting segment becomes one
// span when it fits under the max size and is otherwise packed from
// its semantic units. Segments below the minimum section size merge
// into their predecessor. Documents without headings degrade to the
// simple strategy.
func (c *Chunker) structuralSpans(content string, structure *parser.Structure) []span {
	if structure.SectionCount() == 0 {
		return c.simpleSpans(content, structure)
	}

	var spans []span
	for _, seg := range sectionSegments(structure, len(content)) {
		if seg.end-seg.start <= c.config.MaxChunkSize {
			spans = append(spans, c.segmentSpan(content, structure, seg))
			continue
		}
		spans = append(spans, c.packUnits(unitsIn(content, structure, seg.start, seg.end))...)
	}

	return c.mergeSmallSegments(spans)
}

type segment struct{ start, end int }

// sectionSegments returns the document split at every section start,
// in order, covering [0, length).
func sectionSegments(structure *parser.Structure, length int) []segment {
	cuts := []int{0}
	for _, sec := range structure.Sections[1:] {
		if sec.Start > 0 && sec.Start < length {
			cuts = append(cuts, sec.Start)
		}
	}
	// Section starts arrive in document order from the parser.
	var segs []segment
	for i, cut := range cuts {
		end := length
		if i+1 < len(cuts) {
			end = cuts[i+1]
		}
		if end > cut {
			segs = append(segs, segment{start: cut, end: end})
		}
	}
	return segs
}

// segmentSpan wraps a whole segment as one span, typed by the units it
// contains.
func (c *Chunker) segmentSpan(content string, structure *parser.Structure, seg segment) span {
	kinds := make(map[parser.ElementKind]int)
	language := ""
	for _, el := range structure.Elements {
		if el.End <= seg.start || el.Start >= seg.end {
			continue
		}
		kinds[el.Kind] += el.End - el.Start
		if el.Language != "" && language == "" {
			language = el.Language
		}
	}

	coreKinds := make(map[core.ContentKind]int, len(kinds))
	for k, n := range kinds {
		coreKinds[contentKindOf(k)] += n
	}
	return span{start: seg.start, end: seg.end, kind: dominantKind(coreKinds), language: language}
}

// mergeSmallSegments folds spans shorter than the structural minimum
// into their predecessor, provided the merge stays under the max size.
func (c *Chunker) mergeSmallSegments(spans []span) []span {
	minSize := c.config.Structural.MinSectionSize
	if minSize <= 0 || len(spans) < 2 {
		return spans
	}

	out := spans[:1]
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		if sp.len() < minSize && last.len()+sp.len() <= c.config.MaxChunkSize {
			last.end = sp.end
			continue
		}
		out = append(out, sp)
	}
	return out
}
