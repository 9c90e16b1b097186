package chunker

import (
	"github.com/poiesic/chunkit/core"
	"github.com/poiesic/chunkit/parser"
)

// simpleSpans cuts fixed-size windows, snapping each cut back to a
// sentence, line, or word boundary when one exists in the window.
func (c *Chunker) simpleSpans(content string, _ *parser.Structure) []span {
	var spans []span
	start := 0

	for start < len(content) {
		end := start + c.config.TargetChunkSize
		if end >= len(content) {
			spans = append(spans, span{start: start, end: len(content), kind: core.ContentText})
			break
		}

		end = snapBoundary(content, start+c.config.MinChunkSize, end)
		spans = append(spans, span{start: start, end: end, kind: core.ContentText})
		start = end
	}

	return c.absorbShortTail(spans)
}

// absorbShortTail folds a trailing span below the minimum size into
// its predecessor so the last chunk is never a fragment.
func (c *Chunker) absorbShortTail(spans []span) []span {
	if n := len(spans); n > 1 && spans[n-1].len() < c.config.MinChunkSize {
		spans[n-2].end = spans[n-1].end
		spans = spans[:n-1]
	}
	return spans
}
