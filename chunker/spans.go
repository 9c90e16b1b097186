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
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/chunkit/core"
	"github.com/poiesic/chunkit/parser"
)

// span is one entry of a strategy's cut list: a half-open byte range
// of the source document. Spans are emitted in order, contiguous, and
// together cover the whole document; content never appears in two
// spans and never goes missing.
type span struct {
	start, end int
	kind       core.ContentKind
	language   string
}

func (s span) len() int { return s.end - s.start }

// normalize repairs a cut list so it is strictly contiguous over
// [0, length). Strategies already produce contiguous spans; this keeps
// the coverage guarantee local to one place instead of trusting every
// strategy individually.
func normalize(spans []span, length int) []span {
	out := spans[:0]
	prev := 0
	for _, sp := range spans {
		sp.start = prev
		if sp.end > length {
			sp.end = length
		}
		if sp.end <= sp.start {
			continue
		}
		prev = sp.end
		out = append(out, sp)
	}
	if prev < length {
		if len(out) > 0 {
			out[len(out)-1].end = length
		} else {
			out = append(out, span{start: 0, end: length, kind: core.ContentText})
		}
	}
	return out
}

// build turns a cut list into finished chunks: overlap leads applied,
// section context resolved, keywords extracted, neighbor links set.
func (c *Chunker) build(documentID, content string, structure *parser.Structure, spans []span) []*core.Chunk {
	if len(content) == 0 {
		// An empty document still yields exactly one (empty) chunk so
		// downstream consumers never special-case zero chunks.
		chunk := &core.Chunk{
			ID:         core.ChunkID(documentID, 0),
			DocumentID: documentID,
			Index:      0,
			Total:      1,
			Kind:       core.ContentText,
			CreatedAt:  time.Now().UTC(),
		}
		if structure.Metadata.Title != "" {
			chunk.SectionPath = []string{structure.Metadata.Title}
		}
		return []*core.Chunk{chunk}
	}

	spans = normalize(spans, len(content))
	now := time.Now().UTC()
	chunks := make([]*core.Chunk, 0, len(spans))

	for i, sp := range spans {
		body := content[sp.start:sp.end]

		overlap := 0
		if i > 0 && c.config.OverlapSize > 0 {
			overlap = overlapLead(content, sp.start, c.config.OverlapSize)
		}

		sec := structure.SectionAt(sp.start)
		chunk := &core.Chunk{
			ID:           core.ChunkID(documentID, i),
			DocumentID:   documentID,
			Index:        i,
			Content:      content[sp.start-overlap : sp.end],
			Overlap:      overlap,
			Kind:         sp.kind,
			Language:     sp.language,
			SectionPath:  structure.Path(sec),
			SectionLevel: structure.Sections[sec].Level,
			Range:        core.SourceRange{Start: sp.start, End: sp.end},
			CreatedAt:    now,
		}
		if c.config.Semantic.ImportanceWeighting {
			chunk.Keywords = extractKeywords(body, c.config.Semantic.KeywordLimit)
			chunk.Concepts = extractConcepts(chunk.SectionPath, chunk.Keywords)
			chunk.Importance = importanceOf(chunk)
		}
		chunks = append(chunks, chunk)
	}

	total := len(chunks)
	for i, chunk := range chunks {
		chunk.Total = total
		if i > 0 {
			chunk.PrevID = chunks[i-1].ID
		}
		if i < total-1 {
			chunk.NextID = chunks[i+1].ID
		}
	}
	return chunks
}

// overlapLead returns how many bytes of trailing context from the
// preceding span to prepend, preferring a word boundary so the lead
// does not open mid-word.
func overlapLead(content string, start, want int) int {
	if start <= 0 {
		return 0
	}
	if want > start {
		want = start
	}

	leadStart := start - want
	if leadStart > 0 && !isBoundaryByte(content[leadStart-1]) {
		// Mid-word: shrink the lead to the next word start inside it.
		if i := strings.IndexAny(content[leadStart:start], " \n\t"); i >= 0 {
			leadStart += i + 1
		}
	}
	return start - leadStart
}

func isBoundaryByte(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t'
}

// snapBoundary pulls a proposed cut position back to the nearest
// sentence end, then line end, then word end within (floor, limit].
// The floor keeps a cut from landing so early that it produces an
// undersized chunk. Returns limit unchanged when no boundary exists.
func snapBoundary(content string, floor, limit int) int {
	if floor < 0 {
		floor = 0
	}
	if floor >= limit {
		return limit
	}
	window := content[floor:limit]

	if i := strings.LastIndexAny(window, ".!?。！？"); i >= 0 {
		_, size := utf8.DecodeRuneInString(window[i:])
		if cut := floor + i + size; cut > floor && cut <= limit {
			return cut
		}
	}
	if i := strings.LastIndexByte(window, '\n'); i >= 0 {
		if cut := floor + i + 1; cut > floor {
			return cut
		}
	}
	if i := strings.LastIndexByte(window, ' '); i >= 0 {
		if cut := floor + i + 1; cut > floor {
			return cut
		}
	}
	return limit
}

// avoidAtomic moves a cut off the interior of a code block, table, or
// list. The cut lands on the element's start when that leaves any
// progress, else on its end.
func avoidAtomic(structure *parser.Structure, start, cut int) int {
	idx := structure.AtomicSpanCrossing(cut)
	if idx < 0 {
		return cut
	}
	el := structure.Elements[idx]
	if el.Start > start {
		return el.Start
	}
	return el.End
}

// unit is a strategy-internal semantic block: an element span widened
// so consecutive units stay contiguous.
type unit struct {
	start, end int
	kind       core.ContentKind
	language   string
	atomic     bool
}

// unitsIn slices [start, end) into contiguous semantic units. Element
// spans anchor the units; the text between elements travels with the
// following unit so nothing is dropped. Regions without any parsed
// element fall back to paragraph boundaries.
func unitsIn(content string, structure *parser.Structure, start, end int) []unit {
	var units []unit
	cursor := start

	for _, el := range structure.Elements {
		if el.End <= start || el.Start >= end {
			continue
		}
		elEnd := el.End
		if elEnd > end {
			elEnd = end
		}
		units = append(units, unit{
			start:    cursor,
			end:      elEnd,
			kind:     contentKindOf(el.Kind),
			language: el.Language,
			atomic:   el.Kind.Atomic() && cursor <= el.Start && elEnd == el.End,
		})
		cursor = elEnd
	}

	if cursor < end {
		units = append(units, paragraphUnits(content, cursor, end)...)
	}
	if len(units) == 0 {
		units = append(units, unit{start: start, end: end, kind: core.ContentText})
	}
	return units
}

// paragraphUnits splits a span on blank lines.
func paragraphUnits(content string, start, end int) []unit {
	var units []unit
	cursor := start
	for cursor < end {
		next := strings.Index(content[cursor:end], "\n\n")
		if next < 0 {
			units = append(units, unit{start: cursor, end: end, kind: core.ContentText})
			break
		}
		stop := cursor + next + 2
		units = append(units, unit{start: cursor, end: stop, kind: core.ContentText})
		cursor = stop
	}
	return units
}

// packUnits groups contiguous units into spans that aim for the target
// size. Atomic units are never split: one that cannot join the current
// span within the max bound is flushed alone, oversized if need be.
func (c *Chunker) packUnits(units []unit) []span {
	var spans []span
	var cur *span
	var kinds map[core.ContentKind]int

	flush := func() {
		if cur == nil {
			return
		}
		cur.kind = dominantKind(kinds)
		spans = append(spans, *cur)
		cur = nil
		kinds = nil
	}

	for _, u := range units {
		switch {
		case cur == nil:
		case u.atomic && cur.len()+u.end-u.start > c.config.MaxChunkSize:
			flush()
		case !u.atomic && cur.len()+u.end-u.start > c.config.TargetChunkSize && cur.len() >= c.config.MinChunkSize:
			flush()
		case cur.len() >= c.config.MaxChunkSize:
			flush()
		}

		if cur == nil {
			cur = &span{start: u.start, end: u.end, language: u.language}
			kinds = map[core.ContentKind]int{u.kind: u.end - u.start}
		} else {
			cur.end = u.end
			kinds[u.kind] += u.end - u.start
			if u.language != "" && cur.language == "" {
				cur.language = u.language
			}
		}
	}
	flush()
	return spans
}

// dominantKind picks the kind holding the most bytes, Mixed when no
// kind holds a clear majority.
func dominantKind(kinds map[core.ContentKind]int) core.ContentKind {
	total := 0
	best := core.ContentText
	bestN := -1
	for k, n := range kinds {
		total += n
		if n > bestN {
			best, bestN = k, n
		}
	}
	if total == 0 {
		return core.ContentText
	}
	if len(kinds) > 1 && float64(bestN)/float64(total) < 0.6 {
		return core.ContentMixed
	}
	return best
}

func contentKindOf(k parser.ElementKind) core.ContentKind {
	switch k {
	case parser.ElementCodeBlock:
		return core.ContentCode
	case parser.ElementTable:
		return core.ContentTable
	case parser.ElementList:
		return core.ContentList
	case parser.ElementQuote:
		return core.ContentQuote
	default:
		return core.ContentText
	}
}
