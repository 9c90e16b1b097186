package chunker

import (
	"sort"
	"strings"
	"unicode"

	"github.com/poiesic/chunkit/core"
)

// stopwords excluded from keyword extraction. English only; keyword
// extraction is best-effort enrichment, not search.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "not": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "their": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "to": {},
	"was": {}, "were": {}, "which": {}, "will": {}, "with": {}, "you": {},
}

// extractKeywords returns the most frequent non-stopword terms, ties
// broken lexicographically so output is deterministic.
func extractKeywords(content string, limit int) []string {
	if limit <= 0 || content == "" {
		return nil
	}

	counts := make(map[string]int)
	for _, word := range strings.FieldsFunc(content, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		word = strings.ToLower(word)
		if len(word) < 3 {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		counts[word]++
	}
	if len(counts) == 0 {
		return nil
	}

	terms := make([]string, 0, len(counts))
	for w := range counts {
		terms = append(terms, w)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

// extractConcepts combines the section path with the leading keywords
// into a coarse concept list.
func extractConcepts(sectionPath, keywords []string) []string {
	seen := make(map[string]struct{})
	var concepts []string

	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		concepts = append(concepts, s)
	}

	for _, p := range sectionPath {
		add(p)
	}
	for i, k := range keywords {
		if i >= 3 {
			break
		}
		add(k)
	}
	return concepts
}

// importanceOf scores a chunk's retrieval weight from its position and
// kind. Early chunks and typed content rank slightly above deep prose.
func importanceOf(chunk *core.Chunk) float64 {
	score := 0.5

	if chunk.Index == 0 {
		score += 0.2
	}
	switch chunk.Kind {
	case core.ContentCode, core.ContentTable:
		score += 0.15
	case core.ContentList:
		score += 0.05
	}
	if chunk.SectionLevel == 1 || chunk.SectionLevel == 2 {
		score += 0.1
	}

	if score > 1 {
		return 1
	}
	return score
}
