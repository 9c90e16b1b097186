package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const outlineDoc = `# Title

Intro paragraph with some text.

## Setup

Install the thing.

` + "```go\nfunc main() {}\n```" + `

## Usage

- first
- second
  - nested

### Details

> a quoted note

| a | b |
|---|---|
| 1 | 2 |
`

func TestParseOutline(t *testing.T) {
	s := NewDefault().Parse(outlineDoc)

	require.Equal(t, 4, s.SectionCount())

	titles := make([]string, 0, 4)
	levels := make([]int, 0, 4)
	for _, sec := range s.Sections[1:] {
		titles = append(titles, sec.Title)
		levels = append(levels, sec.Level)
	}
	assert.Equal(t, []string{"Title", "Setup", "Usage", "Details"}, titles)
	assert.Equal(t, []int{1, 2, 2, 3}, levels)

	// Details nests under Usage, both h2s under Title.
	assert.Equal(t, 3, s.Sections[4].Parent)
	assert.Equal(t, 1, s.Sections[2].Parent)
	assert.Equal(t, 1, s.Sections[3].Parent)
}

func TestParseElements(t *testing.T) {
	s := NewDefault().Parse(outlineDoc)

	var kinds []ElementKind
	for _, el := range s.Elements {
		kinds = append(kinds, el.Kind)
	}
	assert.Equal(t, []ElementKind{
		ElementParagraph,
		ElementParagraph,
		ElementCodeBlock,
		ElementList,
		ElementQuote,
		ElementTable,
	}, kinds)

	assert.Equal(t, 2, s.Metadata.ParagraphCount)
	assert.Equal(t, 1, s.Metadata.CodeBlockCount)
	assert.Equal(t, 1, s.Metadata.TableCount)
	assert.Equal(t, 1, s.Metadata.ListCount)
	assert.Equal(t, 1, s.Metadata.QuoteCount)
}

func TestParseThematicBreak(t *testing.T) {
	doc := "First part of the note.\n\n---\n\nSecond part after the divider.\n"
	s := NewDefault().Parse(doc)

	var kinds []ElementKind
	var rule *Element
	for i := range s.Elements {
		kinds = append(kinds, s.Elements[i].Kind)
		if s.Elements[i].Kind == ElementRule {
			rule = &s.Elements[i]
		}
	}
	assert.Equal(t, []ElementKind{ElementParagraph, ElementRule, ElementParagraph}, kinds)
	require.NotNil(t, rule)
	assert.Equal(t, "---", doc[rule.Start:rule.End])
	assert.False(t, rule.Kind.Atomic())
}

func TestParseSpansMonotonic(t *testing.T) {
	s := NewDefault().Parse(outlineDoc)

	prev := 0
	for _, el := range s.Elements {
		assert.GreaterOrEqual(t, el.Start, prev)
		assert.Greater(t, el.End, el.Start)
		assert.LessOrEqual(t, el.End, len(outlineDoc))
		prev = el.End
	}
}

func TestParseCodeBlock(t *testing.T) {
	s := NewDefault().Parse(outlineDoc)

	var code *Element
	for i := range s.Elements {
		if s.Elements[i].Kind == ElementCodeBlock {
			code = &s.Elements[i]
			break
		}
	}
	require.NotNil(t, code)
	assert.Equal(t, "go", code.Language)

	// The span covers the fences, not just the code body.
	text := outlineDoc[code.Start:code.End]
	assert.True(t, strings.HasPrefix(text, "```go"))
	assert.True(t, strings.HasSuffix(text, "```"))
	assert.Contains(t, text, "func main() {}")
}

func TestParseListDepth(t *testing.T) {
	s := NewDefault().Parse(outlineDoc)

	for _, el := range s.Elements {
		if el.Kind == ElementList {
			assert.False(t, el.Ordered)
			assert.Equal(t, 2, el.Depth)
			return
		}
	}
	t.Fatal("no list element found")
}

func TestParseHeadingless(t *testing.T) {
	content := "Just a plain paragraph.\n\nAnd another one.\n"
	s := NewDefault().Parse(content)

	assert.Equal(t, 0, s.SectionCount())
	assert.False(t, s.Metadata.HasClearHeadings)
	require.Len(t, s.Elements, 2)
	for _, el := range s.Elements {
		assert.Equal(t, ElementParagraph, el.Kind)
		assert.Equal(t, 0, el.Section)
	}
}

func TestParseEmpty(t *testing.T) {
	s := NewDefault().Parse("")

	assert.Equal(t, 0, s.SectionCount())
	assert.Empty(t, s.Elements)
	assert.Equal(t, 0, s.Metadata.ContentLength)
	assert.Zero(t, s.Metadata.ReadingTimeMin)
}

func TestParseMaxHeadingDepth(t *testing.T) {
	content := "# Top\n\n#### Deep\n\ntext under deep heading\n"
	s := New(Config{MaxHeadingDepth: 2}).Parse(content)

	require.Equal(t, 1, s.SectionCount())
	assert.Equal(t, "Top", s.Sections[1].Title)
}

func TestSectionPath(t *testing.T) {
	s := NewDefault().Parse(outlineDoc)
	s.Metadata.Title = "Doc"

	// Details is the deepest section.
	path := s.Path(4)
	assert.Equal(t, []string{"Doc", "Title", "Usage", "Details"}, path)
}

func TestSectionAt(t *testing.T) {
	s := NewDefault().Parse(outlineDoc)

	detailsStart := s.Sections[4].Start
	assert.Equal(t, 4, s.SectionAt(detailsStart))
	assert.Equal(t, 0, s.SectionAt(len(outlineDoc)+10))
}

func TestAtomicSpanCrossing(t *testing.T) {
	s := NewDefault().Parse(outlineDoc)

	var code Element
	for _, el := range s.Elements {
		if el.Kind == ElementCodeBlock {
			code = el
			break
		}
	}
	require.NotZero(t, code.End)

	mid := (code.Start + code.End) / 2
	idx := s.AtomicSpanCrossing(mid)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, ElementCodeBlock, s.Elements[idx].Kind)

	// Boundaries on the edges of an atomic element are allowed.
	assert.Equal(t, -1, s.AtomicSpanCrossing(code.Start))
	assert.Equal(t, -1, s.AtomicSpanCrossing(code.End))
}
