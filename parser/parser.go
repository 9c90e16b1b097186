package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Config controls how much structure the parser extracts.
type Config struct {
	// MaxHeadingDepth is the deepest heading level that opens a new
	// section. Deeper headings are folded into the surrounding section.
	MaxHeadingDepth int
}

// DefaultConfig returns the parser configuration used when the caller
// does not supply one.
func DefaultConfig() Config {
	return Config{MaxHeadingDepth: 6}
}

// Parser turns raw markup into a typed Structure. Parsing is pure and
// deterministic and never fails: malformed or heading-less input yields
// a single root section with all content classified as paragraphs.
type Parser struct {
	config Config
	md     goldmark.Markdown
}

// New creates a parser with the given configuration.
func New(config Config) *Parser {
	if config.MaxHeadingDepth <= 0 || config.MaxHeadingDepth > 6 {
		config.MaxHeadingDepth = 6
	}
	return &Parser{
		config: config,
		md:     goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// NewDefault creates a parser with the default configuration.
func NewDefault() *Parser {
	return New(DefaultConfig())
}

// Parse builds the structural outline of the document. Element spans
// are non-overlapping and strictly increasing; every element belongs to
// exactly one section (the implicit root when no heading covers it).
func (p *Parser) Parse(content string) *Structure {
	src := []byte(content)
	doc := p.md.Parser().Parse(text.NewReader(src))

	s := &Structure{
		Metadata: Metadata{
			ContentLength: len(src),
			HeadingCounts: make(map[int]int),
		},
		Sections: []Section{{
			ID:     "section_root",
			Level:  0,
			Start:  0,
			End:    len(src),
			Parent: -1,
		}},
	}

	// Stack of open section indices, innermost last. The root is level
	// 0 and never popped.
	stack := []int{0}
	lastEnd := 0

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level <= p.config.MaxHeadingDepth {
			start, _, known := nodeSpan(h, src)
			if !known {
				continue
			}
			start = lineStart(src, start)

			for len(stack) > 1 && s.Sections[stack[len(stack)-1]].Level >= h.Level {
				stack = stack[:len(stack)-1]
			}
			parent := stack[len(stack)-1]

			title := strings.TrimSpace(string(h.Text(src)))
			idx := len(s.Sections)
			s.Sections = append(s.Sections, Section{
				ID:     sectionID(h.Level, title),
				Title:  title,
				Level:  h.Level,
				Start:  start,
				End:    len(src), // finalized below
				Parent: parent,
			})
			s.Sections[parent].Children = append(s.Sections[parent].Children, idx)
			stack = append(stack, idx)

			s.Metadata.HeadingCounts[h.Level]++
			lastEnd = max(lastEnd, lineEnd(src, start))
			continue
		}

		el, ok := p.elementFor(n, src, lastEnd)
		if !ok {
			continue
		}
		// Keep spans monotonic even if goldmark hands back an
		// out-of-order segment for an exotic node.
		if el.Start < lastEnd {
			el.Start = lastEnd
		}
		if el.End <= el.Start {
			continue
		}
		lastEnd = el.End
		s.Elements = append(s.Elements, el)
	}

	p.finalizeSections(s, len(src))
	p.assignElements(s)
	p.calculateMetadata(s)

	return s
}

// elementFor maps a top-level AST block to a typed element with its
// byte span. Returns false for nodes with no resolvable span. The from
// offset marks where the previous element ended; thematic breaks carry
// no line segments of their own, so their marker line is located by
// scanning forward from there.
func (p *Parser) elementFor(n ast.Node, src []byte, from int) (Element, bool) {
	if _, isRule := n.(*ast.ThematicBreak); isRule {
		start, stop, found := ruleSpan(src, from)
		if !found {
			return Element{}, false
		}
		return Element{Kind: ElementRule, Start: start, End: stop, Section: -1}, true
	}

	start, stop, known := nodeSpan(n, src)
	if !known {
		return Element{}, false
	}
	start = lineStart(src, start)
	stop = lineEnd(src, stop)

	el := Element{Kind: ElementParagraph, Start: start, End: stop, Section: -1}

	switch node := n.(type) {
	case *ast.FencedCodeBlock:
		el.Kind = ElementCodeBlock
		el.Language = string(node.Language(src))
		// Lines() covers only the code body; widen the span to take
		// in the fence lines themselves.
		el.Start = prevLineStart(src, start)
		if closing := lineEnd(src, stop+1); isFenceLine(src, stop+1) {
			el.End = closing
		}
	case *ast.CodeBlock:
		el.Kind = ElementCodeBlock
	case *east.Table:
		el.Kind = ElementTable
	case *ast.List:
		el.Kind = ElementList
		el.Ordered = node.IsOrdered()
		el.Depth = listDepth(node)
	case *ast.Blockquote:
		el.Kind = ElementQuote
	case *ast.Paragraph:
		if img := soleImage(node); img != nil {
			el.Kind = ElementImage
		}
	case *ast.Heading:
		// Headings deeper than MaxHeadingDepth fall through here and
		// degrade to paragraphs.
	}

	return el, true
}

func (p *Parser) finalizeSections(s *Structure, contentLen int) {
	for i := 1; i < len(s.Sections); i++ {
		end := contentLen
		for j := i + 1; j < len(s.Sections); j++ {
			if s.Sections[j].Level <= s.Sections[i].Level {
				end = s.Sections[j].Start
				break
			}
		}
		s.Sections[i].End = end
	}
}

func (p *Parser) assignElements(s *Structure) {
	for i := range s.Elements {
		sec := s.SectionAt(s.Elements[i].Start)
		s.Elements[i].Section = sec
		s.Sections[sec].Elements = append(s.Sections[sec].Elements, i)
	}
}

func (p *Parser) calculateMetadata(s *Structure) {
	for i := range s.Elements {
		switch s.Elements[i].Kind {
		case ElementParagraph:
			s.Metadata.ParagraphCount++
		case ElementCodeBlock:
			s.Metadata.CodeBlockCount++
		case ElementTable:
			s.Metadata.TableCount++
		case ElementList:
			s.Metadata.ListCount++
		case ElementQuote:
			s.Metadata.QuoteCount++
		case ElementImage:
			s.Metadata.ImageCount++
		}
	}

	s.Metadata.HasClearHeadings = s.SectionCount() > 0
	if s.Metadata.ContentLength > 0 {
		s.Metadata.ReadingTimeMin = max(1.0, float64(s.Metadata.ContentLength)/400.0)
	}
}

// nodeSpan resolves the byte span of a node from its line segments,
// recursing into children for container blocks (lists, quotes, tables)
// that carry no segments of their own.
func nodeSpan(n ast.Node, src []byte) (int, int, bool) {
	if n.Type() == ast.TypeBlock {
		if lines := n.Lines(); lines.Len() > 0 {
			return lines.At(0).Start, lines.At(lines.Len() - 1).Stop, true
		}
	}
	if t, ok := n.(*ast.Text); ok {
		return t.Segment.Start, t.Segment.Stop, true
	}

	start, stop := -1, -1
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		cs, ce, ok := nodeSpan(c, src)
		if !ok {
			continue
		}
		if start == -1 || cs < start {
			start = cs
		}
		if ce > stop {
			stop = ce
		}
	}
	if start == -1 {
		return 0, 0, false
	}
	return start, stop, true
}

// listDepth returns the maximum nesting depth of a list node.
func listDepth(n *ast.List) int {
	depth := 1
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		for g := c.FirstChild(); g != nil; g = g.NextSibling() {
			if nested, ok := g.(*ast.List); ok {
				if d := listDepth(nested) + 1; d > depth {
					depth = d
				}
			}
		}
	}
	return depth
}

// soleImage returns the image node when the paragraph consists of a
// single image (ignoring surrounding whitespace text), else nil.
func soleImage(p *ast.Paragraph) *ast.Image {
	var img *ast.Image
	for c := p.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Image:
			if img != nil {
				return nil
			}
			img = node
		case *ast.Text:
			// allow empty/whitespace text around the image
		default:
			return nil
		}
	}
	return img
}

func sectionID(level int, title string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, title)
	return fmt.Sprintf("section_%d_%s", level, slug)
}

// lineStart returns the offset of the first byte of the line containing pos.
func lineStart(src []byte, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	if pos <= 0 {
		return 0
	}
	if i := bytes.LastIndexByte(src[:pos], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

// lineEnd returns the offset just past the last byte of the line
// containing pos, excluding the newline itself.
func lineEnd(src []byte, pos int) int {
	if pos >= len(src) {
		return len(src)
	}
	if i := bytes.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i
	}
	return len(src)
}

// prevLineStart returns the offset of the first byte of the line
// preceding the line containing pos.
func prevLineStart(src []byte, pos int) int {
	ls := lineStart(src, pos)
	if ls == 0 {
		return 0
	}
	return lineStart(src, ls-1)
}

// ruleSpan finds the first thematic break line at or after pos and
// returns its span with lineEnd semantics, newline excluded.
func ruleSpan(src []byte, pos int) (int, int, bool) {
	for pos < len(src) {
		ls := lineStart(src, pos)
		le := lineEnd(src, pos)
		if isRuleLine(src[ls:le]) {
			return ls, le, true
		}
		pos = le + 1
	}
	return 0, 0, false
}

// isRuleLine reports whether a line is three or more of the same
// marker, optionally space-separated, and nothing else.
func isRuleLine(line []byte) bool {
	line = bytes.TrimSpace(line)
	if len(line) < 3 {
		return false
	}
	marker := line[0]
	if marker != '-' && marker != '*' && marker != '_' {
		return false
	}
	count := 0
	for _, b := range line {
		switch b {
		case marker:
			count++
		case ' ', '\t':
		default:
			return false
		}
	}
	return count >= 3
}

// isFenceLine reports whether the line at pos is a code fence.
func isFenceLine(src []byte, pos int) bool {
	if pos >= len(src) {
		return false
	}
	line := bytes.TrimSpace(src[lineStart(src, pos):lineEnd(src, pos)])
	if len(line) < 3 {
		return false
	}
	marker := line[0]
	if marker != '`' && marker != '~' {
		return false
	}
	for _, b := range line {
		if b != marker {
			return false
		}
	}
	return true
}
