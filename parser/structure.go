package parser

// ElementKind identifies the type of a document element.
type ElementKind int

const (
	ElementParagraph ElementKind = iota
	ElementCodeBlock
	ElementTable
	ElementList
	ElementQuote
	ElementImage
	ElementRule
)

func (k ElementKind) String() string {
	switch k {
	case ElementParagraph:
		return "paragraph"
	case ElementCodeBlock:
		return "code_block"
	case ElementTable:
		return "table"
	case ElementList:
		return "list"
	case ElementQuote:
		return "quote"
	case ElementImage:
		return "image"
	case ElementRule:
		return "rule"
	}
	return "unknown"
}

// Atomic reports whether an element of this kind must never be split
// across chunk boundaries.
func (k ElementKind) Atomic() bool {
	return k == ElementCodeBlock || k == ElementTable || k == ElementList
}

// Element is a typed block of the document with its byte span.
// Element spans are non-overlapping and monotonically increasing.
type Element struct {
	Kind     ElementKind
	Start    int
	End      int
	Section  int    // index into Structure.Sections
	Language string // code blocks only
	Ordered  bool   // lists only
	Depth    int    // list nesting depth, 1 for a flat list
}

// Section is one node of the outline arena. Sections are stored in
// document order; Parent/Children are arena indices, avoiding a cyclic
// tree representation. Index 0 is always the implicit root section
// spanning the whole document.
type Section struct {
	ID       string
	Title    string
	Level    int // 0 for the root, 1-6 for headings
	Start    int
	End      int
	Parent   int // -1 for the root
	Children []int
	Elements []int // indices into Structure.Elements
}

// Metadata summarizes the detected content mix of a document.
type Metadata struct {
	Title            string
	ContentLength    int
	HeadingCounts    map[int]int
	ParagraphCount   int
	CodeBlockCount   int
	TableCount       int
	ListCount        int
	QuoteCount       int
	ImageCount       int
	ReadingTimeMin   float64
	HasClearHeadings bool
}

// Structure is the typed outline of a parsed document.
type Structure struct {
	Metadata Metadata
	Sections []Section
	Elements []Element
}

// Root returns the implicit root section.
func (s *Structure) Root() *Section { return &s.Sections[0] }

// SectionCount returns the number of explicit (heading) sections,
// excluding the implicit root.
func (s *Structure) SectionCount() int { return len(s.Sections) - 1 }

// Path returns the ordered titles from the outline root down to the
// section at idx. The implicit root contributes the document title when
// present, nothing otherwise.
func (s *Structure) Path(idx int) []string {
	if idx <= 0 || idx >= len(s.Sections) {
		if s.Metadata.Title != "" {
			return []string{s.Metadata.Title}
		}
		return nil
	}

	var rev []string
	for i := idx; i > 0; i = s.Sections[i].Parent {
		rev = append(rev, s.Sections[i].Title)
	}
	if s.Metadata.Title != "" {
		rev = append(rev, s.Metadata.Title)
	}

	path := make([]string, len(rev))
	for i, t := range rev {
		path[len(rev)-1-i] = t
	}
	return path
}

// SectionAt returns the index of the deepest section containing the
// byte offset, or 0 (the root) when no heading section covers it.
func (s *Structure) SectionAt(offset int) int {
	best := 0
	for i := 1; i < len(s.Sections); i++ {
		sec := &s.Sections[i]
		if sec.Start <= offset && offset < sec.End && sec.Level > s.Sections[best].Level {
			best = i
		}
	}
	return best
}

// ElementAt returns the index of the element whose span contains the
// byte offset, or -1 when the offset falls between elements.
func (s *Structure) ElementAt(offset int) int {
	for i := range s.Elements {
		if s.Elements[i].Start <= offset && offset < s.Elements[i].End {
			return i
		}
	}
	return -1
}

// AtomicSpanCrossing returns the index of an atomic element whose span
// strictly contains the boundary offset (i.e. the boundary would split
// it), or -1 when the boundary is safe.
func (s *Structure) AtomicSpanCrossing(boundary int) int {
	for i := range s.Elements {
		el := &s.Elements[i]
		if el.Kind.Atomic() && el.Start < boundary && boundary < el.End {
			return i
		}
	}
	return -1
}
