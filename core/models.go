package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Fingerprint is a stable 64-bit identity for a (content, config) pair.
// It is generated with content-based hashing so that identical input
// always produces the identical fingerprint, which makes it usable as a
// cache key across processes.
type Fingerprint uint64

// FingerprintFor generates a deterministic fingerprint from document
// content and the canonical form of the chunking configuration.
func FingerprintFor(content string, cfg *ChunkingConfig) Fingerprint {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(cfg.Canonical()))
	sum := h.Sum(nil)
	return Fingerprint(binary.LittleEndian.Uint64(sum))
}

// ContentKind classifies what a chunk predominantly contains.
type ContentKind int

const (
	ContentText ContentKind = iota
	ContentCode
	ContentTable
	ContentList
	ContentQuote
	ContentMixed
)

func (k ContentKind) String() string {
	switch k {
	case ContentText:
		return "text"
	case ContentCode:
		return "code"
	case ContentTable:
		return "table"
	case ContentList:
		return "list"
	case ContentQuote:
		return "quote"
	case ContentMixed:
		return "mixed"
	}
	return "unknown"
}

// SourceRange is a half-open byte span [Start, End) into the original
// document content.
type SourceRange struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the range.
func (r SourceRange) Len() int { return r.End - r.Start }

// Chunk is one bounded, semantically coherent slice of a document,
// enriched with structural and quality metadata. Chunks of a document
// form a doubly linked chain ordered by Index.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Total      int

	// Content is the chunk text including Overlap leading bytes of
	// trailing context carried over from the previous chunk. Stripping
	// the first Overlap bytes of every chunk and concatenating the
	// remainders in Index order reproduces the document exactly.
	Content  string
	Overlap  int
	Kind     ContentKind
	Language string // set when Kind is ContentCode and the fence carried a tag

	SectionPath  []string
	SectionLevel int // 0 when the chunk belongs to the implicit root section
	Range        SourceRange

	Concepts   []string
	Keywords   []string
	Importance float64

	PrevID string // empty at the document head
	NextID string // empty at the document tail

	QualityScore  float64
	QualityPassed bool

	// Embedding is the vector for the chunk body when the service was
	// built with an embedder. Vectors are never cached or persisted;
	// entries served from storage come back without them.
	Embedding []float32

	CreatedAt time.Time
}

// ChunkID builds the canonical chunk identifier for a document and index.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%04d", documentID, index)
}

// Body returns the chunk content with the overlap lead removed, i.e. the
// bytes this chunk contributes to a round-trip reconstruction.
func (c *Chunk) Body() string {
	if c.Overlap <= 0 || c.Overlap > len(c.Content) {
		return c.Content
	}
	return c.Content[c.Overlap:]
}

// TaskPriority orders tasks in the scheduler queue. Higher values are
// dequeued first; ties are FIFO.
type TaskPriority int

const (
	PriorityLow TaskPriority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p TaskPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return "unknown"
}

// Task is a unit of chunking work submitted to the scheduler.
type Task struct {
	DocumentID  string
	Title       string
	Content     string
	Priority    TaskPriority
	SubmittedAt time.Time
}
