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

package quality

import (
	"fmt"
	"strings"

	"github.com/poiesic/chunkit/core"
)

// Metrics holds the per-dimension quality scores for a chunk, each in
// [0, 1].
type Metrics struct {
	SemanticCoherence    float64 `json:"semantic_coherence"`
	InformationDensity   float64 `json:"information_density"`
	ContextCompleteness  float64 `json:"context_completeness"`
	StructuralIntegrity  float64 `json:"structural_integrity"`
	LengthAppropriateness float64 `json:"length_appropriateness"`
}

// RecommendationKind classifies what a recommendation asks the caller
// to change.
type RecommendationKind int

const (
	RecAdjustSize RecommendationKind = iota
	RecImproveBoundary
	RecAddContext
	RecIncreaseOverlap
	RecPreserveStructure
	RecIncreaseDensity
)

func (k RecommendationKind) String() string {
	switch k {
	case RecAdjustSize:
		return "adjust_size"
	case RecImproveBoundary:
		return "improve_boundary"
	case RecAddContext:
		return "add_context"
	case RecIncreaseOverlap:
		return "increase_overlap"
	case RecPreserveStructure:
		return "preserve_structure"
	case RecIncreaseDensity:
		return "increase_density"
	default:
		return "unknown"
	}
}

// Recommendation is a deterministic, machine-readable suggestion
// derived from a metric that fell below the pass threshold. Severity
// runs 1 (cosmetic) to 5 (critical).
type Recommendation struct {
	Kind                RecommendationKind `json:"kind"`
	Description         string             `json:"description"`
	Severity            int                `json:"severity"`
	ExpectedImprovement float64            `json:"expected_improvement"`
}

// Assessment is the full quality verdict for a chunk or a chunk
// sequence.
type Assessment struct {
	Metrics         Metrics           `json:"metrics"`
	OverallScore    float64           `json:"overall_score"`
	Passed          bool              `json:"passed"`
	Recommendations []Recommendation  `json:"recommendations,omitempty"`
	Analysis        map[string]string `json:"analysis,omitempty"`
}

// Assessor scores chunks against the configured quality weights. It is
// pure and never fails: every chunk gets a score, even a degenerate
// one.
type Assessor struct {
	config core.QualityConfig
	target int
	min    int
	max    int
}

// NewAssessor builds an assessor from the chunking configuration. The
// size bounds feed the length metric.
func NewAssessor(cfg *core.ChunkingConfig) *Assessor {
	return &Assessor{
		config: cfg.Quality,
		target: cfg.TargetChunkSize,
		min:    cfg.MinChunkSize,
		max:    cfg.MaxChunkSize,
	}
}

// Assess scores a single chunk. Assessments report problems; they
// never reject a chunk.
func (a *Assessor) Assess(chunk *core.Chunk) Assessment {
	m := Metrics{
		SemanticCoherence:     a.semanticCoherence(chunk),
		InformationDensity:    a.informationDensity(chunk),
		ContextCompleteness:   a.contextCompleteness(chunk),
		StructuralIntegrity:   a.structuralIntegrity(chunk),
		LengthAppropriateness: a.lengthAppropriateness(len(chunk.Content)),
	}

	score := a.overallScore(m)
	return Assessment{
		Metrics:         m,
		OverallScore:    score,
		Passed:          score >= a.config.PassThreshold,
		Recommendations: a.recommendations(chunk, m),
		Analysis:        a.analysis(chunk, m),
	}
}

// AssessAll scores each chunk independently, in order.
func (a *Assessor) AssessAll(chunks []*core.Chunk) []Assessment {
	out := make([]Assessment, len(chunks))
	for i, c := range chunks {
		out[i] = a.Assess(c)
	}
	return out
}

// AssessSequence scores a chunk sequence as a whole: per-chunk metrics
// are averaged and the overlap between adjacent chunks is checked
// against what the chunks themselves declare.
func (a *Assessor) AssessSequence(chunks []*core.Chunk) Assessment {
	if len(chunks) == 0 {
		return Assessment{Passed: false}
	}

	var sum Metrics
	for _, c := range chunks {
		m := a.Assess(c).Metrics
		sum.SemanticCoherence += m.SemanticCoherence
		sum.InformationDensity += m.InformationDensity
		sum.ContextCompleteness += m.ContextCompleteness
		sum.StructuralIntegrity += m.StructuralIntegrity
		sum.LengthAppropriateness += m.LengthAppropriateness
	}
	n := float64(len(chunks))
	m := Metrics{
		SemanticCoherence:     sum.SemanticCoherence / n,
		InformationDensity:    sum.InformationDensity / n,
		ContextCompleteness:   sum.ContextCompleteness / n,
		StructuralIntegrity:   sum.StructuralIntegrity / n,
		LengthAppropriateness: sum.LengthAppropriateness / n,
	}

	score := a.overallScore(m)
	asmt := Assessment{
		Metrics:      m,
		OverallScore: score,
		Passed:       score >= a.config.PassThreshold,
		Analysis: map[string]string{
			"sequence_summary": fmt.Sprintf("%d chunks, %d total bytes", len(chunks), totalLength(chunks)),
		},
	}

	if overlap := sequenceOverlapScore(chunks); overlap < a.config.PassThreshold {
		asmt.Recommendations = append(asmt.Recommendations, Recommendation{
			Kind:                RecIncreaseOverlap,
			Description:         "adjacent chunks share little or no lead-in context",
			Severity:            3,
			ExpectedImprovement: 0.2,
		})
	}
	return asmt
}

func (a *Assessor) overallScore(m Metrics) float64 {
	return m.SemanticCoherence*a.config.CoherenceWeight +
		m.InformationDensity*a.config.DensityWeight +
		m.ContextCompleteness*a.config.CompletenessWeight +
		m.StructuralIntegrity*a.config.IntegrityWeight +
		m.LengthAppropriateness*a.config.LengthWeight
}

// semanticCoherence rewards chunks made of complete sentences that end
// on a sentence or line boundary.
func (a *Assessor) semanticCoherence(chunk *core.Chunk) float64 {
	score := 0.5
	content := chunk.Content

	sentences := splitSentences(content)
	if len(sentences) > 0 {
		complete := 0
		for _, s := range sentences {
			if len(strings.TrimSpace(s)) > 10 {
				complete++
			}
		}
		score += float64(complete) / float64(len(sentences)) * 0.3
	}

	if endsOnBoundary(content) {
		score += 0.2
	}
	return clamp01(score)
}

// informationDensity blends the non-whitespace ratio, the sentence
// density, and the word uniqueness ratio. Empty content scores zero.
func (a *Assessor) informationDensity(chunk *core.Chunk) float64 {
	content := chunk.Content
	length := float64(len(content))
	if length == 0 {
		return 0
	}

	nonWS := 0
	for _, r := range content {
		if !isSpace(r) {
			nonWS++
		}
	}
	wsRatio := float64(nonWS) / length

	sentenceDensity := float64(len(splitSentences(content))) / length * 1000.0
	if sentenceDensity > 1 {
		sentenceDensity = 1
	}

	words := strings.Fields(content)
	uniqueness := 0.0
	if len(words) > 0 {
		seen := make(map[string]struct{}, len(words))
		for _, w := range words {
			seen[w] = struct{}{}
		}
		uniqueness = float64(len(seen)) / float64(len(words))
	}

	return clamp01(wsRatio*0.3 + sentenceDensity*0.4 + uniqueness*0.3)
}

// contextCompleteness rewards chunks that carry a section path, carry
// neighbor links, and end on a sentence boundary.
func (a *Assessor) contextCompleteness(chunk *core.Chunk) float64 {
	score := 0.5
	if len(chunk.SectionPath) > 0 {
		score += 0.2
	}
	if chunk.PrevID != "" || chunk.NextID != "" {
		score += 0.2
	}
	if endsWithTerminator(strings.TrimSpace(chunk.Content)) {
		score += 0.1
	}
	return clamp01(score)
}

// structuralIntegrity penalizes chunks whose typed content arrives
// visibly truncated.
func (a *Assessor) structuralIntegrity(chunk *core.Chunk) float64 {
	score := 0.8
	content := chunk.Content

	switch chunk.Kind {
	case core.ContentCode:
		if strings.Contains(content, "```") && !strings.HasPrefix(strings.TrimSpace(content), "```") {
			score -= 0.5
		}
	case core.ContentTable:
		if !strings.Contains(content, "|") {
			score -= 0.4
		}
	case core.ContentList:
		lines := strings.Count(content, "\n") + 1
		markers := 0
		for _, line := range strings.Split(content, "\n") {
			t := strings.TrimSpace(line)
			if t == "" {
				continue
			}
			if strings.HasPrefix(t, "-") || strings.HasPrefix(t, "*") || strings.HasPrefix(t, "+") || startsWithOrderedMarker(t) {
				markers++
			}
		}
		if lines > 0 && float64(markers)/float64(lines) < 0.3 {
			score -= 0.3
		}
	}

	if score < 0 {
		return 0
	}
	return score
}

// lengthAppropriateness is 1.0 at the target size and falls off
// linearly toward 0 at the configured min and max bounds.
func (a *Assessor) lengthAppropriateness(length int) float64 {
	switch {
	case length == a.target:
		return 1.0
	case length < a.target:
		if a.target == a.min {
			return 1.0
		}
		return clamp01(float64(length-a.min) / float64(a.target-a.min))
	default:
		if a.max == a.target {
			return 1.0
		}
		return clamp01(float64(a.max-length) / float64(a.max-a.target))
	}
}

func (a *Assessor) recommendations(chunk *core.Chunk, m Metrics) []Recommendation {
	var recs []Recommendation
	threshold := a.config.PassThreshold

	if m.SemanticCoherence < threshold {
		recs = append(recs, Recommendation{
			Kind:                RecImproveBoundary,
			Description:         "chunk boundary splits a semantic unit",
			Severity:            4,
			ExpectedImprovement: 0.2,
		})
	}
	if m.InformationDensity < threshold {
		recs = append(recs, Recommendation{
			Kind:                RecIncreaseDensity,
			Description:         "content is dominated by whitespace or repeated text",
			Severity:            3,
			ExpectedImprovement: 0.15,
		})
	}
	if m.ContextCompleteness < threshold {
		recs = append(recs, Recommendation{
			Kind:                RecAddContext,
			Description:         "chunk lacks section context or neighbor links",
			Severity:            4,
			ExpectedImprovement: 0.25,
		})
	}
	if m.StructuralIntegrity < threshold {
		recs = append(recs, Recommendation{
			Kind:                RecPreserveStructure,
			Description:         "a structural element appears truncated",
			Severity:            5,
			ExpectedImprovement: 0.3,
		})
	}

	if length := len(chunk.Content); length < a.min {
		recs = append(recs, Recommendation{
			Kind:                RecAdjustSize,
			Description:         "chunk is below the minimum size and may lack context",
			Severity:            3,
			ExpectedImprovement: 0.1,
		})
	} else if length > a.max {
		recs = append(recs, Recommendation{
			Kind:                RecAdjustSize,
			Description:         "chunk exceeds the maximum size and may hurt retrieval precision",
			Severity:            2,
			ExpectedImprovement: 0.1,
		})
	}
	return recs
}

func (a *Assessor) analysis(chunk *core.Chunk, m Metrics) map[string]string {
	out := map[string]string{
		"size":    fmt.Sprintf("%d bytes, bounds %d..%d, target %d", len(chunk.Content), a.min, a.max, a.target),
		"kind":    chunk.Kind.String(),
		"metrics": fmt.Sprintf("coherence=%.2f density=%.2f completeness=%.2f integrity=%.2f length=%.2f", m.SemanticCoherence, m.InformationDensity, m.ContextCompleteness, m.StructuralIntegrity, m.LengthAppropriateness),
	}
	if len(chunk.SectionPath) > 0 {
		out["section"] = fmt.Sprintf("level %d, path %s", chunk.SectionLevel, strings.Join(chunk.SectionPath, " > "))
	}
	return out
}

// sequenceOverlapScore checks that each chunk's declared overlap really
// is the tail of its predecessor, falling back to lexical similarity
// when no overlap was declared.
func sequenceOverlapScore(chunks []*core.Chunk) float64 {
	if len(chunks) < 2 {
		return 1.0
	}

	total := 0.0
	for i := 0; i < len(chunks)-1; i++ {
		prev, next := chunks[i], chunks[i+1]
		if next.Overlap > 0 && next.Overlap <= len(next.Content) {
			lead := next.Content[:next.Overlap]
			if strings.HasSuffix(prev.Content, lead) {
				total += 1.0
				continue
			}
		}
		total += lexicalOverlap(tail(prev.Content, 100), head(next.Content, 100))
	}
	return total / float64(len(chunks)-1)
}

// lexicalOverlap is the Jaccard similarity of the word sets of two
// snippets.
func lexicalOverlap(a, b string) float64 {
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(wordsA))
	for _, w := range wordsA {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		setB[w] = struct{}{}
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

var sentenceTerminators = []rune{'.', '!', '?', '。', '！', '？'}

func splitSentences(s string) []string {
	if s == "" {
		return nil
	}
	return strings.FieldsFunc(s, func(r rune) bool {
		for _, t := range sentenceTerminators {
			if r == t {
				return true
			}
		}
		return false
	})
}

func endsWithTerminator(s string) bool {
	if s == "" {
		return false
	}
	runes := []rune(s)
	last := runes[len(runes)-1]
	for _, t := range sentenceTerminators {
		if last == t {
			return true
		}
	}
	return false
}

func endsOnBoundary(s string) bool {
	if s == "" {
		return false
	}
	trimmed := strings.TrimRight(s, " \t")
	if strings.HasSuffix(trimmed, "\n") {
		return true
	}
	return endsWithTerminator(strings.TrimSpace(s))
}

func startsWithOrderedMarker(s string) bool {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')')
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func totalLength(chunks []*core.Chunk) int {
	n := 0
	for _, c := range chunks {
		n += len(c.Content)
	}
	return n
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
