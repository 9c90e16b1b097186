// Package quality scores chunks along five dimensions (coherence,
// density, completeness, integrity, length) and derives deterministic
// improvement recommendations. Assessment is advisory: low scores are
// reported, never enforced.
package quality
