package core

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	cfg := DefaultConfig()

	fp1 := FingerprintFor("hello world", cfg)
	fp2 := FingerprintFor("hello world", cfg)
	if fp1 != fp2 {
		t.Errorf("same input produced different fingerprints: %d != %d", fp1, fp2)
	}

	fp3 := FingerprintFor("hello worlds", cfg)
	if fp1 == fp3 {
		t.Error("different content produced identical fingerprints")
	}
}

func TestFingerprintVariesWithConfig(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	b.TargetChunkSize = 2000

	if FingerprintFor("content", a) == FingerprintFor("content", b) {
		t.Error("different config produced identical fingerprints")
	}
}

func TestChunkID(t *testing.T) {
	if got := ChunkID("doc1", 0); got != "doc1_chunk_0000" {
		t.Errorf("unexpected chunk id: %s", got)
	}
	if got := ChunkID("doc1", 42); got != "doc1_chunk_0042" {
		t.Errorf("unexpected chunk id: %s", got)
	}
}

func TestChunkBody(t *testing.T) {
	c := &Chunk{Content: "abcdef", Overlap: 2}
	if got := c.Body(); got != "cdef" {
		t.Errorf("expected body without overlap lead, got %q", got)
	}

	c = &Chunk{Content: "abc", Overlap: 0}
	if got := c.Body(); got != "abc" {
		t.Errorf("expected full content, got %q", got)
	}
}

func TestStrategyRoundTrip(t *testing.T) {
	for _, s := range []Strategy{StrategySimple, StrategyStructural, StrategySemantic, StrategyHybrid, StrategyAdaptive} {
		parsed, err := ParseStrategy(s.String())
		if err != nil {
			t.Fatalf("ParseStrategy(%q): %v", s, err)
		}
		if parsed != s {
			t.Errorf("round trip mismatch: %v -> %v", s, parsed)
		}
	}

	if _, err := ParseStrategy("bogus"); err == nil {
		t.Error("expected error for unknown strategy name")
	}
}
