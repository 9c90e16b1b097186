package ai

import "context"

// Embedder generates vector embeddings from chunk text. The chunking
// core never calls it itself; callers attach one to enrich chunks
// after chunking. Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in a batch,
	// returned in input order. Batching is cheaper than repeated
	// EmbedText calls.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
