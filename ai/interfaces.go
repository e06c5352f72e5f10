package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text
	// and always has length Dimension().
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings.
	// Implementations group inputs into batched requests to amortize
	// network overhead. The returned slice contains one embedding per
	// input text, in the same order as the input.
	// Returns an error if any embedding generation fails; partial
	// results are never returned.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed width of vectors produced by this
	// embedder. All vectors stored in an index must share it.
	Dimension() int
}
