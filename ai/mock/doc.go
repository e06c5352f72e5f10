// Package mock provides a test double implementation of ai.Embedder.
//
// The mock allows tests to run without an external embedding service
// while keeping similarity ranking meaningful: its default vectors are
// deterministic functions of the text's tokens, so texts sharing words
// score higher under cosine similarity than unrelated texts.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockEmbedder := mock.NewMockEmbedder()
//	vec, err := mockEmbedder.EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	mockEmbedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("service down")
//	}
//
//	// Check call counts
//	count := mockEmbedder.CallCount()
//	batches := mockEmbedder.BatchCount()
package mock
