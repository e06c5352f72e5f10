package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/knowit/ai"
	"github.com/poiesic/knowit/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder  embeddings.Embedder
	dimension int
	batchSize int
	logger    *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// newEmbedder is an internal constructor that returns the concrete type.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that
	// don't require authentication
	token := config.APIKey
	if token == "" {
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(token),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	// Wrap in langchaingo embedder
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder:  embedder,
		dimension: config.Dimension,
		batchSize: config.BatchSize,
		logger:    slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// Dimension returns the configured embedding width.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text",
		"length", len(text),
		"text", truncateForLog(text, 80))

	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingService, err)
	}

	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", core.ErrEmbeddingService, len(vectors))
	}

	if err := e.checkDimension(vectors[0]); err != nil {
		return nil, err
	}

	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings,
// splitting the input into batches of at most BatchSize per request and
// stitching the results back together in input order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts), "batch_size", e.batchSize)

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors, err := e.embedder.EmbedDocuments(ctx, batch)
		if err != nil {
			e.logger.Error("failed to generate embeddings", "batch_start", start, "batch_len", len(batch), "err", err)
			return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingService, err)
		}

		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: batch of %d texts returned %d embeddings",
				core.ErrEmbeddingService, len(batch), len(vectors))
		}

		for _, vec := range vectors {
			if err := e.checkDimension(vec); err != nil {
				return nil, err
			}
		}

		results = append(results, vectors...)
	}

	return results, nil
}

func (e *Embedder) checkDimension(vec []float32) error {
	if len(vec) != e.dimension {
		return fmt.Errorf("%w: service returned width %d, expected %d",
			core.ErrDimensionMismatch, len(vec), e.dimension)
	}
	return nil
}
