package mock

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedderWithDimension(128)
	ctx := context.Background()

	v1, err := m.EmbedText(ctx, "the quick brown fox")
	require.NoError(t, err)
	v2, err := m.EmbedText(ctx, "the quick brown fox")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 128)
	assert.Equal(t, 2, m.CallCount())
}

func TestMockEmbedder_SharedTokensScoreHigher(t *testing.T) {
	m := NewMockEmbedderWithDimension(256)
	ctx := context.Background()

	chunk, err := m.EmbedText(ctx, "BioSynth Corporation builds enzyme reactors for industrial use.")
	require.NoError(t, err)
	query, err := m.EmbedText(ctx, "Tell me about BioSynth")
	require.NoError(t, err)
	unrelated, err := m.EmbedText(ctx, "A gentle breeze rustled the old oak leaves at dusk.")
	require.NoError(t, err)

	related := cosine(query, chunk)
	distant := cosine(query, unrelated)
	assert.Greater(t, related, distant,
		"query sharing a token with the chunk should score higher than an unrelated text")
	assert.Greater(t, related, 0.0)
}

func TestMockEmbedder_BatchMatchesSingle(t *testing.T) {
	m := NewMockEmbedderWithDimension(64)
	ctx := context.Background()

	texts := []string{"first text", "second text", "third text"}
	batch, err := m.EmbedTexts(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))
	assert.Equal(t, 1, m.BatchCount())

	for i, text := range texts {
		single, err := m.EmbedText(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "batch vector %d differs from single embedding", i)
	}
}

func TestMockEmbedder_InjectedBehavior(t *testing.T) {
	m := NewMockEmbedderWithDimension(8)
	m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 0, 0, 0, 0, 0, 0, 0}
		}
		return out, nil
	}

	got, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0, 0, 0, 0, 0}, got[0])

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	assert.Nil(t, m.EmbedTextsFunc)
}

// Seeding with multiple workers embeds from several goroutines at once,
// so the counters must hold up under concurrent embed calls.
func TestMockEmbedder_ConcurrentUse(t *testing.T) {
	m := NewMockEmbedderWithDimension(16)
	ctx := context.Background()

	const goroutines = 8
	const callsPerGoroutine = 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < callsPerGoroutine; i++ {
				_, err := m.EmbedTexts(ctx, []string{"alpha", "beta"})
				assert.NoError(t, err)
				_, err = m.EmbedText(ctx, "gamma")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*callsPerGoroutine*2, m.CallCount())
	assert.Equal(t, goroutines*callsPerGoroutine, m.BatchCount())
}
