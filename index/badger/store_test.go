package badger

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/poiesic/knowit/core"
	"github.com/poiesic/knowit/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) index.Store {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func textRecord(id core.ID, vector []float32, text, source string) core.Record {
	return core.Record{
		Id:     id,
		Vector: vector,
		Metadata: map[string]string{
			core.MetadataKeyText:   text,
			core.MetadataKeySource: source,
		},
	}
}

func TestCreateIndex(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine)
	require.NoError(t, err)

	info, err := store.Describe(ctx, "knowledge")
	require.NoError(t, err)
	assert.Equal(t, "knowledge", info.Name)
	assert.Equal(t, 3, info.Dimension)
	assert.Equal(t, string(index.MetricCosine), info.Metric)
	assert.Equal(t, uint64(0), info.Count)
}

func TestCreateIndex_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))
	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))

	info, err := store.Describe(ctx, "knowledge")
	require.NoError(t, err)
	assert.Equal(t, 3, info.Dimension)
}

func TestCreateIndex_DimensionConflict(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))

	err := store.CreateIndex(ctx, "knowledge", 4, index.MetricCosine)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	// Original configuration untouched
	info, err := store.Describe(ctx, "knowledge")
	require.NoError(t, err)
	assert.Equal(t, 3, info.Dimension)
}

func TestCreateIndex_InvalidInputs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("empty name", func(t *testing.T) {
		err := store.CreateIndex(ctx, "", 3, index.MetricCosine)
		assert.ErrorIs(t, err, core.ErrInvalidIndexName)
	})

	t.Run("zero dimension", func(t *testing.T) {
		err := store.CreateIndex(ctx, "knowledge", 0, index.MetricCosine)
		assert.ErrorIs(t, err, core.ErrInvalidDimension)
	})

	t.Run("unsupported metric", func(t *testing.T) {
		err := store.CreateIndex(ctx, "knowledge", 3, index.Metric("euclidean"))
		assert.Error(t, err)
	})
}

func TestUpsert_InsertAndCount(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))

	records := []core.Record{
		textRecord(1, []float32{1, 0, 0}, "first", "a.md"),
		textRecord(2, []float32{0, 1, 0}, "second", "a.md"),
		textRecord(3, []float32{0, 0, 1}, "third", "b.md"),
	}
	require.NoError(t, store.Upsert(ctx, "knowledge", records))

	count, err := store.Count(ctx, "knowledge")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestUpsert_ReplacesById(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))
	require.NoError(t, store.Upsert(ctx, "knowledge", []core.Record{
		textRecord(1, []float32{1, 0, 0}, "original", "a.md"),
	}))
	require.NoError(t, store.Upsert(ctx, "knowledge", []core.Record{
		textRecord(1, []float32{0, 1, 0}, "replaced", "a.md"),
	}))

	count, err := store.Count(ctx, "knowledge")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	results, err := store.Query(ctx, "knowledge", []float32{0, 1, 0}, index.QueryOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.ID(1), results[0].Id)
	assert.Equal(t, "replaced", results[0].Metadata[core.MetadataKeyText])
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestUpsert_UnknownIndex(t *testing.T) {
	store := setupTestStore(t)

	err := store.Upsert(context.Background(), "missing", []core.Record{
		textRecord(1, []float32{1, 0, 0}, "text", "a.md"),
	})
	assert.ErrorIs(t, err, core.ErrIndexNotFound)
}

func TestUpsert_DimensionMismatchRejectsBatch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))

	records := []core.Record{
		textRecord(1, []float32{1, 0, 0}, "good", "a.md"),
		textRecord(2, []float32{1, 0}, "bad width", "a.md"),
	}
	err := store.Upsert(ctx, "knowledge", records)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	// Nothing from the batch was written
	count, err := store.Count(ctx, "knowledge")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestUpsert_EmptyBatch(t *testing.T) {
	store := setupTestStore(t)

	err := store.Upsert(context.Background(), "missing", nil)
	assert.NoError(t, err)
}

func TestQuery_OrdersByScoreDescending(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))
	require.NoError(t, store.Upsert(ctx, "knowledge", []core.Record{
		textRecord(1, []float32{1, 0, 0}, "exact match", "a.md"),
		textRecord(2, []float32{0.9, 0.1, 0}, "close match", "a.md"),
		textRecord(3, []float32{0, 0, 1}, "unrelated", "b.md"),
	}))

	results, err := store.Query(ctx, "knowledge", []float32{1, 0, 0}, index.QueryOptions{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i := 0; i < len(results)-1; i++ {
		assert.GreaterOrEqual(t, results[i].Score, results[i+1].Score)
	}
	assert.Equal(t, core.ID(1), results[0].Id)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestQuery_MinScoreFiltering(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))
	require.NoError(t, store.Upsert(ctx, "knowledge", []core.Record{
		textRecord(1, []float32{1, 0, 0}, "high", "a.md"),
		textRecord(2, []float32{0.7, 0.7, 0}, "medium", "a.md"),
		textRecord(3, []float32{0, 1, 0}, "zero", "a.md"),
	}))

	query := []float32{1, 0, 0}

	t.Run("high threshold", func(t *testing.T) {
		results, err := store.Query(ctx, "knowledge", query, index.QueryOptions{TopK: 10, MinScore: 0.95})
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("medium threshold", func(t *testing.T) {
		results, err := store.Query(ctx, "knowledge", query, index.QueryOptions{TopK: 10, MinScore: 0.5})
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("zero threshold keeps orthogonal matches", func(t *testing.T) {
		results, err := store.Query(ctx, "knowledge", query, index.QueryOptions{TopK: 10})
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})

	t.Run("every score clears the threshold", func(t *testing.T) {
		results, err := store.Query(ctx, "knowledge", query, index.QueryOptions{TopK: 10, MinScore: 0.5})
		require.NoError(t, err)
		for _, r := range results {
			assert.GreaterOrEqual(t, r.Score, float32(0.5))
		}
	})
}

func TestQuery_TopKLimit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))

	records := make([]core.Record, 10)
	for i := range records {
		records[i] = textRecord(core.ID(i+1), []float32{1, 0, 0}, "chunk", "a.md")
	}
	require.NoError(t, store.Upsert(ctx, "knowledge", records))

	results, err := store.Query(ctx, "knowledge", []float32{1, 0, 0}, index.QueryOptions{TopK: 4})
	require.NoError(t, err)
	assert.Len(t, results, 4)

	t.Run("defaults when TopK is zero", func(t *testing.T) {
		results, err := store.Query(ctx, "knowledge", []float32{1, 0, 0}, index.QueryOptions{})
		require.NoError(t, err)
		assert.Len(t, results, index.DefaultTopK)
	})
}

func TestQuery_MetadataFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))
	require.NoError(t, store.Upsert(ctx, "knowledge", []core.Record{
		textRecord(1, []float32{1, 0, 0}, "from a", "a.md"),
		textRecord(2, []float32{1, 0, 0}, "from b", "b.md"),
	}))

	results, err := store.Query(ctx, "knowledge", []float32{1, 0, 0}, index.QueryOptions{
		TopK:   10,
		Filter: map[string]string{core.MetadataKeySource: "b.md"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.ID(2), results[0].Id)
}

func TestQuery_EmptyIndex(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))

	results, err := store.Query(ctx, "knowledge", []float32{1, 0, 0}, index.QueryOptions{TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQuery_UnknownIndex(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Query(context.Background(), "missing", []float32{1, 0, 0}, index.QueryOptions{TopK: 10})
	assert.ErrorIs(t, err, core.ErrIndexNotFound)
}

func TestQuery_WrongDimension(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))

	_, err := store.Query(ctx, "knowledge", []float32{1, 0}, index.QueryOptions{TopK: 10})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestExists(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("unknown index", func(t *testing.T) {
		exists, err := store.Exists(ctx, "knowledge")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))

	t.Run("empty index", func(t *testing.T) {
		exists, err := store.Exists(ctx, "knowledge")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	require.NoError(t, store.Upsert(ctx, "knowledge", []core.Record{
		textRecord(1, []float32{1, 0, 0}, "text", "a.md"),
	}))

	t.Run("populated index", func(t *testing.T) {
		exists, err := store.Exists(ctx, "knowledge")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestDropIndex(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))
	require.NoError(t, store.Upsert(ctx, "knowledge", []core.Record{
		textRecord(1, []float32{1, 0, 0}, "text", "a.md"),
		textRecord(2, []float32{0, 1, 0}, "more text", "a.md"),
	}))

	require.NoError(t, store.DropIndex(ctx, "knowledge"))

	exists, err := store.Exists(ctx, "knowledge")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Describe(ctx, "knowledge")
	assert.ErrorIs(t, err, core.ErrIndexNotFound)

	// Recreating starts from a clean slate
	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))
	count, err := store.Count(ctx, "knowledge")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestDropIndex_Unknown(t *testing.T) {
	store := setupTestStore(t)

	err := store.DropIndex(context.Background(), "missing")
	assert.NoError(t, err)
}

func TestDropIndex_LeavesOtherIndexes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIndex(ctx, "first", 3, index.MetricCosine))
	require.NoError(t, store.CreateIndex(ctx, "second", 3, index.MetricCosine))
	require.NoError(t, store.Upsert(ctx, "first", []core.Record{
		textRecord(1, []float32{1, 0, 0}, "keep", "a.md"),
	}))
	require.NoError(t, store.Upsert(ctx, "second", []core.Record{
		textRecord(1, []float32{1, 0, 0}, "drop", "b.md"),
	}))

	require.NoError(t, store.DropIndex(ctx, "second"))

	count, err := store.Count(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.CreateIndex(ctx, "knowledge", 3, index.MetricCosine))
	require.NoError(t, store.Upsert(ctx, "knowledge", []core.Record{
		textRecord(1, []float32{1, 0, 0}, "persisted", "a.md"),
	}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	exists, err := reopened.Exists(ctx, "knowledge")
	require.NoError(t, err)
	assert.True(t, exists)

	results, err := reopened.Query(ctx, "knowledge", []float32{1, 0, 0}, index.QueryOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "persisted", results[0].Metadata[core.MetadataKeyText])
}

// smallTxnStore opens an in-memory store whose transactions fill up
// after a few hundred writes, so batch splitting actually kicks in.
func smallTxnStore(t *testing.T) index.Store {
	t.Helper()

	opts := badgerdb.DefaultOptions("").
		WithInMemory(true).
		WithMemTableSize(1 << 20).
		WithValueThreshold(1 << 10)
	opts.Logger = nil

	db, err := badgerdb.Open(opts)
	require.NoError(t, err)

	backend := &Backend{db: db, logger: slog.Default()}
	t.Cleanup(func() { backend.Close() })
	return newStore(backend)
}

func bigBatch(n, dim int) []core.Record {
	records := make([]core.Record, n)
	for i := range records {
		vec := make([]float32, dim)
		vec[i%dim] = 1
		records[i] = textRecord(core.ID(i+1), vec, fmt.Sprintf("chunk %d of a very long document", i), "big.md")
	}
	return records
}

func TestUpsert_BatchLargerThanOneTransaction(t *testing.T) {
	store := smallTxnStore(t)
	ctx := context.Background()

	const (
		dim = 8
		n   = 4000
	)
	require.NoError(t, store.CreateIndex(ctx, "knowledge", dim, index.MetricCosine))

	records := bigBatch(n, dim)
	require.NoError(t, store.Upsert(ctx, "knowledge", records))

	count, err := store.Count(ctx, "knowledge")
	require.NoError(t, err)
	assert.Equal(t, uint64(n), count)

	// Replaying the batch replaces by id rather than duplicating.
	require.NoError(t, store.Upsert(ctx, "knowledge", records))
	count, err = store.Count(ctx, "knowledge")
	require.NoError(t, err)
	assert.Equal(t, uint64(n), count)

	results, err := store.Query(ctx, "knowledge", []float32{1, 0, 0, 0, 0, 0, 0, 0}, index.QueryOptions{TopK: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)
}

func TestDropIndex_LargerThanOneTransaction(t *testing.T) {
	store := smallTxnStore(t)
	ctx := context.Background()

	const (
		dim = 8
		n   = 4000
	)
	require.NoError(t, store.CreateIndex(ctx, "knowledge", dim, index.MetricCosine))
	require.NoError(t, store.Upsert(ctx, "knowledge", bigBatch(n, dim)))

	require.NoError(t, store.DropIndex(ctx, "knowledge"))

	exists, err := store.Exists(ctx, "knowledge")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Describe(ctx, "knowledge")
	assert.ErrorIs(t, err, core.ErrIndexNotFound)
}
