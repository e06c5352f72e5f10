package index

import (
	"context"

	"github.com/poiesic/knowit/core"
)

// Metric identifies the similarity metric an index ranks by.
type Metric string

const (
	// MetricCosine ranks records by cosine similarity in [-1, 1].
	MetricCosine Metric = "cosine"
)

// QueryOptions controls result selection for Store.Query.
type QueryOptions struct {
	// TopK is the maximum number of records to return.
	// Values <= 0 default to DefaultTopK.
	TopK int

	// MinScore excludes records scoring below it.
	// Zero keeps every non-negative match; negative values admit
	// anti-correlated records as well.
	MinScore float32

	// Filter restricts results to records whose metadata contains
	// every listed key/value pair. Nil or empty applies no filter.
	Filter map[string]string
}

// DefaultTopK is the result limit applied when QueryOptions.TopK <= 0.
const DefaultTopK = 10

// Store provides named vector indexes over a storage backend.
// Implementations must be thread-safe and support concurrent
// queries during upserts.
type Store interface {
	// CreateIndex creates a named index accepting vectors of the given width.
	// Creating an existing index with identical dimension and metric is a
	// no-op. Returns core.ErrDimensionMismatch if the name already exists
	// with a different dimension or metric.
	CreateIndex(ctx context.Context, name string, dimension int, metric Metric) error

	// Upsert writes records into the named index, replacing any existing
	// record with the same id. The batch is validated before any write:
	// returns core.ErrDimensionMismatch if any vector width differs from
	// the index dimension, leaving the index untouched.
	// Returns core.ErrIndexNotFound if the index does not exist.
	Upsert(ctx context.Context, name string, records []core.Record) error

	// Query returns up to TopK records most similar to vector, ordered by
	// score descending. Records scoring below MinScore or failing Filter
	// are excluded. An empty result is not an error.
	// Returns core.ErrIndexNotFound if the index does not exist and
	// core.ErrDimensionMismatch if the vector width differs from the
	// index dimension.
	Query(ctx context.Context, name string, vector []float32, opts QueryOptions) ([]core.ScoredRecord, error)

	// Exists reports whether the named index exists and holds at least
	// one record. An empty index reports false.
	Exists(ctx context.Context, name string) (bool, error)

	// Count returns the number of records in the named index.
	// Returns core.ErrIndexNotFound if the index does not exist.
	Count(ctx context.Context, name string) (uint64, error)

	// DropIndex removes the named index and all its records.
	// Dropping an unknown index is a no-op.
	DropIndex(ctx context.Context, name string) error

	// Describe returns the configuration and record count of the named
	// index. Returns core.ErrIndexNotFound if the index does not exist.
	Describe(ctx context.Context, name string) (*core.IndexInfo, error)

	// Close closes the backend and releases resources.
	Close() error
}
