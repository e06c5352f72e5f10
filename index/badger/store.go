package badger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/knowit/core"
	"github.com/poiesic/knowit/index"
)

// Store implements index.Store on a BadgerDB backend.
type Store struct {
	backend *Backend
	logger  *slog.Logger

	// Upserts, creates and drops read-modify-write the index meta.
	// Writers serialize on mu so the stored record count stays exact.
	mu sync.Mutex
}

var _ index.Store = (*Store)(nil)

// NewStore opens a BadgerDB-backed index store at the given path.
// An empty path opens an in-memory database.
func NewStore(path string) (index.Store, error) {
	backend, err := OpenBackend(path, path == "")
	if err != nil {
		return nil, err
	}
	return newStore(backend), nil
}

// newStore wraps an already-open backend.
func newStore(backend *Backend) *Store {
	return &Store{
		backend: backend,
		logger:  slog.Default().With("component", "badger-index"),
	}
}

// CreateIndex creates a named index, or verifies an existing one.
// Re-creating with the same dimension and metric is a no-op; a
// conflicting redefinition returns core.ErrDimensionMismatch.
func (s *Store) CreateIndex(ctx context.Context, name string, dimension int, metric index.Metric) error {
	if err := core.ValidateIndexName(name); err != nil {
		return err
	}
	if err := core.ValidateDimension(dimension); err != nil {
		return err
	}
	if metric != index.MetricCosine {
		return fmt.Errorf("unsupported metric %q", metric)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := s.readIndexInfo(tx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Dimension != dimension || existing.Metric != string(metric) {
				return fmt.Errorf("%w: index %q has dimension %d metric %q, requested dimension %d metric %q",
					core.ErrDimensionMismatch, name, existing.Dimension, existing.Metric, dimension, metric)
			}
			return nil
		}

		info := &core.IndexInfo{
			Name:      name,
			Dimension: dimension,
			Metric:    string(metric),
		}
		if err := tx.Set(makeIndexMetaKey(name), index.MarshalIndexInfo(info)); err != nil {
			return err
		}
		s.logger.Info("created index", "name", name, "dimension", dimension, "metric", metric)
		return tx.Commit()
	}, true)
}

// Upsert writes records into the named index, replacing by id.
// The whole batch is checked against the index dimension before the
// first write, so a bad record leaves the index untouched.
//
// Batches larger than one transaction's write quota are split across
// several commits. Writers serialize on mu and record ids are content
// derived, so retrying an interrupted batch converges to the same
// state.
func (s *Store) Upsert(ctx context.Context, name string, records []core.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var info *core.IndexInfo
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var readErr error
		info, readErr = s.readIndexInfo(tx, name)
		return readErr
	}, false)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("%w: %q", core.ErrIndexNotFound, name)
	}

	for i := range records {
		if len(records[i].Vector) != info.Dimension {
			return fmt.Errorf("%w: record %d has dimension %d, index %q requires %d",
				core.ErrDimensionMismatch, records[i].Id, len(records[i].Vector), name, info.Dimension)
		}
	}

	w, err := s.newChunkedWriter()
	if err != nil {
		return err
	}
	defer w.discard()

	var inserted uint64
	for i := range records {
		key := makeRecordKey(name, records[i].Id)
		fresh, err := w.setIfRoom(key, index.MarshalRecord(&records[i]))
		if err != nil {
			return err
		}
		if fresh {
			inserted++
		}
	}

	if inserted > 0 {
		info.Count += inserted
		if _, err := w.setIfRoom(makeIndexMetaKey(name), index.MarshalIndexInfo(info)); err != nil {
			return err
		}
	}
	if err := w.commit(); err != nil {
		return err
	}

	s.logger.Debug("upserted records",
		"index", name, "batch", len(records), "inserted", inserted, "replaced", uint64(len(records))-inserted)
	return nil
}

// chunkedWriter wraps a write transaction and starts a fresh one
// whenever badger reports the current one is full, so batches are never
// capped by the single-transaction write quota. Callers must hold s.mu.
type chunkedWriter struct {
	db *badger.DB
	tx *badger.Txn
}

func (s *Store) newChunkedWriter() (*chunkedWriter, error) {
	if s.backend.IsClosed() {
		return nil, index.ErrStoreClosed
	}
	db := s.backend.db
	return &chunkedWriter{db: db, tx: db.NewTransaction(true)}, nil
}

// setIfRoom writes key/value, committing and reopening the transaction
// when it fills up. Reports whether the key was absent before the write.
func (w *chunkedWriter) setIfRoom(key, value []byte) (fresh bool, err error) {
	attempt := func() (bool, error) {
		_, err := w.tx.Get(key)
		fresh := err == badger.ErrKeyNotFound
		if err != nil && err != badger.ErrKeyNotFound {
			return false, err
		}
		return fresh, w.tx.Set(key, value)
	}

	fresh, err = attempt()
	if err == badger.ErrTxnTooBig {
		if err = w.renew(); err != nil {
			return false, err
		}
		fresh, err = attempt()
	}
	return fresh, err
}

// deleteIfRoom removes key, committing and reopening the transaction
// when it fills up.
func (w *chunkedWriter) deleteIfRoom(key []byte) error {
	err := w.tx.Delete(key)
	if err == badger.ErrTxnTooBig {
		if err = w.renew(); err != nil {
			return err
		}
		err = w.tx.Delete(key)
	}
	return err
}

func (w *chunkedWriter) renew() error {
	if err := w.tx.Commit(); err != nil {
		return err
	}
	w.tx = w.db.NewTransaction(true)
	return nil
}

func (w *chunkedWriter) commit() error {
	return w.tx.Commit()
}

func (w *chunkedWriter) discard() {
	w.tx.Discard()
}

// Query scans the named index and returns up to TopK records scoring at
// least MinScore against the query vector, ordered by score descending.
func (s *Store) Query(ctx context.Context, name string, vector []float32, opts index.QueryOptions) ([]core.ScoredRecord, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = index.DefaultTopK
	}

	var results []core.ScoredRecord
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		info, err := s.readIndexInfo(tx, name)
		if err != nil {
			return err
		}
		if info == nil {
			return fmt.Errorf("%w: %q", core.ErrIndexNotFound, name)
		}
		if len(vector) != info.Dimension {
			return fmt.Errorf("%w: query vector has dimension %d, index %q requires %d",
				core.ErrDimensionMismatch, len(vector), name, info.Dimension)
		}

		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = makeRecordScanPrefix(name)
		iter := tx.NewIterator(iterOpts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *core.Record
			err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				record, unmarshalErr = index.UnmarshalRecord(val)
				if unmarshalErr != nil {
					return fmt.Errorf("%w: %v", index.ErrSerializationFailed, unmarshalErr)
				}
				return nil
			})
			if err != nil {
				return err
			}

			score := cosineSimilarity(vector, record.Vector)
			if score < opts.MinScore {
				continue
			}
			if !matchesFilter(record.Metadata, opts.Filter) {
				continue
			}

			results = append(results, core.ScoredRecord{
				Id:       record.Id,
				Score:    score,
				Metadata: record.Metadata,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by score descending
	slices.SortFunc(results, func(a, b core.ScoredRecord) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// Exists reports whether the named index exists and holds at least one
// record.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		info, err := s.readIndexInfo(tx, name)
		if err != nil {
			return err
		}
		exists = info != nil && info.Count > 0
		return nil
	}, false)
	return exists, err
}

// Count returns the number of records in the named index.
func (s *Store) Count(ctx context.Context, name string) (uint64, error) {
	info, err := s.Describe(ctx, name)
	if err != nil {
		return 0, err
	}
	return info.Count, nil
}

// DropIndex removes the named index and all its records.
// Dropping an unknown index is a no-op. Large indexes are deleted
// across several commits; the meta key goes last, so a half-finished
// drop stays visible and a retry can finish the job.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		info *core.IndexInfo
		keys [][]byte
	)
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var readErr error
		info, readErr = s.readIndexInfo(tx, name)
		if readErr != nil || info == nil {
			return readErr
		}

		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = makeRecordScanPrefix(name)
		iterOpts.PrefetchValues = false
		iter := tx.NewIterator(iterOpts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		return nil
	}, false)
	if err != nil {
		return err
	}
	if info == nil {
		return nil
	}

	w, err := s.newChunkedWriter()
	if err != nil {
		return err
	}
	defer w.discard()

	for _, key := range keys {
		if err := w.deleteIfRoom(key); err != nil {
			return err
		}
	}
	if err := w.deleteIfRoom(makeIndexMetaKey(name)); err != nil {
		return err
	}
	if err := w.commit(); err != nil {
		return err
	}

	s.logger.Info("dropped index", "name", name, "records", len(keys))
	return nil
}

// Describe returns the configuration and record count of the named index.
func (s *Store) Describe(ctx context.Context, name string) (*core.IndexInfo, error) {
	var info *core.IndexInfo
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var readErr error
		info, readErr = s.readIndexInfo(tx, name)
		if readErr != nil {
			return readErr
		}
		if info == nil {
			return fmt.Errorf("%w: %q", core.ErrIndexNotFound, name)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.backend.Close()
}

// readIndexInfo reads an index's meta record from the transaction.
// Returns nil without error when the index does not exist.
func (s *Store) readIndexInfo(tx *badger.Txn, name string) (*core.IndexInfo, error) {
	item, err := tx.Get(makeIndexMetaKey(name))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var info *core.IndexInfo
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		info, unmarshalErr = index.UnmarshalIndexInfo(val)
		if unmarshalErr != nil {
			return fmt.Errorf("%w: %v", index.ErrSerializationFailed, unmarshalErr)
		}
		return nil
	})
	return info, err
}

// matchesFilter reports whether metadata contains every filter pair.
func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}
