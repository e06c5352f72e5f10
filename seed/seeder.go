// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/knowit/ai"
	"github.com/poiesic/knowit/chunker"
	"github.com/poiesic/knowit/core"
	"github.com/poiesic/knowit/index"
	"github.com/poiesic/knowit/loader"
)

// DefaultIndexName is the index seeded and queried when no name is
// configured.
const DefaultIndexName = "knowledge"

// State describes where a seeding run ended up.
type State int

const (
	// StateNotSeeded means the index holds no records and no run completed.
	StateNotSeeded State = iota

	// StateSeeding is the in-flight state of an active run.
	StateSeeding

	// StateSeeded means the index holds records, either from this run or
	// an earlier one.
	StateSeeded

	// StateFailed means this run aborted; the index is left empty so the
	// next invocation retries.
	StateFailed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateNotSeeded:
		return "not_seeded"
	case StateSeeding:
		return "seeding"
	case StateSeeded:
		return "seeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Seeder loads a document directory into a vector index exactly once.
// Whether seeding is needed is inferred from index non-emptiness; no
// separate flag is stored anywhere.
type Seeder struct {
	store      index.Store
	embedder   ai.Embedder
	loader     *loader.Loader
	chunker    *chunker.Chunker
	indexName  string
	workers    int
	maxRetries int
	retryDelay time.Duration
	progress   io.Writer
	logger     *slog.Logger
}

// documentBatch holds the embedded records of one source document.
type documentBatch struct {
	source  string
	records []core.Record
}

// Option configures a Seeder.
type Option func(*Seeder) error

// WithIndexName sets the index to seed.
// Default is DefaultIndexName.
func WithIndexName(name string) Option {
	return func(s *Seeder) error {
		if err := core.ValidateIndexName(name); err != nil {
			return err
		}
		s.indexName = name
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Seeder) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithWorkers sets how many documents are embedded concurrently.
// Values below 2 keep the run sequential.
func WithWorkers(n int) Option {
	return func(s *Seeder) error {
		if n < 1 {
			n = 1
		}
		s.workers = n
		return nil
	}
}

// WithMaxRetries sets the attempt limit for each embedding batch.
// Default is 3.
func WithMaxRetries(n int) Option {
	return func(s *Seeder) error {
		if n <= 0 {
			return ErrInvalidMaxAttempts
		}
		s.maxRetries = n
		return nil
	}
}

// WithRetryDelay sets the base delay for embedding retries.
// Default is 1s.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Seeder) error {
		if d < 0 {
			d = 0
		}
		s.retryDelay = d
		return nil
	}
}

// WithProgress enables progress reporting to the given writer,
// typically os.Stderr. Default is off.
func WithProgress(w io.Writer) Option {
	return func(s *Seeder) error {
		s.progress = w
		return nil
	}
}

// NewSeeder creates a seeder over the given store, embedder, loader and
// chunker. All four dependencies are required.
func NewSeeder(store index.Store, embedder ai.Embedder, ldr *loader.Loader, chk *chunker.Chunker, opts ...Option) (*Seeder, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if ldr == nil {
		return nil, ErrLoaderRequired
	}
	if chk == nil {
		return nil, ErrChunkerRequired
	}

	s := &Seeder{
		store:      store,
		embedder:   embedder,
		loader:     ldr,
		chunker:    chk,
		indexName:  DefaultIndexName,
		workers:    1,
		maxRetries: 3,
		retryDelay: 1 * time.Second,
		logger:     slog.Default().With("component", "seeder"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// IndexName returns the index this seeder targets.
func (s *Seeder) IndexName() string {
	return s.indexName
}

// SeedIfNeeded loads, chunks, embeds and indexes every document under
// docsDir, unless the index already holds records.
//
// The run is all-or-nothing: every document is embedded before the first
// upsert, so a loader, chunker or embedding failure leaves the index
// empty and the next invocation retries. A partial-upsert failure is
// compensated with a best-effort DropIndex.
func (s *Seeder) SeedIfNeeded(ctx context.Context, docsDir string) (State, error) {
	exists, err := s.store.Exists(ctx, s.indexName)
	if err != nil {
		return s.fail(fmt.Errorf("check index: %w", err))
	}
	if exists {
		s.logger.Info("index already seeded, skipping", "index", s.indexName)
		return StateSeeded, nil
	}

	s.logger.Info("seeding index", "index", s.indexName, "dir", docsDir, "state", StateSeeding)

	if err := s.store.CreateIndex(ctx, s.indexName, s.embedder.Dimension(), index.MetricCosine); err != nil {
		return s.fail(fmt.Errorf("create index: %w", err))
	}

	docs, err := s.loader.Load(ctx, docsDir)
	if err != nil {
		return s.fail(fmt.Errorf("load documents: %w", err))
	}
	if len(docs) == 0 {
		s.logger.Warn("no documents to seed", "dir", docsDir)
		return StateNotSeeded, nil
	}

	var tracker *ProgressTracker
	if s.progress != nil {
		tracker = NewProgressTracker(s.progress, len(docs), 1)
		tracker.Start()
	}

	batches, err := s.embedAll(ctx, docs, tracker)
	if err != nil {
		return s.fail(err)
	}

	var upserted int
	for _, batch := range batches {
		if len(batch.records) == 0 {
			continue
		}
		if err := s.store.Upsert(ctx, s.indexName, batch.records); err != nil {
			if upserted > 0 {
				s.rollback(ctx)
			}
			return s.fail(fmt.Errorf("upsert %s: %w", batch.source, err))
		}
		upserted += len(batch.records)
	}

	if tracker != nil {
		tracker.Finish()
	}

	s.logger.Info("seeding complete",
		"index", s.indexName, "documents", len(docs), "records", upserted, "state", StateSeeded)
	return StateSeeded, nil
}

// Reset drops the index so the next SeedIfNeeded rebuilds it from the
// source directory. This is the manual re-seed path for changed sources.
func (s *Seeder) Reset(ctx context.Context) error {
	s.logger.Info("dropping index for reseed", "index", s.indexName)
	return s.store.DropIndex(ctx, s.indexName)
}

func (s *Seeder) fail(err error) (State, error) {
	s.logger.Error("seeding failed", "index", s.indexName, "state", StateFailed, "err", err)
	return StateFailed, err
}

// rollback restores index emptiness after a partial upsert, keeping the
// non-emptiness guard open for the next run.
func (s *Seeder) rollback(ctx context.Context) {
	if err := s.store.DropIndex(context.WithoutCancel(ctx), s.indexName); err != nil {
		s.logger.Error("could not drop partially seeded index", "index", s.indexName, "err", err)
	}
}

// embedAll chunks and embeds every document without touching the index.
func (s *Seeder) embedAll(ctx context.Context, docs []core.Document, tracker *ProgressTracker) ([]documentBatch, error) {
	batches := make([]documentBatch, len(docs))

	if s.workers > 1 {
		if err := s.embedConcurrent(ctx, docs, batches, tracker); err != nil {
			return nil, err
		}
		return batches, nil
	}

	for i := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := s.embedDocument(ctx, docs[i])
		if err != nil {
			return nil, err
		}
		batches[i] = batch
		if tracker != nil {
			tracker.Increment(1)
		}
	}
	return batches, nil
}

// embedConcurrent fans documents out across a worker pool. Each worker
// writes only its own batches slot; the first error wins.
func (s *Seeder) embedConcurrent(ctx context.Context, docs []core.Document, batches []documentBatch, tracker *ProgressTracker) error {
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	for i := range docs {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil || failed() {
				return
			}
			batch, err := s.embedDocument(ctx, docs[i])
			if err != nil {
				setErr(err)
				return
			}
			batches[i] = batch
			if tracker != nil {
				tracker.Increment(1)
			}
		})
		if submitErr != nil {
			wg.Done()
			setErr(submitErr)
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// embedDocument turns one document into records via BuildRecords,
// retrying transient embedding failures with backoff.
// Whitespace-only documents produce an empty batch rather than an error.
func (s *Seeder) embedDocument(ctx context.Context, doc core.Document) (documentBatch, error) {
	batch := documentBatch{source: doc.Source}

	if strings.TrimSpace(doc.Text) == "" {
		s.logger.Warn("skipping empty document", "source", doc.Source)
		return batch, nil
	}

	err := RetryWithBackoff(ctx, func() error {
		var buildErr error
		batch.records, buildErr = BuildRecords(ctx, s.chunker, s.embedder, doc)
		return buildErr
	}, s.maxRetries, s.retryDelay)
	if err != nil {
		return batch, fmt.Errorf("embed %s after %d attempts: %w", doc.Source, s.maxRetries, err)
	}

	s.logger.Debug("embedded document", "source", doc.Source, "records", len(batch.records))
	return batch, nil
}
