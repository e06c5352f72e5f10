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


package knowit

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/knowit/ai"
	"github.com/poiesic/knowit/ai/openai"
	"github.com/poiesic/knowit/chunker"
	"github.com/poiesic/knowit/core"
	"github.com/poiesic/knowit/index"
	"github.com/poiesic/knowit/index/badger"
	"github.com/poiesic/knowit/index/pgvector"
	"github.com/poiesic/knowit/loader"
	"github.com/poiesic/knowit/search"
	"github.com/poiesic/knowit/seed"
)

// KnowledgeBase wires the full ingestion pipeline together: document
// loader, chunker, embedder, vector index, seeding orchestrator and
// knowledge query. Construct one at process start and pass it to the
// layers that need it; there is no hidden global state.
type KnowledgeBase struct {
	store     index.Store
	embedder  ai.Embedder
	loader    *loader.Loader
	chunker   *chunker.Chunker
	seeder    *seed.Seeder
	searcher  *search.Searcher
	indexName string
	logger    *slog.Logger
}

// Option configures a KnowledgeBase.
type Option func(*kbOptions)

type kbOptions struct {
	aiConfig   *ai.Config
	embedder   ai.Embedder
	chunkCfg   chunker.Config
	extensions []string
	indexName  string
	workers    int
	progress   io.Writer
	logger     *slog.Logger
}

// WithAIConfig sets the embedding service configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *kbOptions) {
		if cfg != nil {
			o.aiConfig = cfg
		}
	}
}

// WithEmbedder injects a pre-built embedder, bypassing the embedding
// service configuration. Intended for tests.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *kbOptions) {
		o.embedder = embedder
	}
}

// WithChunking sets the chunk window size and overlap.
// Defaults are chunker.DefaultConfig().
func WithChunking(maxSize, overlap int) Option {
	return func(o *kbOptions) {
		o.chunkCfg.MaxSize = maxSize
		o.chunkCfg.Overlap = overlap
	}
}

// WithPlainTextChunking disables markdown-structure-aware chunk cuts.
func WithPlainTextChunking() Option {
	return func(o *kbOptions) {
		o.chunkCfg.PreserveStructure = false
	}
}

// WithExtensions sets the source file extensions the loader discovers.
// Default is loader.DefaultExtensions.
func WithExtensions(exts ...string) Option {
	return func(o *kbOptions) {
		o.extensions = exts
	}
}

// WithIndexName sets the vector index name.
// Default is seed.DefaultIndexName.
func WithIndexName(name string) Option {
	return func(o *kbOptions) {
		o.indexName = name
	}
}

// WithWorkers sets how many documents are embedded concurrently during
// seeding. Default is sequential.
func WithWorkers(n int) Option {
	return func(o *kbOptions) {
		o.workers = n
	}
}

// WithProgress enables seeding progress reporting to the given writer,
// typically os.Stderr. Default is off.
func WithProgress(w io.Writer) Option {
	return func(o *kbOptions) {
		o.progress = w
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *kbOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New opens the configured index backend and assembles the pipeline
// around it. The backend choice is an explicit tag on the config, not
// inferred from the shape of a connection string.
func New(backend index.Config, opts ...Option) (*KnowledgeBase, error) {
	options := &kbOptions{
		aiConfig:  ai.DefaultConfig(),
		chunkCfg:  chunker.DefaultConfig(),
		indexName: seed.DefaultIndexName,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	store, err := openStore(backend)
	if err != nil {
		return nil, err
	}

	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	loaderOpts := []loader.Option{loader.WithLogger(options.logger.With("component", "loader"))}
	if len(options.extensions) > 0 {
		loaderOpts = append(loaderOpts, loader.WithExtensions(options.extensions...))
	}
	ldr := loader.NewLoader(loaderOpts...)

	chk, err := chunker.NewChunker(options.chunkCfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	seedOpts := []seed.Option{
		seed.WithIndexName(options.indexName),
		seed.WithLogger(options.logger.With("component", "seeder")),
	}
	if options.workers > 1 {
		seedOpts = append(seedOpts, seed.WithWorkers(options.workers))
	}
	if options.progress != nil {
		seedOpts = append(seedOpts, seed.WithProgress(options.progress))
	}
	seeder, err := seed.NewSeeder(store, embedder, ldr, chk, seedOpts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(store, embedder,
		search.WithIndexName(options.indexName),
		search.WithLogger(options.logger.With("component", "searcher")))
	if err != nil {
		store.Close()
		return nil, err
	}

	return &KnowledgeBase{
		store:     store,
		embedder:  embedder,
		loader:    ldr,
		chunker:   chk,
		seeder:    seeder,
		searcher:  searcher,
		indexName: options.indexName,
		logger:    options.logger,
	}, nil
}

// openStore resolves the backend config into a concrete store.
func openStore(backend index.Config) (index.Store, error) {
	if err := backend.Validate(); err != nil {
		return nil, err
	}
	switch backend.Kind {
	case index.KindEmbedded:
		return badger.NewStore(backend.Path)
	case index.KindRemote:
		return pgvector.NewStore(backend.ConnString)
	default:
		return nil, fmt.Errorf("%w: unsupported backend kind %v", index.ErrInvalidConfig, backend.Kind)
	}
}

// SeedIfNeeded loads, chunks, embeds and indexes every document under
// docsDir unless the index already holds records. Call it once from
// the process entry point before serving queries.
func (kb *KnowledgeBase) SeedIfNeeded(ctx context.Context, docsDir string) (seed.State, error) {
	return kb.seeder.SeedIfNeeded(ctx, docsDir)
}

// Query embeds text and returns up to topK similar records scoring at
// least minScore, retrying once with a zero floor when the strict query
// returns nothing. An unseeded knowledge base yields an empty result.
func (kb *KnowledgeBase) Query(ctx context.Context, text string, topK int, minScore float32) ([]core.ScoredRecord, error) {
	return kb.searcher.Search(ctx, text, topK, minScore)
}

// AddRecord ingests a single piece of knowledge at runtime: content is
// chunked, embedded and upserted under the given topic as its source.
// Existing records are untouched; the index is created on first use.
func (kb *KnowledgeBase) AddRecord(ctx context.Context, topic, content string) error {
	if err := kb.store.CreateIndex(ctx, kb.indexName, kb.embedder.Dimension(), index.MetricCosine); err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	records, err := seed.BuildRecords(ctx, kb.chunker, kb.embedder, core.Document{Text: content, Source: topic})
	if err != nil {
		return fmt.Errorf("add %q: %w", topic, err)
	}

	if err := kb.store.Upsert(ctx, kb.indexName, records); err != nil {
		return fmt.Errorf("upsert %q: %w", topic, err)
	}

	kb.logger.Info("added knowledge", "topic", topic, "records", len(records))
	return nil
}

// Reset drops the index so the next SeedIfNeeded rebuilds it. This is
// the manual re-seed path after the source directory changes.
func (kb *KnowledgeBase) Reset(ctx context.Context) error {
	return kb.seeder.Reset(ctx)
}

// Stats describes the index: its dimension, metric and record count.
// Returns core.ErrIndexNotFound when nothing has been seeded yet.
func (kb *KnowledgeBase) Stats(ctx context.Context) (*core.IndexInfo, error) {
	return kb.store.Describe(ctx, kb.indexName)
}

// Store exposes the underlying index store.
func (kb *KnowledgeBase) Store() index.Store {
	return kb.store
}

// Embedder exposes the underlying embedder.
func (kb *KnowledgeBase) Embedder() ai.Embedder {
	return kb.embedder
}

// Close releases the index backend.
func (kb *KnowledgeBase) Close() error {
	if err := kb.store.Close(); err != nil {
		kb.logger.Error("error closing index store", "err", err)
		return err
	}
	return nil
}
