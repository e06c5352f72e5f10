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


package search

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/knowit/ai"
	"github.com/poiesic/knowit/core"
	"github.com/poiesic/knowit/index"
)

// DefaultIndexName is the index queried when no name is configured.
const DefaultIndexName = "knowledge"

// Searcher answers natural-language queries against a seeded vector
// index: it embeds the query text and ranks stored records by cosine
// similarity.
type Searcher struct {
	store     index.Store
	embedder  ai.Embedder
	indexName string
	monitor   Monitor
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithIndexName sets the index to query.
// Default is DefaultIndexName.
func WithIndexName(name string) Option {
	return func(s *Searcher) error {
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
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMonitor installs a monitor receiving callbacks at each search
// stage. Default is a no-op monitor.
func WithMonitor(monitor Monitor) Option {
	return func(s *Searcher) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		s.monitor = monitor
		return nil
	}
}

// NewSearcher creates a searcher over the given store and embedder.
func NewSearcher(store index.Store, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:     store,
		embedder:  embedder,
		indexName: DefaultIndexName,
		monitor:   &noopMonitor{},
		logger:    slog.Default().With("component", "searcher"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// IndexName returns the index this searcher targets.
func (s *Searcher) IndexName() string {
	return s.indexName
}

// Search returns up to topK records similar to the query text, scored
// by cosine similarity and restricted to score >= minScore.
//
// When the strict query returns nothing, it is retried once with the
// score floor dropped to zero so the caller still receives best-effort
// context rather than nothing. A missing index is not an error: it
// yields an empty result so conversation flows degrade gracefully when
// no knowledge base has been seeded yet.
func (s *Searcher) Search(ctx context.Context, query string, topK int, minScore float32) ([]core.ScoredRecord, error) {
	return s.SearchFiltered(ctx, query, topK, minScore, nil)
}

// SearchFiltered is Search restricted to records whose metadata
// contains every key/value pair in filter.
func (s *Searcher) SearchFiltered(ctx context.Context, query string, topK int, minScore float32, filter map[string]string) ([]core.ScoredRecord, error) {
	s.monitor.OnSearchStart(query)
	start := time.Now()

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error embedding query", "query", query, "err", err)
		return nil, err
	}

	results, err := s.queryIndex(ctx, vector, index.QueryOptions{
		TopK:     topK,
		MinScore: minScore,
		Filter:   filter,
	})
	if err != nil {
		return nil, err
	}

	// Relaxed retry: a strict floor that filters everything out is a
	// relevance/availability trade-off, not a hard failure.
	if len(results) == 0 && minScore > 0 {
		s.logger.Debug("no results above score floor, retrying relaxed",
			"query", query, "minScore", minScore)
		s.monitor.OnRelaxedRetry(query)

		results, err = s.queryIndex(ctx, vector, index.QueryOptions{
			TopK:   topK,
			Filter: filter,
		})
		if err != nil {
			return nil, err
		}
	}

	s.monitor.OnSearchComplete(query, results, time.Since(start))
	return results, nil
}

// queryIndex runs one index query, translating a missing index into an
// empty result set.
func (s *Searcher) queryIndex(ctx context.Context, vector []float32, opts index.QueryOptions) ([]core.ScoredRecord, error) {
	results, err := s.store.Query(ctx, s.indexName, vector, opts)
	if err != nil {
		if errors.Is(err, core.ErrIndexNotFound) {
			s.logger.Warn("knowledge index not found, returning no results", "index", s.indexName)
			return []core.ScoredRecord{}, nil
		}
		s.logger.Error("error querying index", "index", s.indexName, "err", err)
		return nil, err
	}
	return results, nil
}
