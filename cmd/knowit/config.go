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


package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/knowit"
	"github.com/poiesic/knowit/ai"
	"github.com/poiesic/knowit/index"
)

// Config is the TOML file configuration. Flags override file values,
// which override the defaults. The embedding API key is never read
// from the file; it comes from the OPENAI_API_KEY environment variable.
type Config struct {
	Docs      DocsConfig      `toml:"docs"`
	Backend   BackendConfig   `toml:"backend"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Index     IndexConfig     `toml:"index"`
	Seeding   SeedingConfig   `toml:"seeding"`
}

// DocsConfig locates the knowledge source directory.
type DocsConfig struct {
	Dir        string   `toml:"dir"`
	Extensions []string `toml:"extensions"`
}

// BackendConfig selects the vector store backend.
type BackendConfig struct {
	// Kind is "embedded" (local BadgerDB) or "remote" (PostgreSQL + pgvector).
	Kind       string `toml:"kind"`
	Path       string `toml:"path"`
	ConnString string `toml:"conn_string"`
}

// EmbeddingConfig points at the embedding service.
type EmbeddingConfig struct {
	Host      string `toml:"host"`
	Model     string `toml:"model"`
	Dimension int    `toml:"dimension"`
	BatchSize int    `toml:"batch_size"`
}

// ChunkingConfig sizes the chunk window.
type ChunkingConfig struct {
	MaxSize int `toml:"max_size"`
	Overlap int `toml:"overlap"`
}

// IndexConfig names the vector index.
type IndexConfig struct {
	Name string `toml:"name"`
}

// SeedingConfig tunes the seeding run.
type SeedingConfig struct {
	Workers  int  `toml:"workers"`
	Progress bool `toml:"progress"`
}

// DefaultCLIConfig returns the configuration used when no file and no
// flags are given: a local database under ./knowit.db seeded from ./docs.
func DefaultCLIConfig() *Config {
	return &Config{
		Docs:    DocsConfig{Dir: "docs"},
		Backend: BackendConfig{Kind: "embedded", Path: "knowit.db"},
		Index:   IndexConfig{Name: "knowledge"},
	}
}

// LoadConfig reads a TOML file over the defaults. An empty path returns
// the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultCLIConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyFlags overrides file values with any flags set on the command.
func (cfg *Config) applyFlags(c *cli.Context) {
	if c.IsSet("docs") {
		cfg.Docs.Dir = c.String("docs")
	}
	if c.IsSet("db") {
		cfg.Backend.Kind = "embedded"
		cfg.Backend.Path = c.String("db")
	}
	if c.IsSet("pg") {
		cfg.Backend.Kind = "remote"
		cfg.Backend.ConnString = c.String("pg")
	}
	if c.IsSet("index") {
		cfg.Index.Name = c.String("index")
	}
	if c.IsSet("embedding-host") {
		cfg.Embedding.Host = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.Embedding.Model = c.String("embedding-model")
	}
	if c.IsSet("dimension") {
		cfg.Embedding.Dimension = c.Int("dimension")
	}
	if c.IsSet("workers") {
		cfg.Seeding.Workers = c.Int("workers")
	}
	if c.IsSet("progress") {
		cfg.Seeding.Progress = c.Bool("progress")
	}
}

// backendConfig translates the file/flag backend section into the
// library's tagged backend config.
func (cfg *Config) backendConfig() (index.Config, error) {
	switch cfg.Backend.Kind {
	case "embedded", "":
		return index.Embedded(cfg.Backend.Path), nil
	case "remote":
		return index.Remote(cfg.Backend.ConnString), nil
	default:
		return index.Config{}, fmt.Errorf("unknown backend kind %q: must be embedded or remote", cfg.Backend.Kind)
	}
}

// options translates the remaining sections into knowledge base options.
func (cfg *Config) options() []knowit.Option {
	var aiOpts []ai.ConfigOption
	if cfg.Embedding.Host != "" {
		aiOpts = append(aiOpts, ai.WithEmbeddingHost(cfg.Embedding.Host))
	}
	if cfg.Embedding.Model != "" {
		aiOpts = append(aiOpts, ai.WithEmbeddingModel(cfg.Embedding.Model))
	}
	if cfg.Embedding.Dimension > 0 {
		aiOpts = append(aiOpts, ai.WithDimension(cfg.Embedding.Dimension))
	}
	if cfg.Embedding.BatchSize > 0 {
		aiOpts = append(aiOpts, ai.WithBatchSize(cfg.Embedding.BatchSize))
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		aiOpts = append(aiOpts, ai.WithAPIKey(key))
	}

	opts := []knowit.Option{knowit.WithAIConfig(ai.NewConfig(aiOpts...))}

	if cfg.Index.Name != "" {
		opts = append(opts, knowit.WithIndexName(cfg.Index.Name))
	}
	if len(cfg.Docs.Extensions) > 0 {
		opts = append(opts, knowit.WithExtensions(cfg.Docs.Extensions...))
	}
	if cfg.Chunking.MaxSize > 0 {
		overlap := cfg.Chunking.Overlap
		opts = append(opts, knowit.WithChunking(cfg.Chunking.MaxSize, overlap))
	}
	if cfg.Seeding.Workers > 1 {
		opts = append(opts, knowit.WithWorkers(cfg.Seeding.Workers))
	}
	if cfg.Seeding.Progress {
		opts = append(opts, knowit.WithProgress(os.Stderr))
	}

	return opts
}
