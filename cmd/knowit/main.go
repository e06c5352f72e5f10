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
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/knowit"
	"github.com/poiesic/knowit/core"
	"github.com/poiesic/knowit/seed"
)

// backendFlags are shared by every command that opens the store.
func backendFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to TOML configuration file",
		},
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to the embedded BadgerDB index directory",
		},
		&cli.StringFlag{
			Name:  "pg",
			Usage: "PostgreSQL connection string for the pgvector backend",
		},
		&cli.StringFlag{
			Name:  "index",
			Usage: "Vector index name",
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
		},
		&cli.IntFlag{
			Name:  "dimension",
			Usage: "Embedding output width (required for models outside the well-known table)",
		},
	}
}

func main() {
	app := &cli.App{
		Name:  "knowit",
		Usage: "Knowledge ingestion pipeline with semantic search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "seed",
				Usage:  "Ingest a document directory into the index unless it is already seeded",
				Action: seedCommand,
				Flags: append(backendFlags(),
					&cli.StringFlag{
						Name:  "docs",
						Usage: "Directory of source documents",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of documents embedded concurrently",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Report seeding progress to stderr",
					},
				),
			},
			{
				Name:      "query",
				Usage:     "Search the index with natural-language text",
				ArgsUsage: "<query text>",
				Action:    queryCommand,
				Flags: append(backendFlags(),
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Maximum number of results",
						Value: 5,
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Minimum similarity score (relaxed to 0 when nothing qualifies)",
						Value: 0.3,
					},
				),
			},
			{
				Name:      "add",
				Usage:     "Add a single piece of knowledge to the index",
				ArgsUsage: "<topic> <content>",
				Action:    addCommand,
				Flags:     backendFlags(),
			},
			{
				Name:   "reset",
				Usage:  "Drop the index so the next seed rebuilds it",
				Action: resetCommand,
				Flags:  backendFlags(),
			},
			{
				Name:   "stats",
				Usage:  "Describe the index: dimension, metric and record count",
				Action: statsCommand,
				Flags:  backendFlags(),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openKnowledgeBase resolves file and flag configuration and opens the
// pipeline around the selected backend.
func openKnowledgeBase(c *cli.Context) (*knowit.KnowledgeBase, *Config, error) {
	cfg, err := LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	cfg.applyFlags(c)

	backend, err := cfg.backendConfig()
	if err != nil {
		return nil, nil, err
	}

	kb, err := knowit.New(backend, cfg.options()...)
	if err != nil {
		return nil, nil, fmt.Errorf("open knowledge base: %w", err)
	}
	return kb, cfg, nil
}

func seedCommand(c *cli.Context) error {
	kb, cfg, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer kb.Close()

	if cfg.Docs.Dir == "" {
		return fmt.Errorf("no document directory: set docs.dir in the config file or pass --docs")
	}

	state, err := kb.SeedIfNeeded(context.Background(), cfg.Docs.Dir)
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	switch state {
	case seed.StateSeeded:
		info, err := kb.Stats(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("index %q seeded: %d records at dimension %d\n", info.Name, info.Count, info.Dimension)
	case seed.StateNotSeeded:
		fmt.Printf("nothing to seed in %s\n", cfg.Docs.Dir)
	}
	return nil
}

func queryCommand(c *cli.Context) error {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return fmt.Errorf("query text is required")
	}

	kb, _, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer kb.Close()

	results, err := kb.Query(context.Background(), text, c.Int("top-k"), float32(c.Float64("min-score")))
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. [%.3f] %s\n   %s\n", i+1, r.Score,
			r.Metadata[core.MetadataKeySource], r.Metadata[core.MetadataKeyText])
	}
	return nil
}

func addCommand(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return fmt.Errorf("usage: knowit add <topic> <content>")
	}
	topic := c.Args().Get(0)
	content := strings.Join(c.Args().Slice()[1:], " ")

	kb, _, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer kb.Close()

	if err := kb.AddRecord(context.Background(), topic, content); err != nil {
		return fmt.Errorf("add failed: %w", err)
	}
	fmt.Printf("added knowledge under topic %q\n", topic)
	return nil
}

func resetCommand(c *cli.Context) error {
	kb, _, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer kb.Close()

	if err := kb.Reset(context.Background()); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	fmt.Println("index dropped; next seed rebuilds it")
	return nil
}

func statsCommand(c *cli.Context) error {
	kb, _, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer kb.Close()

	info, err := kb.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}
	fmt.Printf("index:     %s\nmetric:    %s\ndimension: %d\nrecords:   %d\n",
		info.Name, info.Metric, info.Dimension, info.Count)
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
