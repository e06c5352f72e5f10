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


package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/knowit/core"
)

// DefaultExtensions are the file extensions loaded when none are configured.
var DefaultExtensions = []string{".md"}

// Loader discovers source files under a directory and materializes them
// as in-memory documents tagged with their origin path.
type Loader struct {
	extensions map[string]bool
	logger     *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithExtensions sets the file extensions to load (e.g. ".md", ".txt").
// Extensions are matched case-insensitively.
func WithExtensions(exts ...string) Option {
	return func(l *Loader) {
		l.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			l.extensions[strings.ToLower(ext)] = true
		}
	}
}

// WithLogger sets the logger used during discovery.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader. By default it loads markdown files only.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		logger: slog.Default().With("component", "loader"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if len(l.extensions) == 0 {
		WithExtensions(DefaultExtensions...)(l)
	}
	return l
}

// Load walks dir recursively and returns one document per file whose
// extension matches the configured filter, with Text set to the file's
// full content and Source set to its path.
//
// Enumeration follows lexical walk order; callers must not rely on a
// particular ordering for correctness. Any unreadable file or a missing
// directory fails the whole load with core.ErrIO so the caller can abort
// and retry the batch later.
func (l *Loader) Load(ctx context.Context, dir string) ([]core.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", core.ErrIO, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", core.ErrIO, dir)
	}

	var documents []core.Document
	skipped := 0

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("%w: walk %s: %v", core.ErrIO, path, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !l.extensions[ext] {
			skipped++
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", core.ErrIO, path, err)
		}

		l.logger.Debug("loaded document", "path", path, "bytes", len(data))
		documents = append(documents, core.Document{
			Text:   string(data),
			Source: path,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("document discovery complete",
		"dir", dir,
		"documents", len(documents),
		"skipped", skipped)
	return documents, nil
}
