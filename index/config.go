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


package index

import "fmt"

// BackendKind selects which Store implementation a Config describes.
type BackendKind int

const (
	// KindUnset is the zero value and never a valid backend.
	KindUnset BackendKind = iota

	// KindEmbedded selects the local BadgerDB backend.
	KindEmbedded

	// KindRemote selects the PostgreSQL/pgvector backend.
	KindRemote
)

// String returns the backend kind name for logging.
func (k BackendKind) String() string {
	switch k {
	case KindEmbedded:
		return "embedded"
	case KindRemote:
		return "remote"
	default:
		return "unset"
	}
}

// Config describes which backend to open and how to reach it.
// The Kind tag is explicit: callers state the backend they want
// rather than having it inferred from the shape of a string.
type Config struct {
	// Kind selects the backend implementation.
	Kind BackendKind

	// Path is the on-disk database directory for KindEmbedded.
	// Empty means an in-memory database.
	Path string

	// ConnString is the PostgreSQL connection string for KindRemote.
	ConnString string
}

// Embedded returns a Config for the local BadgerDB backend.
// An empty path opens an in-memory database.
func Embedded(path string) Config {
	return Config{Kind: KindEmbedded, Path: path}
}

// Remote returns a Config for the PostgreSQL/pgvector backend.
func Remote(connString string) Config {
	return Config{Kind: KindRemote, ConnString: connString}
}

// Validate checks that the config describes an openable backend.
func (c Config) Validate() error {
	switch c.Kind {
	case KindEmbedded:
		return nil
	case KindRemote:
		if c.ConnString == "" {
			return fmt.Errorf("%w: remote backend requires a connection string", ErrInvalidConfig)
		}
		return nil
	default:
		return fmt.Errorf("%w: backend kind is unset", ErrInvalidConfig)
	}
}
