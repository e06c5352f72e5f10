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


// Package index provides the vector index abstraction for knowit.
//
// This package defines the Store interface that decouples index semantics
// from their storage implementation. It allows an embedded backend
// (BadgerDB) and a server backend (PostgreSQL + pgvector) to be used
// interchangeably behind the same contract.
//
// # Constructor Return Type Pattern
//
// This package follows a strict "return interface" pattern for all public
// constructors to enforce abstraction and enable multiple backend
// implementations:
//
//	store, err := badger.NewStore(path)  // returns index.Store interface
//
// This design decision prioritizes:
//   - Abstraction: Prevents accidental coupling to backend specifics
//   - Swappability: Embedded and server backends satisfy one contract
//   - Testing: Consumers can use in-memory or mock stores without modification
//
// Internal package constructors (newStore, newBackend, etc.) may return
// concrete types since they're only used within the implementation package.
//
// # Backend Selection
//
// Callers choose a backend with an explicit tagged Config rather than a
// string whose shape is inspected:
//
//	cfg := index.Embedded("/var/lib/knowit")       // local BadgerDB
//	cfg := index.Remote("postgres://...")          // PostgreSQL + pgvector
//
// # Index Semantics
//
// Every index is named, carries a fixed vector dimension and a similarity
// metric, and stores records keyed by id:
//
//   - CreateIndex is idempotent for an identical configuration and rejects
//     conflicting redefinitions with core.ErrDimensionMismatch.
//   - Upsert replaces records by id, so re-ingesting identical content is
//     harmless.
//   - Query ranks by similarity descending; an empty result is not an error.
//   - Exists reports true only for an index holding at least one record,
//     which is the guard seeding uses to decide whether to run.
//
// # Thread Safety
//
// All Store implementations must be thread-safe and support concurrent
// queries while an upsert is in progress.
//
// # Context Support
//
// All Store methods accept context.Context for cancellation and timeout
// support. Pass context.Background() for operations without specific
// timeout requirements.
package index
