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


package core

import "errors"

// Pipeline error taxonomy. Callers match these with errors.Is; concrete
// failures are wrapped around them with additional detail.
var (
	// ErrIO indicates the knowledge source directory is missing or a
	// source file could not be read.
	ErrIO = errors.New("knowledge source io error")

	// ErrEmbeddingService indicates the external embedding call failed,
	// was rejected, or returned a malformed response.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrDimensionMismatch indicates a vector's length disagrees with the
	// index's declared dimension, or an index was re-declared with a
	// conflicting dimension or metric.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrIndexNotFound indicates an operation against an index that was
	// never created.
	ErrIndexNotFound = errors.New("index not found")
)

// Domain validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInvalidChunkParams indicates chunking parameters are out of range.
	ErrInvalidChunkParams = errors.New("invalid chunking parameters")

	// ErrEmptyDocument indicates a document has no text to chunk.
	ErrEmptyDocument = errors.New("document text cannot be empty")

	// ErrInvalidIndexName indicates an index name is empty or malformed.
	ErrInvalidIndexName = errors.New("invalid index name")

	// ErrInvalidDimension indicates a non-positive index dimension.
	ErrInvalidDimension = errors.New("dimension must be positive")
)
