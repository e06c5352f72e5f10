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

import (
	"fmt"
	"strings"
)

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - Vector must not be empty
//   - Metadata must carry the chunk text and its source
//
// NOT validated:
//   - ID (0 is a legitimate hash value)
//   - Vector dimension (checked against the index by the store)
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if len(record.Vector) == 0 {
		return fmt.Errorf("%w: vector is empty", ErrInvalidRecord)
	}

	if record.Metadata[MetadataKeyText] == "" {
		return fmt.Errorf("%w: metadata %q is missing", ErrInvalidRecord, MetadataKeyText)
	}

	if record.Metadata[MetadataKeySource] == "" {
		return fmt.Errorf("%w: metadata %q is missing", ErrInvalidRecord, MetadataKeySource)
	}

	return nil
}

// ValidateChunkParams validates a chunking window configuration.
// maxSize must be positive and overlap must satisfy 0 <= overlap < maxSize.
func ValidateChunkParams(maxSize, overlap int) error {
	if maxSize <= 0 {
		return fmt.Errorf("%w: maxSize %d must be positive", ErrInvalidChunkParams, maxSize)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap %d cannot be negative", ErrInvalidChunkParams, overlap)
	}
	if overlap >= maxSize {
		return fmt.Errorf("%w: overlap %d must be smaller than maxSize %d", ErrInvalidChunkParams, overlap, maxSize)
	}
	return nil
}

// ValidateIndexName validates that an index name is usable.
// Names must be non-empty and free of NUL bytes, which backends
// use as key separators.
func ValidateIndexName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidIndexName)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: name contains a NUL byte", ErrInvalidIndexName)
	}
	return nil
}

// ValidateDimension validates an index dimension.
func ValidateDimension(dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidDimension, dimension)
	}
	return nil
}
