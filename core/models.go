package core

import (
	"encoding/binary"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for persisted records.
// It is generated deterministically from content so that repeated
// ingestion of the same source produces the same keys.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// IDFromChunk generates a deterministic ID for a chunk from its source,
// sequence index, and text. Two chunks with the same text at different
// positions or from different documents receive distinct IDs, while
// re-ingesting an unchanged document rewrites exactly the same keys.
func IDFromChunk(source string, sequence int, text string) ID {
	h, _ := blake2b.New(8, nil)
	h.Write([]byte(source))
	h.Write([]byte{0})
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], uint64(sequence))
	h.Write(seq[:])
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Metadata keys guaranteed to be present on records produced by the
// ingestion pipeline.
const (
	MetadataKeyText     = "text"
	MetadataKeySource   = "source"
	MetadataKeySequence = "sequence"
)

// Document is a unit of source content discovered by the loader.
// Documents are transient: they exist only for the duration of a
// seeding run and are never persisted.
type Document struct {
	Text   string
	Source string // origin identifier, typically a file path
}

// Chunk is a contiguous slice of a document's text. Consecutive chunks
// from the same document overlap by the configured overlap width so that
// no semantic unit spanning a boundary is entirely lost to retrieval.
type Chunk struct {
	Text     string
	Source   string
	Sequence int // position within the source document, starting at 0
}

// Record is the persisted unit of the vector index: an identifier, a
// fixed-dimension embedding, and the metadata needed to present a match
// back to a caller. Metadata always carries at least MetadataKeyText and
// MetadataKeySource for records produced by the pipeline.
type Record struct {
	Id       ID
	Vector   []float32
	Metadata map[string]string
}

// ScoredRecord is a similarity match returned by index queries.
type ScoredRecord struct {
	Id       ID
	Score    float32
	Metadata map[string]string
}

// IndexInfo describes a named index: its declared dimension and metric,
// and the number of records it currently holds.
type IndexInfo struct {
	Name      string
	Dimension int
	Metric    string
	Count     uint64
}
