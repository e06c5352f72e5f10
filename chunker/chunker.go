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


package chunker

import (
	"strings"

	"github.com/poiesic/knowit/core"
)

// Config configures the chunking window.
type Config struct {
	// MaxSize is the maximum characters per chunk.
	MaxSize int

	// Overlap is the exact character overlap between consecutive chunks
	// of the same document. Must satisfy 0 <= Overlap < MaxSize.
	Overlap int

	// PreserveStructure prefers cutting at markdown block boundaries
	// (headings, paragraph starts) when one falls inside the window.
	PreserveStructure bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:           1536,
		Overlap:           200,
		PreserveStructure: true,
	}
}

// Chunker splits documents into overlapping chunks.
//
// Invariants maintained for every document:
//   - each chunk is at most MaxSize characters
//   - every chunk after the first begins exactly Overlap characters
//     before the end of the previous chunk, so trimming the first
//     Overlap characters of each later chunk and concatenating
//     reconstructs the document text with no gaps
type Chunker struct {
	config Config
}

// NewChunker creates a Chunker with the given config.
func NewChunker(config Config) (*Chunker, error) {
	if err := core.ValidateChunkParams(config.MaxSize, config.Overlap); err != nil {
		return nil, err
	}
	return &Chunker{config: config}, nil
}

// Config returns the chunker's configuration.
func (c *Chunker) Config() Config {
	return c.config
}

// Chunk splits a document into overlapping chunks. A document no longer
// than MaxSize yields exactly one chunk equal to the whole text.
func (c *Chunker) Chunk(doc core.Document) ([]core.Chunk, error) {
	if doc.Text == "" {
		return nil, core.ErrEmptyDocument
	}

	content := doc.Text
	if len(content) <= c.config.MaxSize {
		return []core.Chunk{{
			Text:     content,
			Source:   doc.Source,
			Sequence: 0,
		}}, nil
	}

	var boundaries []blockBound
	if c.config.PreserveStructure {
		boundaries = blockBoundaries([]byte(content))
	}

	var chunks []core.Chunk
	start := 0
	sequence := 0

	for start < len(content) {
		end := start + c.config.MaxSize
		if end > len(content) {
			end = len(content)
		}

		if end < len(content) {
			if cut := c.findBlockCut(boundaries, start, end); cut > 0 {
				end = cut
			} else if cut := c.findBreakPoint(content, start, end); cut > 0 {
				end = cut
			}
		}

		chunks = append(chunks, core.Chunk{
			Text:     content[start:end],
			Source:   doc.Source,
			Sequence: sequence,
		})
		sequence++

		if end >= len(content) {
			break
		}

		// The exact-overlap invariant: the next window begins Overlap
		// characters before this one ended. Cut points are constrained
		// to land past start+Overlap, so this always advances.
		start = end - c.config.Overlap
	}

	return chunks, nil
}

// findBlockCut returns the best markdown block boundary usable as a
// window end, or 0 when none qualifies. Headings win over later
// paragraph starts: cutting at a heading keeps it with its section,
// while cutting just past one strands it at the end of a chunk.
// Boundaries in the first half of the window are ignored so chunks
// keep a useful minimum length.
func (c *Chunker) findBlockCut(boundaries []blockBound, start, maxEnd int) int {
	if len(boundaries) == 0 {
		return 0
	}

	minCut := start + c.config.MaxSize/2
	if minCut <= start+c.config.Overlap {
		minCut = start + c.config.Overlap + 1
	}

	headingCut, paragraphCut := 0, 0
	for _, b := range boundaries {
		if b.offset > maxEnd {
			break
		}
		if b.offset < minCut {
			continue
		}
		if b.heading {
			if b.offset > headingCut {
				headingCut = b.offset
			}
		} else if b.offset > paragraphCut {
			paragraphCut = b.offset
		}
	}
	if headingCut > 0 {
		return headingCut
	}
	return paragraphCut
}

// findBreakPoint searches the tail of the window for a natural break:
// a paragraph break first, then a sentence ender, then a word boundary.
// Returns 0 when the window should end at maxEnd.
func (c *Chunker) findBreakPoint(content string, start, maxEnd int) int {
	searchStart := maxEnd - 100
	if min := start + c.config.Overlap + 1; searchStart < min {
		searchStart = min
	}
	if searchStart >= maxEnd {
		return 0
	}

	searchContent := content[searchStart:maxEnd]

	// Paragraph boundary (double newline)
	if idx := strings.LastIndex(searchContent, "\n\n"); idx != -1 {
		return searchStart + idx + 2
	}

	// Sentence boundary
	sentenceEnders := []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}
	bestIdx := -1
	for _, ender := range sentenceEnders {
		if idx := strings.LastIndex(searchContent, ender); idx != -1 {
			endPos := idx + len(ender)
			if endPos > bestIdx {
				bestIdx = endPos
			}
		}
	}
	if bestIdx > 0 {
		return searchStart + bestIdx
	}

	// Word boundary
	if idx := strings.LastIndex(searchContent, " "); idx != -1 {
		return searchStart + idx + 1
	}

	return 0
}
