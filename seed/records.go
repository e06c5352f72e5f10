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


package seed

import (
	"context"
	"fmt"
	"strconv"

	"github.com/poiesic/knowit/ai"
	"github.com/poiesic/knowit/chunker"
	"github.com/poiesic/knowit/core"
)

// BuildRecords chunks a document, embeds the chunk texts in a single
// batch and assembles the records to upsert. Record ids derive from the
// chunk content, so ingesting identical content again replaces records
// instead of duplicating them.
//
// Both the directory seeder and runtime knowledge additions go through
// here, keeping the record shape identical across the two paths.
func BuildRecords(ctx context.Context, chk *chunker.Chunker, embedder ai.Embedder, doc core.Document) ([]core.Record, error) {
	chunks, err := chk.Chunk(doc)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", doc.Source, err)
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	vectors, err := embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks of %s",
			core.ErrEmbeddingService, len(vectors), len(chunks), doc.Source)
	}

	records := make([]core.Record, len(chunks))
	for i := range chunks {
		records[i] = core.Record{
			Id:     core.IDFromChunk(chunks[i].Source, chunks[i].Sequence, chunks[i].Text),
			Vector: vectors[i],
			Metadata: map[string]string{
				core.MetadataKeyText:     chunks[i].Text,
				core.MetadataKeySource:   chunks[i].Source,
				core.MetadataKeySequence: strconv.Itoa(chunks[i].Sequence),
			},
		}
	}
	return records, nil
}
