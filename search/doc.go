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


// Package search answers natural-language queries against a seeded
// vector index.
//
// A query is embedded and ranked by cosine similarity against the
// stored records. Two behaviors soften the edges for conversational
// callers: a strict score floor that filters out every record is
// retried once with the floor dropped to zero, and a query against an
// index that does not exist yet returns an empty result set rather
// than an error.
package search
