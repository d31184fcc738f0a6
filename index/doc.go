// Copyright 2026 Quest Analytics
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


// Package index defines the storage abstraction for the hybrid index.
//
// The hybrid index persists chunk text, dense vectors and metadata, and
// serves both lexical (BM25) and vector (cosine) queries. It also owns
// session-reset semantics through generation tags.
//
// # Generations
//
// Every indexed chunk carries a generation tag. Exactly one generation is
// current at any time, and readers only ever see the current one. A
// clear-write builds a complete new generation off to the side and then
// flips the current-generation pointer in a single atomic step, so there
// is no window where readers see a partially written index or an empty
// one. Retired generations are garbage collected asynchronously, never
// in the write path.
//
// # Implementations
//
//   - index/badger: BadgerDB-backed implementation with an inverted term
//     index for BM25 and full-scan cosine similarity for vectors. An
//     in-memory mode is provided for tests.
//
// # Thread Safety
//
// Repository implementations must be thread-safe. Reads are concurrent;
// writes are serialized internally at the generation-swap step.
package index
