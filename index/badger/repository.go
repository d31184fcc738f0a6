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


package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/panjf2000/ants/v2"
	"github.com/questanalytics/questa/core"
	"github.com/questanalytics/questa/index"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

const writeRetryAttempts = 3

// Repository implements index.Repository for BadgerDB.
//
// Chunks, postings, and length records are keyed by generation. Readers
// resolve the current-generation pointer at the start of each operation,
// so a concurrent generation swap never exposes a half-written index.
type Repository struct {
	backend *Backend
	genSeq  *badger.Sequence
	logger  *slog.Logger

	// Serializes writes and generation swaps.
	writeMu sync.Mutex

	closed atomic.Bool

	gcPool *ants.Pool
	gcWG   sync.WaitGroup
}

var _ index.Repository = (*Repository)(nil)

// NewRepository creates a Repository on top of an open backend.
func NewRepository(backend *Backend) (*Repository, error) {
	genSeq, err := backend.GetSequence(generationSeq)
	if err != nil {
		return nil, err
	}

	// A single worker keeps generation drops sequential; DropPrefix
	// briefly blocks writes, so there is nothing to gain from parallelism.
	gcPool, err := ants.NewPool(1)
	if err != nil {
		genSeq.Release()
		return nil, err
	}

	return &Repository{
		backend: backend,
		genSeq:  genSeq,
		logger:  slog.Default().With("component", "index"),
		gcPool:  gcPool,
	}, nil
}

// Close drains pending generation garbage collection and releases the
// generation sequence. The backend itself is closed by its owner.
func (r *Repository) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.gcWG.Wait()
	r.gcPool.Release()
	return r.genSeq.Release()
}

// nextGeneration allocates a fresh generation tag.
func (r *Repository) nextGeneration() (core.GenerationID, error) {
	next, err := r.genSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if next == 0 {
		next, err = r.genSeq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.GenerationID(next), nil
}

// Write implements index.Writer.
func (r *Repository) Write(ctx context.Context, chunks []*core.IndexedChunk, clearPrevious bool) (*index.WriteSummary, error) {
	if r.closed.Load() {
		return nil, index.ErrIndexClosed
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if clearPrevious {
		return r.writeFresh(ctx, chunks)
	}
	return r.writeAppend(ctx, chunks)
}

// writeFresh writes the batch under a new generation and flips the
// current-generation pointer only after every chunk is durable. On any
// failure the new generation is discarded and the previous one stays
// current.
func (r *Repository) writeFresh(ctx context.Context, chunks []*core.IndexedChunk) (*index.WriteSummary, error) {
	if len(chunks) == 0 {
		return nil, index.ErrEmptyBatch
	}

	gen, err := r.nextGeneration()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", index.ErrWriteFailed, err)
	}

	summary := &index.WriteSummary{Generation: gen}

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			r.scheduleGC(gen)
			return nil, fmt.Errorf("%w: %w", index.ErrWriteFailed, err)
		}
		if err := r.writeChunk(gen, chunk); err != nil {
			r.scheduleGC(gen)
			return nil, fmt.Errorf("%w: chunk %d: %w", index.ErrWriteFailed, chunk.Id, err)
		}
		summary.Written++
	}

	previous, err := r.swapCurrentGeneration(gen)
	if err != nil {
		r.scheduleGC(gen)
		return nil, fmt.Errorf("%w: %w", index.ErrWriteFailed, err)
	}
	if previous != 0 {
		r.scheduleGC(previous)
	}

	r.logger.Info("generation swapped",
		"generation", uint64(gen),
		"previous", uint64(previous),
		"written", summary.Written)

	return summary, nil
}

// writeAppend upserts chunks into the current generation. Chunks whose
// deterministic IDs are already present are skipped, so re-ingesting
// unchanged content is a no-op.
func (r *Repository) writeAppend(ctx context.Context, chunks []*core.IndexedChunk) (*index.WriteSummary, error) {
	gen, err := r.currentGeneration()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", index.ErrWriteFailed, err)
	}
	if gen == 0 {
		// First write into an empty index starts a generation.
		gen, err = r.nextGeneration()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", index.ErrWriteFailed, err)
		}
		if _, err := r.swapCurrentGeneration(gen); err != nil {
			return nil, fmt.Errorf("%w: %w", index.ErrWriteFailed, err)
		}
	}

	summary := &index.WriteSummary{Generation: gen}

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("%w: %w", index.ErrWriteFailed, err)
		}

		exists, err := r.chunkExists(gen, chunk.Id)
		if err != nil {
			summary.Failed++
			r.logger.Warn("chunk existence check failed", "chunk", uint64(chunk.Id), "error", err)
			continue
		}
		if exists {
			summary.Skipped++
			continue
		}

		if err := r.writeChunk(gen, chunk); err != nil {
			summary.Failed++
			r.logger.Warn("chunk write failed", "chunk", uint64(chunk.Id), "error", err)
			continue
		}
		summary.Written++
	}

	if summary.Written == 0 && summary.Failed > 0 {
		return summary, index.ErrWriteFailed
	}
	return summary, nil
}

// writeChunk stores a chunk record, its term postings, its length record,
// and updates the generation statistics within a single transaction.
// Retries on transaction conflicts.
func (r *Repository) writeChunk(gen core.GenerationID, chunk *core.IndexedChunk) error {
	stored := *chunk
	stored.Generation = gen
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}

	counts := index.TermCounts(stored.Text)

	var err error
	delay := 10 * time.Millisecond
	for attempt := 0; attempt < writeRetryAttempts; attempt++ {
		err = r.backend.WithTx(func(tx *badger.Txn) error {
			if err := tx.Set(makeChunkKey(gen, stored.Id), index.MarshalIndexedChunk(&stored)); err != nil {
				return err
			}

			termTotal := 0
			for term, tf := range counts {
				termTotal += tf
				tfBuf := make([]byte, binary.MaxVarintLen64)
				n := binary.PutUvarint(tfBuf, uint64(tf))
				if err := tx.Set(makeTermKey(gen, term, stored.Id), tfBuf[:n]); err != nil {
					return err
				}
			}

			lenBuf := make([]byte, binary.MaxVarintLen64)
			n := binary.PutUvarint(lenBuf, uint64(termTotal))
			if err := tx.Set(makeChunkLenKey(gen, stored.Id), lenBuf[:n]); err != nil {
				return err
			}

			if err := r.bumpStats(tx, gen, 1, termTotal); err != nil {
				return err
			}

			return tx.Commit()
		}, true)

		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

// chunkExists reports whether a chunk record is present in the generation.
func (r *Repository) chunkExists(gen core.GenerationID, id core.ID) (bool, error) {
	var exists bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeChunkKey(gen, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	}, false)
	return exists, err
}

// swapCurrentGeneration flips the current-generation pointer and returns
// the previously current generation (0 if none).
func (r *Repository) swapCurrentGeneration(gen core.GenerationID) (core.GenerationID, error) {
	var previous core.GenerationID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(currentGenKey))
		if err == nil {
			err = item.Value(func(val []byte) error {
				previous = core.GenerationID(binary.BigEndian.Uint64(val))
				return nil
			})
			if err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(gen))
		if err := tx.Set([]byte(currentGenKey), buf); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return previous, err
}

// currentGeneration reads the current-generation pointer. Returns 0 when
// the index is empty.
func (r *Repository) currentGeneration() (core.GenerationID, error) {
	var gen core.GenerationID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(currentGenKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			gen = core.GenerationID(binary.BigEndian.Uint64(val))
			return nil
		})
	}, false)
	return gen, err
}

// CurrentGeneration implements index.Reader.
func (r *Repository) CurrentGeneration(ctx context.Context) (core.GenerationID, error) {
	if r.closed.Load() {
		return 0, index.ErrIndexClosed
	}
	return r.currentGeneration()
}

// generationStats holds the aggregates needed for BM25 scoring.
type generationStats struct {
	chunkCount uint64
	termTotal  uint64
}

func (s generationStats) averageLength() float64 {
	if s.chunkCount == 0 {
		return 0
	}
	return float64(s.termTotal) / float64(s.chunkCount)
}

// bumpStats adjusts the generation aggregates inside a write transaction.
func (r *Repository) bumpStats(tx *badger.Txn, gen core.GenerationID, chunks, terms int) error {
	key := makeGenStatsKey(gen)

	var stats generationStats
	item, err := tx.Get(key)
	if err == nil {
		err = item.Value(func(val []byte) error {
			stats.chunkCount = binary.BigEndian.Uint64(val[:8])
			stats.termTotal = binary.BigEndian.Uint64(val[8:16])
			return nil
		})
		if err != nil {
			return err
		}
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}

	stats.chunkCount += uint64(chunks)
	stats.termTotal += uint64(terms)

	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], stats.chunkCount)
	binary.BigEndian.PutUint64(buf[8:16], stats.termTotal)
	return tx.Set(key, buf)
}

// readStats loads the generation aggregates.
func (r *Repository) readStats(tx *badger.Txn, gen core.GenerationID) (generationStats, error) {
	var stats generationStats
	item, err := tx.Get(makeGenStatsKey(gen))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return stats, nil
	}
	if err != nil {
		return stats, err
	}
	err = item.Value(func(val []byte) error {
		stats.chunkCount = binary.BigEndian.Uint64(val[:8])
		stats.termTotal = binary.BigEndian.Uint64(val[8:16])
		return nil
	})
	return stats, err
}

// SearchLexical implements index.Reader using BM25 over the term postings
// of the current generation.
func (r *Repository) SearchLexical(ctx context.Context, terms []string, limit int) ([]*index.LexicalHit, error) {
	if r.closed.Load() {
		return nil, index.ErrIndexClosed
	}
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	gen, err := r.currentGeneration()
	if err != nil {
		return nil, err
	}
	if gen == 0 {
		return nil, nil
	}

	// Deduplicate query terms; repeating a term in the query must not
	// double its contribution.
	distinct := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		if term != "" && !seen[term] {
			seen[term] = true
			distinct = append(distinct, term)
		}
	}

	type accumulator struct {
		score   float64
		matched int
	}
	scores := make(map[core.ID]*accumulator)

	err = r.backend.WithTx(func(tx *badger.Txn) error {
		stats, err := r.readStats(tx, gen)
		if err != nil {
			return err
		}
		if stats.chunkCount == 0 {
			return nil
		}
		avgLen := stats.averageLength()
		n := float64(stats.chunkCount)

		for _, term := range distinct {
			if err := ctx.Err(); err != nil {
				return err
			}

			// First pass over the postings collects document frequency
			// and per-chunk term frequency.
			type posting struct {
				id core.ID
				tf uint64
			}
			var postings []posting

			prefix := makePartialTermKey(gen, term)
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			iter := tx.NewIterator(opts)
			for iter.Rewind(); iter.Valid(); iter.Next() {
				item := iter.Item()
				id := termChunkID(item.Key())
				var tf uint64
				err := item.Value(func(val []byte) error {
					v, read := binary.Uvarint(val)
					if read <= 0 {
						return index.ErrSerializationFailed
					}
					tf = v
					return nil
				})
				if err != nil {
					iter.Close()
					return err
				}
				postings = append(postings, posting{id: id, tf: tf})
			}
			iter.Close()

			if len(postings) == 0 {
				continue
			}

			df := float64(len(postings))
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))

			for _, p := range postings {
				chunkLen, err := r.readChunkLength(tx, gen, p.id)
				if err != nil {
					return err
				}
				tf := float64(p.tf)
				norm := bm25K1 * (1 - bm25B + bm25B*chunkLen/avgLen)
				contribution := idf * tf * (bm25K1 + 1) / (tf + norm)

				acc := scores[p.id]
				if acc == nil {
					acc = &accumulator{}
					scores[p.id] = acc
				}
				acc.score += contribution
				acc.matched++
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	hits := make([]*index.LexicalHit, 0, len(scores))
	for id, acc := range scores {
		hits = append(hits, &index.LexicalHit{
			ChunkId:      id,
			Score:        acc.score,
			MatchedTerms: acc.matched,
		})
	}

	slices.SortFunc(hits, func(a, b *index.LexicalHit) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		if a.ChunkId < b.ChunkId {
			return -1
		}
		if a.ChunkId > b.ChunkId {
			return 1
		}
		return 0
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// readChunkLength reads the stored term count of a chunk.
func (r *Repository) readChunkLength(tx *badger.Txn, gen core.GenerationID, id core.ID) (float64, error) {
	item, err := tx.Get(makeChunkLenKey(gen, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var length float64
	err = item.Value(func(val []byte) error {
		v, read := binary.Uvarint(val)
		if read <= 0 {
			return index.ErrSerializationFailed
		}
		length = float64(v)
		return nil
	})
	return length, err
}

// SearchVector implements index.Reader with a full scan of the current
// generation's chunk records, scoring by cosine similarity.
func (r *Repository) SearchVector(ctx context.Context, vector []float32, limit int) ([]*index.VectorHit, error) {
	if r.closed.Load() {
		return nil, index.ErrIndexClosed
	}
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}

	gen, err := r.currentGeneration()
	if err != nil {
		return nil, err
	}
	if gen == 0 {
		return nil, nil
	}

	queryNorm := vectorNorm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	var hits []*index.VectorHit
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeGenPrefix(chunkPrefix, gen)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var chunk *core.IndexedChunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = index.UnmarshalIndexedChunk(val)
				return err
			})
			if err != nil {
				return err
			}

			// Skip chunks without embeddings
			if len(chunk.Vector) == 0 {
				continue
			}

			chunkNorm := vectorNorm(chunk.Vector)
			if chunkNorm == 0 {
				continue
			}
			similarity := float64(dotProduct(vector, chunk.Vector)) / (queryNorm * chunkNorm)

			hits = append(hits, &index.VectorHit{
				ChunkId: chunk.Id,
				Score:   similarity,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(hits, func(a, b *index.VectorHit) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		if a.ChunkId < b.ChunkId {
			return -1
		}
		if a.ChunkId > b.ChunkId {
			return 1
		}
		return 0
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// GetChunks implements index.Reader. Missing IDs are silently omitted, so
// a lookup racing a generation swap degrades to fewer results instead of
// an error.
func (r *Repository) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.IndexedChunk, error) {
	if r.closed.Load() {
		return nil, index.ErrIndexClosed
	}

	gen, err := r.currentGeneration()
	if err != nil {
		return nil, err
	}
	if gen == 0 {
		return nil, nil
	}

	chunks := make([]*core.IndexedChunk, 0, len(ids))
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := tx.Get(makeChunkKey(gen, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				chunk, err := index.UnmarshalIndexedChunk(val)
				if err != nil {
					return err
				}
				chunks = append(chunks, chunk)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// IterateChunks implements index.Repository.
func (r *Repository) IterateChunks(ctx context.Context, fn func(chunk *core.IndexedChunk) error) error {
	if r.closed.Load() {
		return index.ErrIndexClosed
	}

	gen, err := r.currentGeneration()
	if err != nil {
		return err
	}
	if gen == 0 {
		return nil
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeGenPrefix(chunkPrefix, gen)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var chunk *core.IndexedChunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = index.UnmarshalIndexedChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(chunk); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// UpdateVectors implements index.Repository. Chunk records are rewritten
// in place; the lexical postings do not depend on vectors and stay as is.
func (r *Repository) UpdateVectors(ctx context.Context, vectors map[core.ID][]float32) error {
	if r.closed.Load() {
		return index.ErrIndexClosed
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	gen, err := r.currentGeneration()
	if err != nil {
		return err
	}
	if gen == 0 {
		if len(vectors) == 0 {
			return nil
		}
		return index.ErrNotFound
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for id, vector := range vectors {
			if err := ctx.Err(); err != nil {
				return err
			}

			key := makeChunkKey(gen, id)
			item, err := tx.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: chunk %d", index.ErrNotFound, id)
			}
			if err != nil {
				return err
			}

			var chunk *core.IndexedChunk
			err = item.Value(func(val []byte) error {
				var err error
				chunk, err = index.UnmarshalIndexedChunk(val)
				return err
			})
			if err != nil {
				return err
			}

			if len(chunk.Vector) > 0 && len(vector) != len(chunk.Vector) {
				return fmt.Errorf("%w: chunk %d: got %d, want %d",
					index.ErrVectorDimension, id, len(vector), len(chunk.Vector))
			}

			chunk.Vector = vector
			if err := tx.Set(key, index.MarshalIndexedChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// scheduleGC queues asynchronous deletion of a retired generation.
// Falls back to inline deletion if the pool rejects the task.
func (r *Repository) scheduleGC(gen core.GenerationID) {
	r.gcWG.Add(1)
	err := r.gcPool.Submit(func() {
		defer r.gcWG.Done()
		r.dropGeneration(gen)
	})
	if err != nil {
		defer r.gcWG.Done()
		r.dropGeneration(gen)
	}
}

// dropGeneration removes every key of a generation.
func (r *Repository) dropGeneration(gen core.GenerationID) {
	prefixes := [][]byte{
		makeGenPrefix(chunkPrefix, gen),
		makeGenPrefix(termPrefix, gen),
		makeGenPrefix(chunkLenPrefix, gen),
		makeGenPrefix(genStatsPrefix, gen),
	}
	if err := r.backend.DropPrefix(prefixes...); err != nil {
		r.logger.Error("generation garbage collection failed",
			"generation", uint64(gen), "error", err)
		return
	}
	r.logger.Debug("generation dropped", "generation", uint64(gen))
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// vectorNorm calculates the Euclidean norm of a vector.
func vectorNorm(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}
