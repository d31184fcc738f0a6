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


package reindex

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/questanalytics/questa/ai"
	"github.com/questanalytics/questa/core"
	"github.com/questanalytics/questa/index"
)

// Config holds configuration for a reindexing run.
type Config struct {
	// BatchSize is the number of chunks embedded per batch
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for embedding calls
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reindexer re-embeds every chunk of the current index generation.
type Reindexer struct {
	repo     index.Repository
	embedder ai.Embedder
	config   *Config
	progress io.Writer
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(repo index.Repository, embedder ai.Embedder, config *Config, progress io.Writer) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Reindexer{
		repo:     repo,
		embedder: embedder,
		config:   config,
		progress: progress,
	}
}

// chunkRef is the part of a chunk the reindexer needs.
type chunkRef struct {
	id   core.ID
	text string
}

// Run re-embeds all chunks of the current generation in batches.
// Progress is reported to the configured writer. A failed batch aborts
// the run; already-updated batches keep their new vectors, which is safe
// because old and new embeddings only differ in quality, not validity.
func (r *Reindexer) Run(ctx context.Context) error {
	var refs []chunkRef
	err := r.repo.IterateChunks(ctx, func(chunk *core.IndexedChunk) error {
		refs = append(refs, chunkRef{id: chunk.Id, text: chunk.Text})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan chunks: %w", err)
	}

	total := len(refs)
	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found in current generation (0 chunks)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reindexing of %d chunks (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	for start := 0; start < total; start += r.config.BatchSize {
		end := start + r.config.BatchSize
		if end > total {
			end = total
		}

		if err := r.processBatch(ctx, refs[start:end]); err != nil {
			return err
		}

		processed += end - start
		tracker.Update(processed)
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindexing complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())

	return nil
}

// processBatch embeds one batch with retry and writes the normalized
// vectors back to the index.
func (r *Reindexer) processBatch(ctx context.Context, refs []chunkRef) error {
	texts := make([]string, len(refs))
	for i, ref := range refs {
		texts[i] = ref.text
	}

	var embeddings [][]float32
	err := ai.RetryWithBackoff(ctx, func() error {
		var embedErr error
		embeddings, embedErr = r.embedder.EmbedTexts(ctx, texts)
		return embedErr
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", r.config.MaxRetries, err)
	}

	if len(embeddings) != len(refs) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(refs), len(embeddings))
	}

	vectors := make(map[core.ID][]float32, len(refs))
	for i, ref := range refs {
		vectors[ref.id] = NormalizeVector(embeddings[i])
	}

	if err := r.repo.UpdateVectors(ctx, vectors); err != nil {
		return fmt.Errorf("failed to update vectors: %w", err)
	}
	return nil
}
