package index

import (
	"context"

	"github.com/questanalytics/questa/core"
)

// WriteSummary reports the outcome of a batch write.
type WriteSummary struct {
	Written    int // Chunks durably written
	Skipped    int // Chunks already present (idempotent upsert)
	Failed     int // Chunks that could not be written
	Generation core.GenerationID
}

// LexicalHit is a sparse (BM25) match against the current generation.
type LexicalHit struct {
	ChunkId      core.ID
	Score        float64 // Raw BM25 score
	MatchedTerms int     // Number of distinct query terms found in the chunk
}

// VectorHit is a dense (cosine similarity) match against the current generation.
type VectorHit struct {
	ChunkId core.ID
	Score   float64 // Cosine similarity in [-1, 1]
}

// Writer persists indexed chunks. Implementations must serialize
// concurrent writes so that exactly one generation is current at any time.
type Writer interface {
	// Write persists the batch of chunks.
	//
	// When clearPrevious is true, the chunks are written under a freshly
	// allocated generation tag; only after every chunk is durably written
	// is the current-generation pointer flipped to the new tag. Readers
	// therefore never observe a mix of old and new chunks, and there is
	// no window where the index appears empty. The retired generation is
	// garbage collected asynchronously.
	//
	// When clearPrevious is false, chunks are upserted into the current
	// generation keyed by their deterministic IDs; chunks that already
	// exist are skipped, making re-ingestion of unchanged content a no-op.
	//
	// A failed batch leaves the previously current generation current.
	Write(ctx context.Context, chunks []*core.IndexedChunk, clearPrevious bool) (*WriteSummary, error)
}

// Reader queries the hybrid index. All reads target the current
// generation only; retired generations are never visible.
type Reader interface {
	// CurrentGeneration returns the generation tag readers see.
	// Returns 0 when nothing has been indexed yet.
	CurrentGeneration(ctx context.Context) (core.GenerationID, error)

	// SearchLexical scores the given query terms with BM25 over the
	// current generation and returns up to limit hits, best first.
	SearchLexical(ctx context.Context, terms []string, limit int) ([]*LexicalHit, error)

	// SearchVector returns up to limit chunks of the current generation
	// nearest to the query vector by cosine similarity, best first.
	SearchVector(ctx context.Context, vector []float32, limit int) ([]*VectorHit, error)

	// GetChunks retrieves chunks of the current generation by ID.
	// Missing IDs are silently omitted.
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.IndexedChunk, error)
}

// Repository is the full hybrid index surface.
// Implementations must be thread-safe: retrieval is read-heavy and
// concurrent, while writes are serialized internally.
type Repository interface {
	Writer
	Reader

	// IterateChunks visits every chunk of the current generation.
	// Iteration stops early when fn returns an error, which is then
	// returned to the caller.
	IterateChunks(ctx context.Context, fn func(chunk *core.IndexedChunk) error) error

	// UpdateVectors replaces the stored vectors of existing chunks in
	// the current generation. Lexical postings are unaffected.
	// Unknown IDs are reported via ErrNotFound.
	UpdateVectors(ctx context.Context, vectors map[core.ID][]float32) error

	// Close closes the index and releases resources. Pending garbage
	// collection of retired generations is drained first.
	Close() error
}
