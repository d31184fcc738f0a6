package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/questanalytics/questa/core"
	"github.com/questanalytics/questa/index"
)

func makeTestChunk(source string, ordinal int, text string, vector []float32) *core.IndexedChunk {
	docID := core.IDFromContent(source)
	return &core.IndexedChunk{
		Id:         core.ChunkID(docID, ordinal),
		DocumentId: docID,
		Ordinal:    ordinal,
		Text:       text,
		Vector:     vector,
		Metadata:   map[string]string{"source": source},
		Timestamp:  time.Now().UTC(),
	}
}

func TestWriteAndGetChunks(t *testing.T) {
	repo, backend, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	defer func() { repo.Close(); backend.Close() }()

	ctx := context.Background()

	chunk := makeTestChunk("paper.pdf", 0, "gradient descent converges under convexity", []float32{0.1, 0.2, 0.3})
	summary, err := repo.Write(ctx, []*core.IndexedChunk{chunk}, false)
	if err != nil {
		t.Fatalf("Failed to write chunk: %v", err)
	}
	if summary.Written != 1 {
		t.Fatalf("Expected 1 written, got %d", summary.Written)
	}
	if summary.Generation == 0 {
		t.Fatal("Expected non-zero generation")
	}

	chunks, err := repo.GetChunks(ctx, chunk.Id)
	if err != nil {
		t.Fatalf("Failed to get chunk: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != chunk.Text {
		t.Fatalf("Expected text %q, got %q", chunk.Text, chunks[0].Text)
	}
	if chunks[0].Generation != summary.Generation {
		t.Fatalf("Expected generation %d, got %d", summary.Generation, chunks[0].Generation)
	}

	// Unknown IDs are omitted, not an error
	chunks, err = repo.GetChunks(ctx, core.ID(12345))
	if err != nil {
		t.Fatalf("Unexpected error for unknown ID: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("Expected no chunks for unknown ID, got %d", len(chunks))
	}
}

func TestWriteIdempotent(t *testing.T) {
	repo, backend, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	defer func() { repo.Close(); backend.Close() }()

	ctx := context.Background()

	batch := []*core.IndexedChunk{
		makeTestChunk("doc.txt", 0, "first chunk of text", []float32{1, 0}),
		makeTestChunk("doc.txt", 1, "second chunk of text", []float32{0, 1}),
	}

	first, err := repo.Write(ctx, batch, false)
	if err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if first.Written != 2 || first.Skipped != 0 {
		t.Fatalf("Expected 2 written, 0 skipped; got %d written, %d skipped", first.Written, first.Skipped)
	}

	second, err := repo.Write(ctx, batch, false)
	if err != nil {
		t.Fatalf("Second write failed: %v", err)
	}
	if second.Written != 0 || second.Skipped != 2 {
		t.Fatalf("Expected 0 written, 2 skipped; got %d written, %d skipped", second.Written, second.Skipped)
	}
	if second.Generation != first.Generation {
		t.Fatalf("Idempotent write must not change generation: %d vs %d", second.Generation, first.Generation)
	}
}

func TestGenerationSwap(t *testing.T) {
	repo, backend, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	defer func() { repo.Close(); backend.Close() }()

	ctx := context.Background()

	first, err := repo.Write(ctx, []*core.IndexedChunk{
		makeTestChunk("old.pdf", 0, "thermodynamics entropy enthalpy", []float32{1, 0}),
	}, true)
	if err != nil {
		t.Fatalf("First session write failed: %v", err)
	}

	second, err := repo.Write(ctx, []*core.IndexedChunk{
		makeTestChunk("new.pdf", 0, "photosynthesis chlorophyll sunlight", []float32{0, 1}),
	}, true)
	if err != nil {
		t.Fatalf("Second session write failed: %v", err)
	}
	if second.Generation == first.Generation {
		t.Fatal("Expected a fresh generation for the second session")
	}

	gen, err := repo.CurrentGeneration(ctx)
	if err != nil {
		t.Fatalf("Failed to read current generation: %v", err)
	}
	if gen != second.Generation {
		t.Fatalf("Expected current generation %d, got %d", second.Generation, gen)
	}

	// Terms from the retired session must not match anymore
	hits, err := repo.SearchLexical(ctx, index.Tokenize("thermodynamics entropy"), 10)
	if err != nil {
		t.Fatalf("Lexical search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("Expected no hits from retired generation, got %d", len(hits))
	}

	hits, err = repo.SearchLexical(ctx, index.Tokenize("photosynthesis"), 10)
	if err != nil {
		t.Fatalf("Lexical search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Expected 1 hit from current generation, got %d", len(hits))
	}
}

func TestClearRequiresChunks(t *testing.T) {
	repo, backend, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	defer func() { repo.Close(); backend.Close() }()

	_, err = repo.Write(context.Background(), nil, true)
	if !errors.Is(err, index.ErrEmptyBatch) {
		t.Fatalf("Expected ErrEmptyBatch, got %v", err)
	}
}

func TestSearchLexicalRanking(t *testing.T) {
	repo, backend, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	defer func() { repo.Close(); backend.Close() }()

	ctx := context.Background()

	heavy := makeTestChunk("a.txt", 0, "gradient gradient gradient descent method", nil)
	light := makeTestChunk("b.txt", 0, "gradient methods appear once here", nil)
	other := makeTestChunk("c.txt", 0, "completely unrelated subject matter", nil)

	if _, err := repo.Write(ctx, []*core.IndexedChunk{heavy, light, other}, false); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	hits, err := repo.SearchLexical(ctx, index.Tokenize("gradient descent"), 10)
	if err != nil {
		t.Fatalf("Lexical search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits, got %d", len(hits))
	}
	if hits[0].ChunkId != heavy.Id {
		t.Fatalf("Expected chunk with both terms first, got %d", hits[0].ChunkId)
	}
	if hits[0].MatchedTerms != 2 {
		t.Fatalf("Expected 2 matched terms, got %d", hits[0].MatchedTerms)
	}
	if hits[1].MatchedTerms != 1 {
		t.Fatalf("Expected 1 matched term, got %d", hits[1].MatchedTerms)
	}
	if hits[0].Score <= hits[1].Score {
		t.Fatalf("Expected descending scores: %f vs %f", hits[0].Score, hits[1].Score)
	}
}

func TestSearchVectorOrdering(t *testing.T) {
	repo, backend, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	defer func() { repo.Close(); backend.Close() }()

	ctx := context.Background()

	near := makeTestChunk("a.txt", 0, "near", []float32{1, 0, 0})
	far := makeTestChunk("b.txt", 0, "far", []float32{0, 1, 0})
	mid := makeTestChunk("c.txt", 0, "mid", []float32{1, 1, 0})

	if _, err := repo.Write(ctx, []*core.IndexedChunk{near, far, mid}, false); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	hits, err := repo.SearchVector(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Vector search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits, got %d", len(hits))
	}
	if hits[0].ChunkId != near.Id {
		t.Fatalf("Expected nearest chunk first, got %d", hits[0].ChunkId)
	}
	if hits[1].ChunkId != mid.Id {
		t.Fatalf("Expected mid chunk second, got %d", hits[1].ChunkId)
	}
	if hits[0].Score <= hits[1].Score {
		t.Fatalf("Expected descending similarity: %f vs %f", hits[0].Score, hits[1].Score)
	}
}

func TestUpdateVectors(t *testing.T) {
	repo, backend, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	defer func() { repo.Close(); backend.Close() }()

	ctx := context.Background()

	chunk := makeTestChunk("a.txt", 0, "some indexed text", []float32{0, 1, 0})
	if _, err := repo.Write(ctx, []*core.IndexedChunk{chunk}, false); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	err = repo.UpdateVectors(ctx, map[core.ID][]float32{chunk.Id: {1, 0, 0}})
	if err != nil {
		t.Fatalf("UpdateVectors failed: %v", err)
	}

	hits, err := repo.SearchVector(ctx, []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Vector search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].Score < 0.99 {
		t.Fatalf("Expected updated vector to match query, got %+v", hits)
	}

	err = repo.UpdateVectors(ctx, map[core.ID][]float32{core.ID(999): {1, 0, 0}})
	if !errors.Is(err, index.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for unknown chunk, got %v", err)
	}
}

func TestIterateChunks(t *testing.T) {
	repo, backend, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	defer func() { repo.Close(); backend.Close() }()

	ctx := context.Background()

	batch := []*core.IndexedChunk{
		makeTestChunk("a.txt", 0, "alpha", nil),
		makeTestChunk("a.txt", 1, "beta", nil),
		makeTestChunk("b.txt", 0, "gamma", nil),
	}
	if _, err := repo.Write(ctx, batch, false); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	count := 0
	err = repo.IterateChunks(ctx, func(chunk *core.IndexedChunk) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("IterateChunks failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("Expected 3 chunks, got %d", count)
	}

	// An error from the callback stops iteration and propagates
	stop := errors.New("stop")
	err = repo.IterateChunks(ctx, func(chunk *core.IndexedChunk) error {
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("Expected callback error, got %v", err)
	}
}

func TestClosedIndex(t *testing.T) {
	repo, backend, err := NewMemoryIndex()
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	defer backend.Close()

	if err := repo.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err = repo.Write(context.Background(), []*core.IndexedChunk{makeTestChunk("a.txt", 0, "x", nil)}, false)
	if !errors.Is(err, index.ErrIndexClosed) {
		t.Fatalf("Expected ErrIndexClosed, got %v", err)
	}
}
