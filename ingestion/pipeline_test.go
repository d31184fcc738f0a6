package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/questanalytics/questa/ai/mock"
	"github.com/questanalytics/questa/core"
	"github.com/questanalytics/questa/index"
	"github.com/questanalytics/questa/index/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, index.Repository) {
	t.Helper()

	repo, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})

	pipeline, err := NewPipeline(repo, mock.NewMockProvider(), opts...)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	return pipeline, repo
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewPipeline_Validation(t *testing.T) {
	repo, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	defer func() { repo.Close(); backend.Close() }()

	_, err = NewPipeline(nil, mock.NewMockProvider())
	assert.ErrorIs(t, err, ErrIndexRequired)

	_, err = NewPipeline(repo, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
}

func TestIngestDocument(t *testing.T) {
	pipeline, repo := newTestPipeline(t)
	ctx := context.Background()

	text := strings.Repeat("Stochastic gradient descent converges for convex objectives. ", 40)
	summary, err := pipeline.IngestDocument(ctx, "notes.txt", []byte(text), false)
	require.NoError(t, err)

	assert.Greater(t, summary.Written, 1, "long document should produce multiple chunks")
	assert.Zero(t, summary.Failed)
	assert.NotZero(t, summary.Generation)

	// Every written chunk carries a vector and document metadata
	count := 0
	err = repo.IterateChunks(ctx, func(chunk *core.IndexedChunk) error {
		count++
		assert.Len(t, chunk.Vector, 384)
		assert.Equal(t, "notes.txt", chunk.Metadata["source"])
		assert.False(t, chunk.Timestamp.IsZero())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, summary.Written, count)
}

func TestIngestDocument_Idempotent(t *testing.T) {
	pipeline, _ := newTestPipeline(t)
	ctx := context.Background()

	data := []byte(strings.Repeat("Reproducible ingestion keeps chunk identifiers stable. ", 30))

	first, err := pipeline.IngestDocument(ctx, "stable.txt", data, false)
	require.NoError(t, err)
	require.Greater(t, first.Written, 0)

	second, err := pipeline.IngestDocument(ctx, "stable.txt", data, false)
	require.NoError(t, err)
	assert.Zero(t, second.Written)
	assert.Equal(t, first.Written, second.Skipped)
}

func TestIngestDocument_EmptyText(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	_, err := pipeline.IngestDocument(context.Background(), "empty.txt", []byte("   \n  "), false)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestIngestDocument_UnsupportedFormat(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	_, err := pipeline.IngestDocument(context.Background(), "image.png", []byte{0x89, 0x50}, false)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestIngestDocument_EmbeddingFailureAbortsBatch(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("model offline")
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockOCR(), mock.NewMockChatModel("mock-primary"))

	repo, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	defer func() { repo.Close(); backend.Close() }()

	pipeline, err := NewPipeline(repo, provider, WithEmbedRetry(2, 0))
	require.NoError(t, err)
	defer pipeline.Release()

	ctx := context.Background()
	_, err = pipeline.IngestDocument(ctx, "doc.txt", []byte(strings.Repeat("text ", 100)), false)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)

	// Nothing partial reached the index
	gen, err := repo.CurrentGeneration(ctx)
	require.NoError(t, err)
	assert.Zero(t, gen)
}

func TestIngestFiles_PerDocumentFailures(t *testing.T) {
	pipeline, _ := newTestPipeline(t)
	ctx := context.Background()

	good := writeTempFile(t, "good.txt", strings.Repeat("Useful retrievable content about enzymes. ", 30))
	missing := filepath.Join(t.TempDir(), "missing.txt")

	summary, failures, err := pipeline.IngestFiles(ctx, []string{good, missing}, false)
	require.NoError(t, err)

	assert.Greater(t, summary.Written, 0)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[missing], ErrUnreadableDocument)
}

func TestIngestFiles_SessionReset(t *testing.T) {
	pipeline, repo := newTestPipeline(t)
	ctx := context.Background()

	first := writeTempFile(t, "first.txt", strings.Repeat("Old session content about glaciers. ", 30))
	firstSummary, failures, err := pipeline.IngestFiles(ctx, []string{first}, true)
	require.NoError(t, err)
	require.Empty(t, failures)

	second := writeTempFile(t, "second.txt", strings.Repeat("New session content about volcanoes. ", 30))
	secondSummary, failures, err := pipeline.IngestFiles(ctx, []string{second}, true)
	require.NoError(t, err)
	require.Empty(t, failures)
	require.NotEqual(t, firstSummary.Generation, secondSummary.Generation)

	hits, err := repo.SearchLexical(ctx, index.Tokenize("glaciers"), 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "retired session must not be searchable")

	hits, err = repo.SearchLexical(ctx, index.Tokenize("volcanoes"), 10)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestIngestFiles_AllFailedBatch(t *testing.T) {
	pipeline, _ := newTestPipeline(t)

	missing := filepath.Join(t.TempDir(), "nope.txt")
	_, failures, err := pipeline.IngestFiles(context.Background(), []string{missing}, true)
	assert.Error(t, err)
	assert.Len(t, failures, 1)
}

func TestOCRFallback(t *testing.T) {
	ocr := mock.NewMockOCR()
	ocrCalled := false
	ocr.ExtractTextFunc = func(ctx context.Context, filename string, data []byte) ([]string, error) {
		ocrCalled = true
		return []string{
			strings.Repeat("Scanned page one text recovered by OCR. ", 10),
			strings.Repeat("Scanned page two text recovered by OCR. ", 10),
		}, nil
	}

	ingestor := NewIngestor(ocr)

	// Plain text below the native threshold triggers OCR
	batch, err := ingestor.Ingest(context.Background(), "scan.txt", []byte("stub"))
	require.NoError(t, err)
	assert.True(t, ocrCalled)
	require.NotEmpty(t, batch.Chunks)
	assert.Equal(t, 1, batch.Chunks[0].Page)
	assert.Equal(t, 2, batch.Chunks[len(batch.Chunks)-1].Page)
}

func TestOCRFallback_FailOpenToNativeText(t *testing.T) {
	ocr := mock.NewMockOCR()
	ocr.ExtractTextFunc = func(ctx context.Context, filename string, data []byte) ([]string, error) {
		return nil, errors.New("ocr sidecar down")
	}

	ingestor := NewIngestor(ocr, WithMinNativeChars(1000))

	// Sparse native text survives an OCR outage
	batch, err := ingestor.Ingest(context.Background(), "short.txt", []byte("forty two characters of real native text here"))
	require.NoError(t, err)
	assert.NotEmpty(t, batch.Chunks)
}

func TestChunkOverlap(t *testing.T) {
	ingestor := NewIngestor(nil, WithChunking(200, 50))

	var builder strings.Builder
	for i := 0; i < 120; i++ {
		fmt.Fprintf(&builder, "sentence number %d about membrane transport. ", i)
	}

	batch, err := ingestor.Ingest(context.Background(), "long.txt", []byte(builder.String()))
	require.NoError(t, err)
	require.Greater(t, len(batch.Chunks), 2)

	// Adjacent chunks share overlapping text
	first := batch.Chunks[0].Text
	second := batch.Chunks[1].Text
	tail := first[len(first)-20:]
	assert.Contains(t, second, tail)

	// Ordinals are dense and IDs deterministic
	for i, chunk := range batch.Chunks {
		assert.Equal(t, i, chunk.Ordinal)
		assert.Equal(t, batch.Document.Id, chunk.DocumentId)
	}
}

func TestMetadataHeuristics(t *testing.T) {
	text := "Attention Is All You Need\n" +
		"Ashish Vaswani, Noam Shazeer, Niki Parmar\n" +
		"arXiv:1706.03762v5\n" +
		"doi 10.48550/arxiv.1706.03762\n\n" +
		strings.Repeat("The dominant sequence transduction models are based on recurrent networks. ", 20)

	ingestor := NewIngestor(nil)
	batch, err := ingestor.Ingest(context.Background(), "attention.txt", []byte(text))
	require.NoError(t, err)

	assert.Equal(t, "Attention Is All You Need", batch.Metadata["title"])
	assert.Equal(t, "Attention Is All You Need", batch.Document.Title)
	assert.Equal(t, "1706.03762v5", batch.Metadata["arxiv_id"])
	assert.Equal(t, "10.48550/arxiv.1706.03762", batch.Metadata["doi"])
	assert.Contains(t, batch.Metadata["authors"], "Vaswani")
}

func TestMetadataFallsBackToFilename(t *testing.T) {
	ingestor := NewIngestor(nil)
	batch, err := ingestor.Ingest(context.Background(), "/data/papers/quarterly-report.txt",
		[]byte(strings.Repeat("no obvious title line here just body text flowing on ", 20)))
	require.NoError(t, err)

	// First plausible line wins; a missing front page would fall back to
	// the file stem.
	assert.NotEmpty(t, batch.Metadata["title"])
	assert.Equal(t, "/data/papers/quarterly-report.txt", batch.Metadata["source"])
}
