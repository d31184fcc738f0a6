package reindex

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/questanalytics/questa/ai/mock"
	"github.com/questanalytics/questa/core"
	"github.com/questanalytics/questa/index"
	"github.com/questanalytics/questa/index/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestIndex(t *testing.T, chunkCount int) index.Repository {
	t.Helper()
	repo, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})

	docID := core.IDFromContent("reindex-corpus")
	chunks := make([]*core.IndexedChunk, chunkCount)
	for i := range chunks {
		chunks[i] = &core.IndexedChunk{
			Id:         core.ChunkID(docID, i),
			DocumentId: docID,
			Ordinal:    i,
			Text:       "chunk text body",
			Vector:     []float32{9, 9, 9},
			Timestamp:  time.Now().UTC(),
		}
	}
	_, err = repo.Write(context.Background(), chunks, true)
	require.NoError(t, err)
	return repo
}

func TestReindexer_Run(t *testing.T) {
	repo := setupTestIndex(t, 10)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{3, 4, 0}
		}
		return out, nil
	}

	var progress bytes.Buffer
	reindexer := NewReindexer(repo, embedder, &Config{
		BatchSize:      4,
		ReportInterval: 4,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
	}, &progress)

	require.NoError(t, reindexer.Run(context.Background()))

	// Every chunk carries the new, normalized vector
	count := 0
	err := repo.IterateChunks(context.Background(), func(chunk *core.IndexedChunk) error {
		count++
		require.Len(t, chunk.Vector, 3)
		assert.InDelta(t, 0.6, chunk.Vector[0], 1e-6)
		assert.InDelta(t, 0.8, chunk.Vector[1], 1e-6)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10, count)
	assert.Contains(t, progress.String(), "Reindexing complete")
}

func TestReindexer_EmptyIndex(t *testing.T) {
	repo, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	defer func() { repo.Close(); backend.Close() }()

	var progress bytes.Buffer
	reindexer := NewReindexer(repo, mock.NewMockEmbedder(), nil, &progress)

	require.NoError(t, reindexer.Run(context.Background()))
	assert.Contains(t, progress.String(), "No chunks found")
}

func TestReindexer_EmbeddingFailureAborts(t *testing.T) {
	repo := setupTestIndex(t, 3)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, _ []string) ([][]float32, error) {
		return nil, errors.New("embedding service down")
	}

	var progress bytes.Buffer
	reindexer := NewReindexer(repo, embedder, &Config{
		BatchSize:      2,
		ReportInterval: 2,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
	}, &progress)

	err := reindexer.Run(context.Background())
	require.Error(t, err)

	// Old vectors survive the aborted run
	err = repo.IterateChunks(context.Background(), func(chunk *core.IndexedChunk) error {
		assert.Equal(t, []float32{9, 9, 9}, chunk.Vector)
		return nil
	})
	require.NoError(t, err)
}

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{
			name:     "unit vector remains unchanged",
			input:    []float32{1.0, 0.0, 0.0},
			expected: []float32{1.0, 0.0, 0.0},
		},
		{
			name:     "scale non-unit vector",
			input:    []float32{3.0, 4.0},
			expected: []float32{0.6, 0.8},
		},
		{
			name:     "negative values",
			input:    []float32{-1.0, 1.0},
			expected: []float32{-1.0 / float32(math.Sqrt(2)), 1.0 / float32(math.Sqrt(2))},
		},
		{
			name:     "zero vector stays zero",
			input:    []float32{0, 0, 0},
			expected: []float32{0, 0, 0},
		},
		{
			name:     "empty vector",
			input:    nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeVector(tt.input)
			require.Len(t, got, len(tt.expected))
			for i := range tt.expected {
				assert.InDelta(t, tt.expected[i], got[i], 1e-6)
			}
		})
	}
}

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	// Updates before Start are ignored
	tracker.Update(50)
	assert.Empty(t, buf.String())

	tracker.Start()
	tracker.Update(10)
	assert.Contains(t, buf.String(), "10/100")

	tracker.Update(250)
	tracker.Finish()
	assert.Contains(t, buf.String(), "100/100")
	assert.Greater(t, tracker.Elapsed(), time.Duration(0))
}
